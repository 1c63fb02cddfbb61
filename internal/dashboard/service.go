package dashboard

import (
	"context"
	"time"

	"github.com/wonny/marketviews/internal/consensus"
	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/heatmap"
	"github.com/wonny/marketviews/internal/recency"
	"github.com/wonny/marketviews/internal/store"
	"github.com/wonny/marketviews/internal/trajectory"
	"github.com/wonny/marketviews/internal/viewscale"
	"github.com/wonny/marketviews/pkg/logger"
	"github.com/wonny/marketviews/pkg/metrics"
	"github.com/wonny/marketviews/pkg/redis"
)

// SnapshotSource supplies the snapshot each query runs on
type SnapshotSource interface {
	Snapshot() *store.Snapshot
}

// Service answers dashboard queries. Each call takes one snapshot, so
// every projection in a response describes the same store contents.
type Service struct {
	source     SnapshotSource
	scale      *viewscale.Scale
	aggregator *consensus.Aggregator
	trajectory *trajectory.Builder

	cache   *redis.Cache
	metrics *metrics.Metrics
	log     *logger.Logger
}

// Option configures a Service
type Option func(*Service)

// WithCache memoizes projections per snapshot fingerprint and scale
func WithCache(cache *redis.Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics records projection durations and cache lookups
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a dashboard service
func New(source SnapshotSource, scale *viewscale.Scale, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		source:     source,
		scale:      scale,
		aggregator: consensus.New(scale),
		trajectory: trajectory.New(scale),
		log:        log.Component("dashboard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scale returns the view scale in use
func (s *Service) Scale() *viewscale.Scale {
	return s.scale
}

// Meta describes the snapshot a result was computed on
type Meta struct {
	Version     uint64    `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	TakenAt     time.Time `json:"taken_at"`
	Records     int       `json:"records"`
}

func metaOf(snap *store.Snapshot, matched int) Meta {
	return Meta{
		Version:     snap.Version,
		Fingerprint: snap.Fingerprint(),
		TakenAt:     snap.TakenAt,
		Records:     matched,
	}
}

// Filters lists the values available for each filter
type Filters struct {
	AssetClasses []string         `json:"asset_classes"`
	Managers     []string         `json:"managers"`
	Subclasses   []string         `json:"subclasses"`
	Views        []contracts.View `json:"views"`
}

// Filters returns the distinct values observed in the store.
// Managers and subclasses are narrowed by q.AssetClass.
func (s *Service) Filters(q Query) Filters {
	snap := s.source.Snapshot()
	scoped := snap
	if q.AssetClass != "" {
		scoped = snap.Filter(Query{AssetClass: q.AssetClass}.Match)
	}

	return Filters{
		AssetClasses: snap.Distinct(contracts.FieldAssetClass),
		Managers:     scoped.Distinct(contracts.FieldManager),
		Subclasses:   scoped.Distinct(contracts.FieldAssetSubclass),
		Views:        s.scale.Levels(),
	}
}

// Records returns the matching records in insertion order
func (s *Service) Records(q Query) ([]contracts.ViewRecord, Meta) {
	snap := s.source.Snapshot().Filter(q.Match)
	return snap.Records, metaOf(snap, snap.Len())
}

// ConsensusResult is the consensus table of a query
type ConsensusResult struct {
	Meta    Meta                   `json:"meta"`
	Entries []consensus.Entry      `json:"entries"`
	Latest  []contracts.ViewRecord `json:"latest"`
}

// Consensus resolves latest views and computes the mode per subclass
func (s *Service) Consensus(ctx context.Context, q Query) *ConsensusResult {
	snap := s.source.Snapshot()

	return memoize(ctx, s, snap, "consensus", q, func() *ConsensusResult {
		filtered := snap.Filter(q.Match)
		latest := recency.LatestPerKey(filtered.Records, recency.ByManagerSubclass)
		return &ConsensusResult{
			Meta:    metaOf(snap, filtered.Len()),
			Entries: s.aggregator.Table(latest),
			Latest:  recency.Sorted(latest),
		}
	})
}

// HeatmapResult is the subclass × manager grid of a query
type HeatmapResult struct {
	Meta   Meta            `json:"meta"`
	Matrix *heatmap.Matrix `json:"matrix"`
}

// Heatmap builds the matrix of latest views. transpose puts managers on rows.
func (s *Service) Heatmap(ctx context.Context, q Query, transpose bool) *HeatmapResult {
	snap := s.source.Snapshot()

	name := "heatmap"
	if transpose {
		name = "heatmap_t"
	}

	return memoize(ctx, s, snap, name, q, func() *HeatmapResult {
		filtered := snap.Filter(q.Match)
		latest := recency.LatestPerKey(filtered.Records, recency.ByManagerSubclass)
		m := heatmap.Build(latest, s.scale)
		if transpose {
			m = m.Transpose()
		}
		return &HeatmapResult{Meta: metaOf(snap, filtered.Len()), Matrix: m}
	})
}

// TrajectoryResult is the history of one subclass
type TrajectoryResult struct {
	Meta          Meta                `json:"meta"`
	AssetSubclass string              `json:"asset_subclass"`
	Manager       string              `json:"manager,omitempty"`
	Points        []trajectory.Point  `json:"points"`
	Series        []trajectory.Series `json:"series"`
}

// Trajectory returns every observation of subclass, optionally for one manager
func (s *Service) Trajectory(ctx context.Context, subclass, manager string) *TrajectoryResult {
	snap := s.source.Snapshot()
	q := Query{Subclasses: []string{subclass}}
	if manager != "" {
		q.Managers = []string{manager}
	}

	return memoize(ctx, s, snap, "trajectory", q, func() *TrajectoryResult {
		points := s.trajectory.Build(snap.Records, subclass, manager)
		return &TrajectoryResult{
			Meta:          metaOf(snap, len(points)),
			AssetSubclass: subclass,
			Manager:       manager,
			Points:        points,
			Series:        trajectory.Split(points),
		}
	})
}

// ManagerViews is the current position of one manager
type ManagerViews struct {
	Meta    Meta                   `json:"meta"`
	Manager string                 `json:"manager"`
	Views   []contracts.ViewRecord `json:"views"`
}

// CurrentViews returns the manager's latest view per subclass, sorted by subclass
func (s *Service) CurrentViews(manager string, q Query) *ManagerViews {
	snap := s.source.Snapshot()
	filtered := snap.Filter(q.Match)

	current := recency.CurrentViews(filtered.Records, manager)
	latest := make(map[recency.Key]contracts.ViewRecord, len(current))
	for subclass, rec := range current {
		latest[recency.Key{Manager: manager, AssetSubclass: subclass}] = rec
	}

	return &ManagerViews{
		Meta:    metaOf(snap, len(current)),
		Manager: manager,
		Views:   recency.Sorted(latest),
	}
}

// memoize returns the cached projection for (snapshot, projection, query)
// or computes and stores it. Cache failures degrade to computing.
func memoize[T any](ctx context.Context, s *Service, snap *store.Snapshot, projection string, q Query, compute func() *T) *T {
	run := func() *T {
		start := time.Now()
		v := compute()
		s.metrics.ObserveProjection(projection, time.Since(start))
		return v
	}

	if s.cache == nil {
		return run()
	}

	key := redis.ProjectionKey{
		Projection:  projection,
		Scale:       s.scale.Name(),
		Fingerprint: snap.Fingerprint(),
		Query:       q.Key(),
	}

	var cached T
	found, err := s.cache.Get(ctx, key, &cached)
	switch {
	case err != nil:
		s.metrics.IncrementCacheLookup("error")
		s.log.WithError(err).WithField("projection", projection).Warn("projection cache read failed")
	case found:
		s.metrics.IncrementCacheLookup("hit")
		return &cached
	default:
		s.metrics.IncrementCacheLookup("miss")
	}

	v := run()
	if err := s.cache.Set(ctx, key, v); err != nil {
		s.log.WithError(err).WithField("projection", projection).Warn("projection cache write failed")
	}
	return v
}
