package hub

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/tabular"
	"github.com/wonny/marketviews/pkg/logger"
)

// Hub holds the auxiliary KPI and risk/opportunity tables
type Hub struct {
	kpiPath    string
	signalPath string
	log        *logger.Logger

	mu       sync.RWMutex
	kpis     []contracts.KPI
	signals  []contracts.Signal
	loadedAt time.Time
}

// New creates a hub reading the given files; call Reload to load them
func New(kpiPath, signalPath string, log *logger.Logger) *Hub {
	return &Hub{
		kpiPath:    kpiPath,
		signalPath: signalPath,
		log:        log.Component("hub"),
	}
}

// Reload reads both tables. A missing file yields an empty table;
// a malformed file keeps the previous contents and returns the error.
func (h *Hub) Reload() error {
	kpis, err := tabular.ReadKPIsFile(h.kpiPath)
	if err != nil && !errors.Is(err, tabular.ErrMissingSource) {
		return fmt.Errorf("load kpis: %w", err)
	}
	if errors.Is(err, tabular.ErrMissingSource) {
		h.log.WithField("path", h.kpiPath).Warn("kpi table not found")
	}

	signals, err := tabular.ReadSignalsFile(h.signalPath)
	if err != nil && !errors.Is(err, tabular.ErrMissingSource) {
		return fmt.Errorf("load signals: %w", err)
	}
	if errors.Is(err, tabular.ErrMissingSource) {
		h.log.WithField("path", h.signalPath).Warn("risks/opportunities table not found")
	}

	h.Set(kpis, signals)

	h.log.WithFields(map[string]interface{}{
		"kpis":    len(kpis),
		"signals": len(signals),
	}).Info("hub tables loaded")
	return nil
}

// Set replaces both tables
func (h *Hub) Set(kpis []contracts.KPI, signals []contracts.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.kpis = append([]contracts.KPI(nil), kpis...)
	h.signals = append([]contracts.Signal(nil), signals...)
	h.loadedAt = time.Now()
}

// KPIs returns the KPI table in file order
func (h *Hub) KPIs() []contracts.KPI {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]contracts.KPI{}, h.kpis...)
}

// Risks returns risk annotations, highest score first
func (h *Hub) Risks() []contracts.Signal {
	return h.byType(contracts.SignalRisk)
}

// Opportunities returns opportunity annotations, highest score first
func (h *Hub) Opportunities() []contracts.Signal {
	return h.byType(contracts.SignalOpportunity)
}

// LoadedAt returns the time of the last successful load
func (h *Hub) LoadedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loadedAt
}

func (h *Hub) byType(t contracts.SignalType) []contracts.Signal {
	h.mu.RLock()
	out := make([]contracts.Signal, 0)
	for _, s := range h.signals {
		if s.Type == t {
			out = append(out, s)
		}
	}
	h.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.GreaterThan(out[j].Score)
	})
	return out
}
