package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/tabular"
)

// CSVBackend persists rows in a delimited file with the views header
type CSVBackend struct {
	path string
}

// NewCSVBackend creates a backend for path; the file may not exist yet
func NewCSVBackend(path string) *CSVBackend {
	return &CSVBackend{path: path}
}

func (b *CSVBackend) Name() string { return "csv" }

// Path returns the backing file
func (b *CSVBackend) Path() string { return b.path }

func (b *CSVBackend) Load(ctx context.Context) ([]contracts.RawRecord, error) {
	return tabular.ReadViewsFile(b.path)
}

// Append parses the current file, adds the batch in the file's own
// delimiter and column order, and renames a temp file over the original,
// so readers never see a partial batch.
func (b *CSVBackend) Append(ctx context.Context, records []contracts.ViewRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := os.ReadFile(b.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", b.path, err)
	}

	table, err := tabular.ReadViewsTable(bytes.NewReader(existing))
	if err != nil {
		return fmt.Errorf("read %s: %w", b.path, err)
	}
	table.AppendViews(records)

	var buf bytes.Buffer
	if err := table.Write(&buf); err != nil {
		return err
	}

	return writeAtomic(b.path, &buf)
}

func writeAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
