// Package store holds the single most recent analysis record.
//
// Every implementation has last-write-wins semantics: Set replaces whatever
// was held before and there is no history. Latest returns
// apperrors.ErrNoData until the first Set.
package store

import (
	"context"
	"fmt"

	"github.com/franckalain/foodanalysis/internal/models"
)

// Store is a one-slot holder of the latest AnalysisRecord.
type Store interface {
	Set(ctx context.Context, record *models.AnalysisRecord) error
	Latest(ctx context.Context) (*models.AnalysisRecord, error)
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	Type string `mapstructure:"type" json:"type"` // "memory" or "sqlite"
	Path string `mapstructure:"path" json:"path"` // sqlite DSN, ":memory:" by default
}

// New creates the store described by cfg.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
