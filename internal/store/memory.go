package store

import (
	"context"
	"errors"
	"sync"

	"github.com/franckalain/foodanalysis/internal/apperrors"
	"github.com/franckalain/foodanalysis/internal/models"
)

// Memory keeps the latest record in process memory.
type Memory struct {
	mu     sync.RWMutex
	latest *models.AnalysisRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

// Set stores a copy of record, replacing the previous one.
func (m *Memory) Set(_ context.Context, record *models.AnalysisRecord) error {
	if record == nil {
		return errors.New("nil record")
	}
	c := record.Clone()

	m.mu.Lock()
	m.latest = c
	m.mu.Unlock()
	return nil
}

// Latest returns a copy of the held record or apperrors.ErrNoData.
func (m *Memory) Latest(_ context.Context) (*models.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.latest == nil {
		return nil, apperrors.ErrNoData
	}
	return m.latest.Clone(), nil
}

func (m *Memory) Close() error {
	return nil
}
