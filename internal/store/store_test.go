package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franckalain/foodanalysis/internal/apperrors"
	"github.com/franckalain/foodanalysis/internal/models"
)

func newRecord(id int64, weight float64) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		ID: id,
		Image: models.ImageInfo{
			StoredName:   "foodImage-1-abc.jpg",
			OriginalName: "apple.jpg",
			SizeBytes:    22,
			ServedPath:   "/uploads/foodImage-1-abc.jpg",
		},
		WeightGrams: weight,
		Analysis: models.Analysis{
			FoodType:          "Apple",
			Confidence:        0.85,
			Nutrition:         models.Nutrition{Calories: 96, Protein: 1, Carbs: 26, Fat: 0, Fiber: 4},
			HealthSuggestions: []string{"a", "b"},
		},
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 123e6, time.UTC),
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStoreEmpty(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := s.Latest(context.Background())
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, apperrors.ErrNoData)
		})
	}
}

func TestStoreLastWriteWins(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, newRecord(1, 185)))
			require.NoError(t, s.Set(ctx, newRecord(2, 120)))

			got, err := s.Latest(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), got.ID)
			assert.Equal(t, 120.0, got.WeightGrams)
			assert.True(t, got.Timestamp.Equal(newRecord(2, 120).Timestamp))
			assert.Equal(t, []string{"a", "b"}, got.Analysis.HealthSuggestions)
		})
	}
}

func TestStoreRejectsNil(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Set(context.Background(), nil))
		})
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	rec := newRecord(1, 185)
	require.NoError(t, m.Set(context.Background(), rec))

	rec.Analysis.HealthSuggestions[0] = "mutated after set"
	got, err := m.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", got.Analysis.HealthSuggestions[0])

	got.WeightGrams = 1
	again, err := m.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 185.0, again.WeightGrams)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, m.Set(ctx, newRecord(id, 100)))
		}(int64(i))
		go func() {
			defer wg.Done()
			_, _ = m.Latest(ctx)
		}()
	}
	wg.Wait()

	got, err := m.Latest(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.ID, int64(1))
}

func TestNew(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = New(Config{Type: "sqlite"})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = New(Config{Type: "redis"})
	assert.Error(t, err)
}
