package fx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls int
	value float64
	err   error
}

func (s *countingSource) Value(_ context.Context, _ time.Time) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.value, nil
}

func TestCacheReadThrough(t *testing.T) {
	source := &countingSource{value: 38_500.25}
	cache := NewCache(source, time.Hour)
	defer cache.Close()

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first, err := cache.Value(context.Background(), date)
	require.NoError(t, err)
	assert.InDelta(t, 38_500.25, first, 0.001)
	assert.Equal(t, 1, source.calls)

	// Second lookup for the same date hits the cache.
	second, err := cache.Value(context.Background(), date)
	require.NoError(t, err)
	assert.InDelta(t, 38_500.25, second, 0.001)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 1, cache.Size())

	// A different date goes back through the source.
	_, err = cache.Value(context.Background(), date.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCacheSourceFailure(t *testing.T) {
	source := &countingSource{err: errors.New("quote service down")}
	cache := NewCache(source, time.Hour)
	defer cache.Close()

	_, err := cache.Value(context.Background(), time.Now())
	require.Error(t, err)
	assert.Greater(t, source.calls, 1, "transient failures are retried")
	assert.Equal(t, 0, cache.Size())
}

func TestStaticSource(t *testing.T) {
	source := StaticSource{"2026-03-10": 38_000}
	date := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

	value, err := source.Value(context.Background(), date)
	require.NoError(t, err)
	assert.InDelta(t, 38_000, value, 0.001)

	_, err = source.Value(context.Background(), date.AddDate(0, 0, 1))
	assert.Error(t, err)
}
