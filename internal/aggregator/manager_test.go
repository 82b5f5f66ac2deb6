package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"f1hub/internal/config"
)

type countingDiscoverer struct {
	calls int
	err   error
}

func (d *countingDiscoverer) Discover(ctx context.Context, race string) ([]Stream, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return []Stream{
		{ID: "dlhd-1", Title: "Sky Sports F1", Source: "DLHD", Quality: "1080p", URL: "https://fake-stream-url.m3u8"},
	}, nil
}

func testManager(ttl time.Duration) (*ManagerCtx, *countingDiscoverer, *time.Time) {
	m := New(config.Aggregator{TTL: ttl})

	d := &countingDiscoverer{}
	m.discoverer = d

	now := time.Now()
	m.now = func() time.Time { return now }

	return m, d, &now
}

func TestGetLiveThenCache(t *testing.T) {
	m, d, _ := testManager(5 * time.Minute)

	source, first, err := m.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "live", source)
	assert.Equal(t, 1, d.calls)

	source, second, err := m.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "cache", source)
	assert.Equal(t, 1, d.calls, "cached call must not hit discovery")
	assert.Equal(t, first, second)

	source, third, err := m.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "cache", source)
	assert.Equal(t, first, third)
}

func TestGetExpiry(t *testing.T) {
	m, d, now := testManager(5 * time.Minute)

	_, _, err := m.Get(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 1, d.calls)

	*now = now.Add(6 * time.Minute)

	source, _, err := m.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "live", source)
	assert.Equal(t, 2, d.calls, "expired cache triggers exactly one new discovery")
}

func TestGetDiscoveryFailure(t *testing.T) {
	m, d, _ := testManager(5 * time.Minute)
	d.err = errors.New("scrape failed")

	_, _, err := m.Get(context.Background(), "monza")
	assert.Error(t, err)
}

func TestGetFailureDoesNotPoisonCache(t *testing.T) {
	m, d, _ := testManager(5 * time.Minute)
	d.err = errors.New("scrape failed")

	_, _, err := m.Get(context.Background(), "")
	require.Error(t, err)

	d.err = nil

	source, data, err := m.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "live", source)
	assert.NotEmpty(t, data)
}
