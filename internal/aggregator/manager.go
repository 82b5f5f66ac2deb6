package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"f1hub/internal/config"
	"f1hub/internal/metrics"
)

// Stream is one discovered stream descriptor, as exposed to the client.
type Stream struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// Discoverer performs the upstream stream-discovery call.
type Discoverer interface {
	Discover(ctx context.Context, race string) ([]Stream, error)
}

// ManagerCtx shields the discovery origin behind a single short-TTL cache
// slot. Concurrent misses may each trigger a discovery call; discovery is
// idempotent and cheap, so no single-flight is attempted.
type ManagerCtx struct {
	logger     zerolog.Logger
	ttl        time.Duration
	discoverer Discoverer

	mu         sync.Mutex
	streams    []Stream
	lastUpdate time.Time

	now func() time.Time
}

func New(config config.Aggregator) *ManagerCtx {
	return &ManagerCtx{
		logger:     log.With().Str("module", "aggregator").Logger(),
		ttl:        config.TTL,
		discoverer: &StaticDiscoverer{Sources: config.Sources},
		now:        time.Now,
	}
}

// Get returns the cached stream list while it is fresh, otherwise performs a
// discovery call and caches its result. The source return value tells the
// client which path was taken: "cache" or "live".
func (m *ManagerCtx) Get(ctx context.Context, race string) (source string, data []Stream, err error) {
	m.mu.Lock()
	if m.streams != nil && m.now().Sub(m.lastUpdate) < m.ttl {
		data = m.streams
		m.mu.Unlock()

		metrics.CacheHits.Inc()
		m.logger.Debug().Msg("serving streams from cache")
		return "cache", data, nil
	}
	m.mu.Unlock()

	metrics.CacheMisses.Inc()
	m.logger.Info().Str("race", race).Msg("performing stream discovery")

	data, err = m.discoverer.Discover(ctx, race)
	if err != nil {
		return "", nil, err
	}

	m.mu.Lock()
	m.streams = data
	m.lastUpdate = m.now()
	m.mu.Unlock()

	return "live", data, nil
}

// StaticDiscoverer stands in for scraping the configured discovery endpoints.
// Real token/playlist extraction would live behind the same interface.
type StaticDiscoverer struct {
	Sources map[string]string
}

func (d *StaticDiscoverer) Discover(ctx context.Context, race string) ([]Stream, error) {
	return []Stream{
		{ID: "dlhd-1", Title: "Sky Sports F1", Source: "DLHD", Quality: "1080p", URL: "https://fake-stream-url.m3u8"},
		{ID: "sm-1", Title: "F1 TV Pro", Source: "Streamed.pk", Quality: "720p", URL: "https://fake-stream-url-2.m3u8"},
	}, nil
}
