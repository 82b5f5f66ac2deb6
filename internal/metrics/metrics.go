package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProxyRequests counts requests relayed through the playlist/segment proxy.
var ProxyRequests = promauto.NewCounter(prometheus.CounterOpts{
	Name: "f1hub_proxy_requests_total",
	Help: "Total number of proxy requests",
})

// ProxyErrors counts proxy requests that ended in an error response, including
// disguised HTML error pages and implausibly small segments.
var ProxyErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "f1hub_proxy_errors_total",
	Help: "Total number of failed proxy requests",
})

// ManifestsRewritten counts playlists that were rewritten for re-proxying.
var ManifestsRewritten = promauto.NewCounter(prometheus.CounterOpts{
	Name: "f1hub_proxy_manifests_rewritten_total",
	Help: "Total number of rewritten playlists",
})

// SegmentsServed counts binary segments forwarded to clients.
var SegmentsServed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "f1hub_proxy_segments_served_total",
	Help: "Total number of segments served",
})

// ActiveSessions tracks the number of live restream sessions, one per
// transcoding process.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "f1hub_restream_active_sessions",
	Help: "Number of active restream sessions",
})

// ClientsConnected tracks the number of clients attached per channel.
var ClientsConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "f1hub_restream_clients_connected",
	Help: "Number of clients connected",
}, []string{"channel"})

// CacheHits and CacheMisses count aggregator cache lookups.
var CacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "f1hub_aggregator_cache_hits_total",
	Help: "Total number of aggregator cache hits",
})

var CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "f1hub_aggregator_cache_misses_total",
	Help: "Total number of aggregator cache misses",
})
