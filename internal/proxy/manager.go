package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"f1hub/internal/config"
	"f1hub/internal/cookies"
	"f1hub/internal/metrics"
)

// how many bytes of a rejected body end up in the diagnostic log
const errorExcerptLen = 500

type ManagerCtx struct {
	logger  zerolog.Logger
	config  config.Upstream
	cookies *cookies.StoreCtx
	client  *http.Client
}

func New(config config.Upstream, cookies *cookies.StoreCtx) *ManagerCtx {
	return &ManagerCtx{
		logger:  log.With().Str("module", "proxy").Logger(),
		config:  config,
		cookies: cookies,
		client: &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= config.MaxRedirects {
					return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
				}
				return nil
			},
		},
	}
}

// Serve relays the content at the url query parameter. Manifests are rewritten
// so that every reference they contain goes back through this proxy, segments
// are forwarded byte-for-byte. HTML bodies disguised as media are rejected.
func (m *ManagerCtx) Serve(w http.ResponseWriter, r *http.Request) {
	metrics.ProxyRequests.Inc()

	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}

	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		http.Error(w, "url must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}

	logger := m.logger.With().Str("url", raw).Logger()
	logger.Debug().Msg("fetching upstream")

	resp, err := m.fetch(r.Context(), target)
	if err != nil {
		metrics.ProxyErrors.Inc()

		if isTimeout(err) {
			logger.Warn().Err(err).Msg("upstream timeout")
			http.Error(w, "upstream not responding", http.StatusGatewayTimeout)
			return
		}

		logger.Warn().Err(err).Msg("upstream unreachable")
		http.Error(w, "upstream unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProxyErrors.Inc()
		logger.Warn().Err(err).Msg("unable to read upstream body")
		http.Error(w, "upstream read failed", http.StatusBadGateway)
		return
	}

	// accumulate cookies for follow-up segment requests on the same origin
	if setCookies := resp.Header.Values("Set-Cookie"); len(setCookies) > 0 {
		m.cookies.Set(target.Hostname(), setCookies)
	}

	contentType := resp.Header.Get("Content-Type")

	if isManifest(contentType, target) {
		m.serveManifest(w, logger, body, target)
		return
	}

	m.serveSegment(w, logger, body, contentType)
}

func (m *ManagerCtx) serveManifest(w http.ResponseWriter, logger zerolog.Logger, body []byte, target *url.URL) {
	// origins tend to answer expired credentials with an HTML error page
	// and a 200, so the body is the only trustworthy signal
	if isHTML(body) {
		metrics.ProxyErrors.Inc()
		logger.Warn().Str("excerpt", excerpt(body)).Msg("received HTML instead of playlist, authentication failed")
		http.Error(w, "authentication failed, upstream returned error page", http.StatusForbidden)
		return
	}

	rewritten := Rewrite(body, target)

	kind, entries := probe(rewritten)
	logger.Debug().Str("kind", kind).Int("entries", entries).Msg("rewrote playlist")
	metrics.ManifestsRewritten.Inc()

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	noCache(w)
	w.WriteHeader(http.StatusOK)
	//nolint
	_, _ = w.Write(rewritten)
}

func (m *ManagerCtx) serveSegment(w http.ResponseWriter, logger zerolog.Logger, body []byte, contentType string) {
	if strings.Contains(contentType, "text/html") {
		metrics.ProxyErrors.Inc()
		logger.Warn().Str("excerpt", excerpt(body)).Msg("received HTML instead of segment, authentication failed")
		http.Error(w, "authentication failed, cannot fetch segment", http.StatusForbidden)
		return
	}

	if len(body) < m.config.MinSegmentSize {
		metrics.ProxyErrors.Inc()
		logger.Warn().Int("size", len(body)).Str("excerpt", excerpt(body)).Msg("response too small for a segment")
		http.Error(w, "invalid segment data received", http.StatusBadGateway)
		return
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	noCache(w)
	w.WriteHeader(http.StatusOK)
	//nolint
	_, _ = w.Write(body)

	metrics.SegmentsServed.Inc()
}

func (m *ManagerCtx) fetch(ctx context.Context, target *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}

	// mimic a known-good media client, deliberately without Referer/Origin
	req.Header.Set("User-Agent", m.config.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	if cookie, ok := m.cookies.Get(target.Hostname()); ok {
		req.Header.Set("Cookie", cookie)
		m.logger.Debug().Str("hostname", target.Hostname()).Msg("using stored cookies")
	}

	// upstream 4xx/5xx are not transport failures, the body decides the outcome
	return m.client.Do(req)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isManifest(contentType string, target *url.URL) bool {
	return strings.Contains(contentType, "mpegurl") ||
		strings.HasSuffix(target.Path, ".m3u8")
}

func isHTML(body []byte) bool {
	prefix := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(prefix, "<!doctype") || strings.Contains(prefix, "<html")
}

func excerpt(body []byte) string {
	return string(body[:min(len(body), errorExcerptLen)])
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
