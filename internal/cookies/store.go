package cookies

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StoreCtx accumulates upstream cookies per origin hostname, so that
// multi-step authentication flows survive across stateless proxy requests.
// Entries are overwritten wholesale on every Set-Cookie and never expire;
// these are short-lived anti-bot cookies, not session-critical state.
type StoreCtx struct {
	logger zerolog.Logger
	jar    *xsync.MapOf[string, string]
}

func New() *StoreCtx {
	return &StoreCtx{
		logger: log.With().Str("module", "cookies").Logger(),
		jar:    xsync.NewMapOf[string, string](),
	}
}

// Get returns the accumulated Cookie header value for a hostname.
func (s *StoreCtx) Get(hostname string) (string, bool) {
	return s.jar.Load(hostname)
}

// Set stores the concatenation of raw Set-Cookie values against a hostname,
// replacing any prior value. Last write wins.
func (s *StoreCtx) Set(hostname string, setCookies []string) {
	if len(setCookies) == 0 {
		return
	}

	value := strings.Join(setCookies, "; ")
	s.jar.Store(hostname, value)

	s.logger.Debug().Str("hostname", hostname).Msg("stored cookies")
}
