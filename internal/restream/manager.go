package restream

import (
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"f1hub/internal/config"
	"f1hub/internal/metrics"
)

// StreamKey is the identity under which restream sessions are deduplicated.
// The server and password take part in the upstream URL only, so credential
// rotation does not spawn a duplicate session for the same logical channel.
type StreamKey struct {
	Username  string
	ChannelID string
}

type ManagerCtx struct {
	logger     zerolog.Logger
	config     config.Restream
	cmdFactory func(sourceUrl string) *exec.Cmd

	mu       sync.Mutex
	sessions map[StreamKey]*session
}

func New(config config.Restream) *ManagerCtx {
	m := &ManagerCtx{
		logger:   log.With().Str("module", "restream").Logger(),
		config:   config,
		sessions: make(map[StreamKey]*session),
	}
	m.cmdFactory = m.ffmpegCmd
	return m
}

// Serve attaches the response to the shared transcode for key, starting a new
// transcoding process when none is live, and copies its output until the
// client disconnects or the process exits. Late joiners receive data from the
// current position of the live output, there is no backfill.
func (m *ManagerCtx) Serve(w http.ResponseWriter, r *http.Request, key StreamKey, sourceUrl string) {
	c, err := m.attach(key, sourceUrl)
	if err != nil {
		m.logger.Warn().Err(err).Str("channel", key.ChannelID).Msg("transcode could not be started")
		http.Error(w, "transcode could not be started", http.StatusInternalServerError)
		return
	}
	defer m.detach(key, c)

	w.Header().Set("Content-Type", "video/mp2t")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if ok {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case chunk, ok := <-c.ch:
			if !ok {
				// process ended or the client was dropped as too slow
				return
			}

			if _, err := w.Write(chunk); err != nil {
				return
			}

			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// attach reuses the live session for key or starts a new one, and registers
// a client queue on it. Runs under the manager lock so that attach, detach
// and the grace-timer decision are serialized.
func (m *ManagerCtx) attach(key StreamKey, sourceUrl string) (*client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		var err error
		s, err = m.startSession(key, sourceUrl)
		if err != nil {
			return nil, err
		}

		m.sessions[key] = s
		metrics.ActiveSessions.Inc()
	} else {
		s.logger.Info().Msg("reusing existing transcode")
	}

	c := &client{ch: make(chan []byte, m.config.ClientBuffer)}
	s.clients[c] = struct{}{}

	count := len(s.clients)
	metrics.ClientsConnected.WithLabelValues(key.ChannelID).Set(float64(count))
	s.logger.Info().Int("clients", count).Msg("client attached")

	return c, nil
}

// detach unregisters a client. When the last one leaves, a grace timer is
// armed; the live client count is re-checked at the moment the timer fires,
// so an attach racing the timer deterministically wins.
func (m *ManagerCtx) detach(key StreamKey, c *client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return
	}

	// the broadcast path may have dropped this client already
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.ch)
	}

	count := len(s.clients)
	metrics.ClientsConnected.WithLabelValues(key.ChannelID).Set(float64(count))
	s.logger.Info().Int("clients", count).Msg("client detached")

	if count == 0 && !s.torndown {
		s.logger.Info().Dur("grace", m.config.IdleTimeout).Msg("last client left, arming teardown timer")
		time.AfterFunc(m.config.IdleTimeout, func() {
			m.reap(key, s)
		})
	}
}

// reap terminates the session's process if it is still idle when the grace
// timer fires.
func (m *ManagerCtx) reap(key StreamKey, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[key]
	if !ok || current != s || s.torndown {
		return
	}

	if len(s.clients) > 0 {
		s.logger.Debug().Msg("teardown canceled, clients attached again")
		return
	}

	s.logger.Info().Msg("killing idle transcode")
	s.torndown = true
	s.stop()

	delete(m.sessions, key)
	metrics.ActiveSessions.Dec()
}

// broadcast hands a chunk to every attached client. A client whose queue is
// full cannot keep up with the live pace and is dropped, so it never stalls
// the producer or its siblings.
func (m *ManagerCtx) broadcast(key StreamKey, s *session, chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for c := range s.clients {
		select {
		case c.ch <- chunk:
		default:
			delete(s.clients, c)
			close(c.ch)
			s.logger.Warn().Msg("dropping client, queue full")
		}
	}
}

// sessionExited removes a session whose process ended on its own. Attached
// clients just stop receiving data; a fresh request starts a new session.
func (m *ManagerCtx) sessionExited(key StreamKey, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for c := range s.clients {
		delete(s.clients, c)
		close(c.ch)
	}

	metrics.ClientsConnected.WithLabelValues(key.ChannelID).Set(0)

	if s.torndown {
		return
	}
	s.torndown = true

	if current, ok := m.sessions[key]; ok && current == s {
		delete(m.sessions, key)
		metrics.ActiveSessions.Dec()
	}
}

// Shutdown kills every live transcoding process.
func (m *ManagerCtx) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, s := range m.sessions {
		if !s.torndown {
			s.torndown = true
			s.stop()
		}

		for c := range s.clients {
			delete(s.clients, c)
			close(c.ch)
		}

		delete(m.sessions, key)
		metrics.ActiveSessions.Dec()
	}
}

// Sessions returns the number of live sessions.
func (m *ManagerCtx) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}
