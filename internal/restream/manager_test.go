//go:build !windows
// +build !windows

package restream

import (
	"net/http"
	"net/http/httptest"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"f1hub/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testManager(idle time.Duration) *ManagerCtx {
	m := New(config.Restream{
		FFmpegBinary: "ffmpeg",
		UserAgent:    "VLC/3.0.18 LibVLC/3.0.18",
		AudioBitrate: 192,
		IdleTimeout:  idle,
		ClientBuffer: 256,
	})

	// endless producer stands in for the transcoding process
	m.cmdFactory = func(sourceUrl string) *exec.Cmd {
		cmd := exec.Command("sh", "-c", "while true; do echo live-data; sleep 0.02; done")
		cmd.SysProcAttr = configureAsProcessGroup()
		return cmd
	}

	return m
}

func sessionPid(t *testing.T, m *ManagerCtx, key StreamKey) int {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	require.True(t, ok, "session must exist")
	return s.cmd.Process.Pid
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func TestAttachDetachLifecycle(t *testing.T) {
	m := testManager(100 * time.Millisecond)
	key := StreamKey{Username: "user", ChannelID: "42"}

	const n = 5
	clients := make([]*client, n)

	for i := range clients {
		c, err := m.attach(key, "http://upstream/live/user/pass/42.m3u8")
		require.NoError(t, err)
		clients[i] = c
	}

	assert.Equal(t, 1, m.Sessions(), "concurrent attaches share one session")
	pid := sessionPid(t, m, key)

	for _, c := range clients {
		m.detach(key, c)
	}

	// session survives into the grace window
	assert.Equal(t, 1, m.Sessions())

	require.Eventually(t, func() bool {
		return m.Sessions() == 0 && !processAlive(pid)
	}, 2*time.Second, 20*time.Millisecond, "idle session must be torn down after the grace window")
}

func TestGraceReattach(t *testing.T) {
	m := testManager(100 * time.Millisecond)
	key := StreamKey{Username: "user", ChannelID: "42"}

	c, err := m.attach(key, "http://upstream/live/user/pass/42.m3u8")
	require.NoError(t, err)
	pid := sessionPid(t, m, key)

	m.detach(key, c)

	// attach again before the grace timer fires
	c2, err := m.attach(key, "http://upstream/live/user/pass/42.m3u8")
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, 1, m.Sessions(), "re-attach must cancel the teardown")
	assert.True(t, processAlive(pid), "process must still be alive")
	assert.Equal(t, pid, sessionPid(t, m, key), "same process must be reused")

	m.detach(key, c2)
	m.Shutdown()

	require.Eventually(t, func() bool {
		return !processAlive(pid)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDistinctKeysDistinctSessions(t *testing.T) {
	m := testManager(time.Minute)

	_, err := m.attach(StreamKey{Username: "user", ChannelID: "1"}, "http://upstream/live/user/pass/1.m3u8")
	require.NoError(t, err)
	_, err = m.attach(StreamKey{Username: "user", ChannelID: "2"}, "http://upstream/live/user/pass/2.m3u8")
	require.NoError(t, err)

	assert.Equal(t, 2, m.Sessions())

	m.Shutdown()
	assert.Equal(t, 0, m.Sessions())
}

func TestFanOut(t *testing.T) {
	m := testManager(time.Minute)
	key := StreamKey{Username: "user", ChannelID: "42"}

	c1, err := m.attach(key, "http://upstream/live/user/pass/42.m3u8")
	require.NoError(t, err)
	c2, err := m.attach(key, "http://upstream/live/user/pass/42.m3u8")
	require.NoError(t, err)

	for _, c := range []*client{c1, c2} {
		select {
		case chunk, ok := <-c.ch:
			require.True(t, ok)
			assert.Contains(t, string(chunk), "live-data")
		case <-time.After(2 * time.Second):
			t.Fatal("client received no data")
		}
	}

	m.Shutdown()
}

func TestSlowClientDropped(t *testing.T) {
	m := testManager(time.Minute)
	m.config.ClientBuffer = 1
	key := StreamKey{Username: "user", ChannelID: "42"}

	c, err := m.attach(key, "http://upstream/live/user/pass/42.m3u8")
	require.NoError(t, err)

	// never read: the bounded queue fills, the client gets dropped
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()

		s, ok := m.sessions[key]
		if !ok {
			return false
		}
		_, attached := s.clients[c]
		return !attached
	}, 2*time.Second, 20*time.Millisecond, "slow client must be dropped")

	m.Shutdown()
}

func TestServeStreamsProcessOutput(t *testing.T) {
	m := testManager(time.Minute)

	// finite producer: output once, then exit
	m.cmdFactory = func(sourceUrl string) *exec.Cmd {
		cmd := exec.Command("sh", "-c", "printf 'streaming-bytes'")
		cmd.SysProcAttr = configureAsProcessGroup()
		return cmd
	}

	r := httptest.NewRequest(http.MethodGet, "/restream/42?server=http://upstream&username=user&password=pass", nil)
	w := httptest.NewRecorder()

	m.Serve(w, r, StreamKey{Username: "user", ChannelID: "42"}, "http://upstream/live/user/pass/42.m3u8")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp2t", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Body.String(), "streaming-bytes")

	// the process exited on its own, the session must be gone
	require.Eventually(t, func() bool {
		return m.Sessions() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServeSpawnFailure(t *testing.T) {
	m := testManager(time.Minute)

	m.cmdFactory = func(sourceUrl string) *exec.Cmd {
		return exec.Command("/nonexistent-transcoder-binary")
	}

	r := httptest.NewRequest(http.MethodGet, "/restream/42", nil)
	w := httptest.NewRecorder()

	m.Serve(w, r, StreamKey{Username: "user", ChannelID: "42"}, "http://upstream/live/user/pass/42.m3u8")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, m.Sessions())
}

func TestSourceUrl(t *testing.T) {
	tests := []struct {
		name   string
		server string
		want   string
	}{
		{
			name:   "plain server",
			server: "http://provider.example.com",
			want:   "http://provider.example.com/live/user/pass/42.m3u8",
		},
		{
			name:   "trailing slash",
			server: "http://provider.example.com/",
			want:   "http://provider.example.com/live/user/pass/42.m3u8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SourceUrl(tt.server, "user", "pass", "42"); got != tt.want {
				t.Errorf("SourceUrl() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTranscodeLogWriterConsumesEverything(t *testing.T) {
	w := &transcodeLogWriter{logger: zerolog.Nop()}

	for _, line := range []string{
		"frame= 1234 fps=25 q=-1.0 size=1024kB",
		"Input #0, hls, from 'http://upstream/live.m3u8':",
		"Error while decoding stream",
	} {
		n, err := w.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
}
