package restream

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// read size for the transcode output loop
const chunkSize = 32 * 1024

// SourceUrl builds the upstream manifest URL of an Xstream-style provider.
func SourceUrl(server, username, password, channelId string) string {
	return fmt.Sprintf("%s/live/%s/%s/%s.m3u8", strings.TrimSuffix(server, "/"), username, password, channelId)
}

// client is one attached downstream response with its own bounded queue.
type client struct {
	ch chan []byte
}

// session exclusively owns one external transcoding process. Nobody else may
// signal it or read from it; teardown happens once, guarded by torndown under
// the manager lock.
type session struct {
	logger    zerolog.Logger
	cmd       *exec.Cmd
	startedAt time.Time

	clients  map[*client]struct{}
	torndown bool
}

func (m *ManagerCtx) startSession(key StreamKey, sourceUrl string) (*session, error) {
	logger := m.logger.With().
		Str("channel", key.ChannelID).
		Str("username", key.Username).
		Logger()

	cmd := m.cmdFactory(sourceUrl)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	cmd.Stderr = &transcodeLogWriter{logger: logger}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	s := &session{
		logger:    logger,
		cmd:       cmd,
		startedAt: time.Now(),
		clients:   make(map[*client]struct{}),
	}

	logger.Info().Int("pid", cmd.Process.Pid).Msg("transcode started")

	// single producer: copy process output to all attached clients
	go func() {
		buf := make([]byte, chunkSize)

		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				m.broadcast(key, s, chunk)
			}

			if err != nil {
				break
			}
		}

		if err := cmd.Wait(); err != nil {
			logger.Warn().Err(err).Msg("transcode exited with an error")
		} else {
			logger.Info().Msg("transcode exited")
		}

		m.sessionExited(key, s)
	}()

	return s, nil
}

// ffmpegCmd builds the fixed transcode profile: read the upstream at live
// pace, pass the video track through, transcode audio to stereo AAC and emit
// an MPEG-TS container on stdout.
func (m *ManagerCtx) ffmpegCmd(sourceUrl string) *exec.Cmd {
	cmd := exec.Command(m.config.FFmpegBinary,
		"-re",
		"-user_agent", m.config.UserAgent,
		"-i", sourceUrl,
		"-c:v", "copy",
		"-c:a", "aac",
		"-ac", "2",
		"-b:a", fmt.Sprintf("%dk", m.config.AudioBitrate),
		"-f", "mpegts",
		"pipe:1",
	)
	cmd.SysProcAttr = configureAsProcessGroup()
	return cmd
}

// transcodeLogWriter forwards only notable ffmpeg stderr lines, the rest is
// per-frame progress noise.
type transcodeLogWriter struct {
	logger zerolog.Logger
}

func (l *transcodeLogWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))

	if strings.Contains(msg, "Input #") ||
		strings.Contains(msg, "Output #") ||
		strings.Contains(msg, "Stream #") ||
		strings.Contains(msg, "error") ||
		strings.Contains(msg, "Error") {
		l.logger.Warn().Str("submodule", "ffmpeg").Msg(msg)
	}

	return len(p), nil
}
