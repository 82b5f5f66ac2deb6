package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type logformatter struct {
	logger zerolog.Logger
}

func (l *logformatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	req := map[string]interface{}{}

	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		req["id"] = reqID
	}

	req["scheme"] = "http"
	if r.TLS != nil {
		req["scheme"] = "https"
	}

	req["proto"] = r.Proto
	req["method"] = r.Method
	req["remote"] = r.RemoteAddr
	req["agent"] = r.UserAgent()
	req["uri"] = r.RequestURI

	return &logentry{
		logger: l.logger.With().Fields(req).Logger(),
	}
}

type logentry struct {
	logger zerolog.Logger
	err    error
}

func (e *logentry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	res := map[string]interface{}{}
	res["time"] = time.Now().UTC().Format(time.RFC1123)
	res["status"] = status
	res["bytes"] = bytes
	res["elapsed"] = float64(elapsed.Nanoseconds()) / 1000000.0

	logger := e.logger.With().Fields(map[string]interface{}{"res": res}).Logger()

	if e.err != nil {
		logger.Err(e.err).Msgf("request failed (%d)", status)
	} else if status >= 500 {
		logger.Error().Msgf("request failed (%d)", status)
	} else {
		logger.Debug().Msgf("request complete (%d)", status)
	}
}

func (e *logentry) Panic(v interface{}, stack []byte) {
	e.logger.Error().
		Str("stack", string(stack)).
		Interface("panic", v).
		Msg("request panic")
}
