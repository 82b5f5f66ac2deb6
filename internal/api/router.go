package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"f1hub/internal/aggregator"
	"f1hub/internal/config"
	"f1hub/internal/cookies"
	"f1hub/internal/proxy"
	"f1hub/internal/restream"
)

type ApiManagerCtx struct {
	logger     zerolog.Logger
	config     *config.Server
	cookies    *cookies.StoreCtx
	proxy      *proxy.ManagerCtx
	restream   *restream.ManagerCtx
	aggregator *aggregator.ManagerCtx
}

func New(config *config.Server) *ApiManagerCtx {
	cookieStore := cookies.New()

	return &ApiManagerCtx{
		logger:     log.With().Str("module", "api").Logger(),
		config:     config,
		cookies:    cookieStore,
		proxy:      proxy.New(config.Upstream, cookieStore),
		restream:   restream.New(config.Restream),
		aggregator: aggregator.New(config.Aggregator),
	}
}

func (a *ApiManagerCtx) Start() {
	a.logger.Debug().Msg("api manager ready")
}

func (a *ApiManagerCtx) Shutdown() {
	a.restream.Shutdown()
}

func (a *ApiManagerCtx) Mount(r *chi.Mux) {
	r.Get("/health", a.Health)
	r.Get("/api/streams", a.Streams)
	r.Get("/restream/{channelId}", a.Restream)
	r.Get("/proxy", a.proxy.Serve)
	r.Handle("/metrics", promhttp.Handler())
}

func (a *ApiManagerCtx) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "OK",
		"system": "F1-Hub",
	})
}

func (a *ApiManagerCtx) Streams(w http.ResponseWriter, r *http.Request) {
	race := r.URL.Query().Get("race")

	source, data, err := a.aggregator.Get(r.Context(), race)
	if err != nil {
		a.logger.Err(err).Msg("stream discovery failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to fetch streams",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"source": source,
		"data":   data,
	})
}

func (a *ApiManagerCtx) Restream(w http.ResponseWriter, r *http.Request) {
	channelId := chi.URLParam(r, "channelId")

	query := r.URL.Query()
	server := query.Get("server")
	username := query.Get("username")
	password := query.Get("password")

	if server == "" || username == "" || password == "" {
		http.Error(w, "missing required parameters: server, username, password", http.StatusBadRequest)
		return
	}

	sourceUrl := restream.SourceUrl(server, username, password, channelId)
	key := restream.StreamKey{
		Username:  username,
		ChannelID: channelId,
	}

	a.logger.Info().Str("channel", channelId).Msg("restream requested")
	a.restream.Serve(w, r, key, sourceUrl)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint
	_ = json.NewEncoder(w).Encode(payload)
}
