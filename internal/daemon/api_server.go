package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"stagehand/internal/api"
	"stagehand/internal/config"
	"stagehand/internal/logging"
	"stagehand/internal/sounds"
)

type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  cfg.Paths.APIToken,
		logger: logger,
		daemon: d,
	}
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(srv.token, next)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", auth(srv.handleStatus))
	mux.HandleFunc("GET /api/bundles", auth(srv.handleBundles))
	mux.HandleFunc("GET /api/assets", auth(srv.handleAssets))
	mux.HandleFunc("GET /api/graphics/instances", auth(srv.handleGraphics))
	mux.HandleFunc("GET /api/sounds", auth(srv.handleSounds))
	mux.HandleFunc("PUT /api/sounds/{namespace}/{cue}", auth(srv.handleSoundUpdate))
	mux.HandleFunc("GET /socket", auth(d.hub.ServeHTTP))
	d.gateway.Register(mux, auth)
	srv.handler = mux
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleBundles(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.BundleListResponse{Bundles: api.FromBundles(s.daemon.Bundles())})
}

func (s *apiServer) handleAssets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.daemon.Assets(strings.TrimSpace(query.Get("namespace")), strings.TrimSpace(query.Get("category")))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGraphics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.GraphicListResponse{Instances: api.FromInstances(s.daemon.GraphicInstances())})
}

func (s *apiServer) handleSounds(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.SoundCues(strings.TrimSpace(r.URL.Query().Get("namespace")))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleSoundUpdate(w http.ResponseWriter, r *http.Request) {
	var update api.SoundCueUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&update); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sound cue update")
		return
	}
	cue, err := s.daemon.UpdateSoundCue(r.PathValue("namespace"), r.PathValue("cue"), update)
	switch {
	case errors.Is(err, sounds.ErrUnknownCue):
		s.writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, cue)
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
