package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"crypto-trade-bot-go/internal/broadcast"

	"go.uber.org/zap"
)

// APIServer is the HTTP control surface for the trading engine: status
// and read-only views, plus start/stop and the paper/live mode switch.
type APIServer struct {
	server *http.Server
	engine *Engine
	hub    *broadcast.Hub
	logger *zap.Logger
}

// NewAPIServer creates a new APIServer.
func NewAPIServer(engine *Engine, hub *broadcast.Hub, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine: engine,
		hub:    hub,
		logger: logger.Named("api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/portfolio", s.portfolioHandler)
	mux.HandleFunc("/trades", s.tradesHandler)
	mux.HandleFunc("/signals", s.signalsHandler)
	mux.HandleFunc("/start", s.startHandler)
	mux.HandleFunc("/stop", s.stopHandler)
	mux.HandleFunc("/mode", s.modeHandler)
	if hub != nil {
		mux.HandleFunc("/ws", hub.ServeWS)
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", engine.cfg.Engine.ApiPort),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	state := s.engine.State()
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"uuid":          s.engine.UUID,
		"active":        state.Active,
		"mode":          state.Mode,
		"start_time":    s.engine.StartTime.Format(time.RFC3339),
		"uptime":        time.Since(s.engine.StartTime).String(),
		"ticks":         s.engine.TickCount(),
		"skipped_ticks": s.engine.SkippedTicks(),
		"ws_clients":    clients,
	})
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) portfolioHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Portfolio())
}

func (s *APIServer) tradesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = parsed
	}
	s.writeJSON(w, http.StatusOK, s.engine.Trades(limit))
}

func (s *APIServer) signalsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Signals())
}

func (s *APIServer) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("POST required"))
		return
	}
	if err := s.engine.Start(); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *APIServer) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("POST required"))
		return
	}
	if err := s.engine.Stop(); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *APIServer) modeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("POST required"))
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if err := s.engine.SwitchMode(req.Mode); err != nil {
		status := http.StatusBadRequest
		if s.engine.State().Active {
			status = http.StatusConflict
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.State())
}
