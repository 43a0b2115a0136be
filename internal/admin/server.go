package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"triad-console/internal/attacks"
	"triad-console/internal/config"
	"triad-console/internal/demo"
	"triad-console/internal/ota"
	"triad-console/internal/proof"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	Engine demo.Controller
	Proof  demo.ProofRunner
	OTA    config.OTAConfig
	Log    *slog.Logger

	// ctx outlives requests; attacks keep running after the response.
	ctx context.Context
	tpl *template.Template
	mux *http.ServeMux
}

//go:embed templates/index.html
var content embed.FS

func NewServer(engine demo.Controller, runner demo.ProofRunner, otaCfg config.OTAConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{Engine: engine, Proof: runner, OTA: otaCfg, Log: log, ctx: context.Background(), tpl: tpl}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /state", s.handleState)
	s.mux.HandleFunc("GET /attacks", s.handleAttacks)
	s.mux.HandleFunc("POST /attack", s.handleAttack)
	s.mux.HandleFunc("POST /run-all", s.handleRunAll)
	s.mux.HandleFunc("POST /reset", s.handleReset)
	s.mux.HandleFunc("POST /sensor", s.handleSensor)
	s.mux.HandleFunc("GET /ota", s.handleOTA)
	s.mux.HandleFunc("POST /proof", s.handleProof)
}

// Handler exposes the routes for embedding and tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.ctx = ctx
	srv := &http.Server{Addr: addr, Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.Log.Error("admin shutdown", "err", err)
		}
	}()
	s.Log.Info("admin server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Snapshot demo.Snapshot
		Attacks  []attacks.Config
		Networks []ota.Network
	}{
		Snapshot: s.Engine.Snapshot(),
		Attacks:  attacks.All(),
		Networks: ota.Networks(),
	}
	if err := s.tpl.Execute(w, data); err != nil {
		s.Log.Error("render index", "err", err)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Snapshot())
}

func (s *Server) handleAttacks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, attacks.All())
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if !attacks.IsKnown(id) {
		http.Error(w, "unknown attack "+strconv.Quote(id), http.StatusBadRequest)
		return
	}
	if err := s.Engine.Trigger(s.ctx, id); err != nil {
		s.writeError(w, err)
		return
	}
	s.Log.Info("attack triggered via admin", "attack", id)
	writeJSON(w, http.StatusAccepted, map[string]string{"attack": id})
}

func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.RunAll(s.ctx); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Reset(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.SensorCheck(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Snapshot().Metrics)
}

func (s *Server) handleOTA(w http.ResponseWriter, r *http.Request) {
	fleet := s.OTA.FleetSize
	if v := r.URL.Query().Get("fleet"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "fleet must be a positive integer", http.StatusBadRequest)
			return
		}
		fleet = n
	}
	network := s.OTA.Network
	if v := r.URL.Query().Get("network"); v != "" {
		network = v
	}
	writeJSON(w, http.StatusOK, ota.Calculate(ota.Inputs{
		FleetSize:     fleet,
		Network:       ota.Lookup(network),
		InterpretedMB: s.OTA.InterpretedMB,
		WasmMB:        s.OTA.WasmMB,
	}))
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	if s.Proof == nil {
		http.Error(w, "proof runner not configured", http.StatusServiceUnavailable)
		return
	}
	res, err := s.Proof.Run(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, demo.ErrBusy), errors.Is(err, proof.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, demo.ErrRuntimeNotReady):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.Log.Error("admin request failed", "err", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
