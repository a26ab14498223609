// Package httpd exposes the inbound webhook and the liveness endpoint.
package httpd

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	logx "remindbot/pkg/logx"
)

// Responder handles one inbound message and returns the reply text.
type Responder interface {
	Handle(ctx context.Context, recipient, text string) string
}

// Health reports firing-loop liveness for /healthz.
type Health interface {
	Running() bool
	LastSweep() time.Time
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	cfg    Config
	log    logx.Logger
	resp   Responder
	health Health

	srv *http.Server
}

func New(cfg Config, resp Responder, health Health, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	s := &Server{cfg: cfg, log: log, resp: resp, health: health}
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Routes builds the router. Exposed separately so tests can mount it on
// httptest servers.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Post("/webhook", s.handleWebhook)
	r.Get("/healthz", s.handleHealthz)
	return r
}

func (s *Server) Start() {
	go func() {
		s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown", logx.Err(err))
	}
}

// twiml is the messaging transport's XML reply envelope.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}
	body := strings.TrimSpace(r.PostFormValue("Body"))
	from := strings.TrimSpace(r.PostFormValue("From"))
	if body == "" || from == "" {
		http.Error(w, "missing Body or From", http.StatusBadRequest)
		return
	}

	reply := s.resp.Handle(r.Context(), from, body)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(twiml{Message: reply}); err != nil {
		s.log.Warn("webhook reply encode failed", logx.Err(err))
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	type health struct {
		Status    string `json:"status"`
		Firing    bool   `json:"firing_loop"`
		LastSweep string `json:"last_sweep,omitempty"`
	}
	h := health{Status: "ok", Firing: s.health.Running()}
	if t := s.health.LastSweep(); !t.IsZero() {
		h.LastSweep = t.Format(time.RFC3339)
	}
	code := http.StatusOK
	if !h.Firing {
		h.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, h)
}
