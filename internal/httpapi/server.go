package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/romonitor/internal/httpapi/middleware"
	"github.com/hamed0406/romonitor/internal/scheduler"
	"github.com/hamed0406/romonitor/internal/tracker"
)

// StatusSource is the read side of the monitor.
type StatusSource interface {
	LastReport() (scheduler.CycleReport, bool)
	SiteStates() []tracker.Entry
}

type Server struct {
	Logger     *zap.Logger
	Status     StatusSource
	APIKeys    []string
	RatePerMin int
}

func NewServer(l *zap.Logger, st StatusSource, keys []string, ratePerMin int) *Server {
	return &Server{Logger: l, Status: st, APIKeys: keys, RatePerMin: ratePerMin}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(s.RatePerMin))
		r.Use(apimw.RequireKey(s.APIKeys))
		r.Get("/sites", s.handleSites)
		r.Get("/cycles/latest", s.handleLatestCycle)
	})
	return r
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	states := s.Status.SiteStates()
	if states == nil {
		states = []tracker.Entry{}
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleLatestCycle(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.Status.LastReport()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no cycle completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("status_api_listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutCtx)
	if e := <-errCh; e != nil && !errors.Is(e, http.ErrServerClosed) && err == nil {
		err = e
	}
	s.Logger.Info("status_api_stopped")
	return err
}
