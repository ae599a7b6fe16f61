// Package api serves the comparison engine, job progress and comparison
// history over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/recordmatch/internal/config"
	"github.com/sells-group/recordmatch/internal/progress"
	"github.com/sells-group/recordmatch/internal/runner"
	"github.com/sells-group/recordmatch/internal/store"
)

// formMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const formMemory = 32 << 20

// Server holds the handlers' dependencies.
type Server struct {
	store   store.Store
	tracker *progress.Tracker
	runner  *runner.Runner
	cfg     config.ServerConfig
	match   config.MatchConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// NewServer creates a Server. A CompareRPS of zero disables rate limiting.
func NewServer(st store.Store, tr *progress.Tracker, rn *runner.Runner, srv config.ServerConfig, mc config.MatchConfig) *Server {
	s := &Server{
		store:   st,
		tracker: tr,
		runner:  rn,
		cfg:     srv,
		match:   mc,
		now:     time.Now,
	}
	if srv.CompareRPS > 0 {
		burst := srv.CompareBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(srv.CompareRPS), burst)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/preview", s.handlePreview)
		r.Post("/suggest", s.handleSuggest)
		r.With(s.rateLimit).Post("/compare", s.handleCompare)

		r.Get("/jobs/{id}", s.handleJob)
		r.Get("/jobs/{id}/events", s.handleJobEvents)

		r.Get("/history", s.handleHistory)
		r.Delete("/history/{id}", s.handleDeleteHistory)
		r.Get("/comparison/{id}", s.handleComparison)
		r.Get("/export/{id}", s.handleExport)
	})
	return r
}

func (s *Server) origins() []string {
	if len(s.cfg.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.CORSOrigins
}

// rateLimit rejects requests beyond the configured compare rate with 429.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many comparison requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("api: request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("api: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
