// Package server hosts the reference presign and confirmation API that the
// upload client talks to.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"uploadflow/internal/auth"
	"uploadflow/internal/config"
	"uploadflow/internal/presign"
	"uploadflow/internal/response"
)

type Server struct {
	log     logrus.FieldLogger
	cfg     *config.Config
	handler *presign.Handler
}

func New(log logrus.FieldLogger, cfg *config.Config, handler *presign.Handler) *Server {
	return &Server{
		log:     log.WithField("component", "server"),
		cfg:     cfg,
		handler: handler,
	}
}

// HTTPServer returns an http.Server listening on the configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%s", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// Router constructs the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.Plain(w, http.StatusOK, "OK")
	})

	r.Route("/v1/uploads", func(r chi.Router) {
		r.Use(auth.APIKeyMiddleware(&auth.Config{APIKey: s.cfg.APIKey}))

		r.Post("/presign", s.handler.HandlePresign)
		r.Post("/confirm", s.handler.HandleConfirm)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", ww.Status()).
			WithField("remote", r.RemoteAddr).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
		MaxAge:         300,
	}

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
