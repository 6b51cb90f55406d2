// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intake-bot/internal/bot/dispatch"
	"intake-bot/internal/bot/watchdog"
	"intake-bot/internal/common/logger"
)

// Server exposes the webhook, the manual watchdog trigger, health and metrics.
type Server struct {
	port       int
	router     *mux.Router
	httpServer *http.Server
	log        logger.Logger
}

func New(port int, dispatcher *dispatch.Handler, wd *watchdog.Handler, log logger.Logger) *Server {
	s := &Server{
		port:   port,
		router: mux.NewRouter(),
		log:    log,
	}

	s.router.Use(s.loggingMiddleware)
	s.router.HandleFunc("/webhook/telegram", dispatcher.ServeWebhook).Methods(http.MethodPost)
	s.router.HandleFunc("/internal/watchdog/run", s.watchdogHandler(wd)).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.healthHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	s.log.Info("http server starting", map[string]interface{}{"port": s.port})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) watchdogHandler(wd *watchdog.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := wd.Run(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(started).String(),
		})
	})
}
