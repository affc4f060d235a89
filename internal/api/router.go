package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/portrec/portrec/internal/api/handlers"
	"github.com/portrec/portrec/pkg/logger"
)

// Pinger reports storage reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates and configures the HTTP router
func NewRouter(
	pinger Pinger,
	backfillHandler *handlers.BackfillHandler,
	securityHandler *handlers.SecurityHandler,
	thesisHandler *handlers.ThesisHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(pinger)).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Backfill endpoints
	api.HandleFunc("/backfill/status", backfillHandler.GetStatus).Methods("GET")

	// Security endpoints
	api.HandleFunc("/securities/{symbol}", securityHandler.Get).Methods("GET")
	api.HandleFunc("/securities/{symbol}/holdings", securityHandler.GetHoldings).Methods("GET")

	// Thesis endpoints
	api.HandleFunc("/theses", thesisHandler.List).Methods("GET")
	api.HandleFunc("/theses/{id}/alignments", thesisHandler.GetAlignments).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status, pinging storage
// when a pinger is wired.
func healthCheckHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  status,
			"service": "portrec-api",
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
