// Bancada - Real-time Tangram Assembly Order Dashboard
// Copyright 2026 Bancada Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bancada/bancada

package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bancada/bancada/internal/logging"
)

// RequestIDWithLogging returns a middleware that adds a request ID to the
// context and to the logging context for request tracing. It wraps chi's
// RequestID middleware so the header and log field always agree.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set("X-Request-ID", requestID)
			}

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogging logs method, path, and duration for every request at
// debug level. The WebSocket endpoint is skipped: its connection outlives
// the request and would log a meaningless duration.
func RequestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			next.ServeHTTP(w, r)
			logging.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Str("request_id", logging.RequestIDFromContext(r.Context())).
				Msg("http request")
		})
	}
}

// CORS builds the CORS middleware from the configured allowed origins.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}
