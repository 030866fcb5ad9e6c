// Copyright 2026 The Busgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/busgate/busgate/internal/audit"
	"github.com/busgate/busgate/internal/issue"
	"github.com/busgate/busgate/internal/observability/metrics"
	"github.com/busgate/busgate/internal/provision"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	issueService     *issue.Service
	provisionService *provision.Service
	credMetrics      *metrics.Credentials
	auditLogger      audit.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	issueService *issue.Service,
	provisionService *provision.Service,
	credMetrics *metrics.Credentials,
	auditLogger audit.Logger,
) *Handler {
	return &Handler{
		issueService:     issueService,
		provisionService: provisionService,
		credMetrics:      credMetrics,
		auditLogger:      auditLogger,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// Token endpoint (RFC 6749 Section 3.2)
	r.Post("/token", h.Token)

	// Admin provisioning endpoints
	r.Route("/provision", func(r chi.Router) {
		r.Post("/user/update", h.ProvisionUserUpdate)
		r.Post("/user/list", h.ProvisionUserList)
		r.Post("/user/delete", h.ProvisionUserDelete)

		r.Post("/client/update", h.ProvisionClientUpdate)
		r.Post("/client/list", h.ProvisionClientList)
		r.Post("/client/delete", h.ProvisionClientDelete)

		r.Post("/bus/update", h.ProvisionBusUpdate)
		r.Post("/bus/list", h.ProvisionBusList)
		r.Post("/bus/delete", h.ProvisionBusDelete)

		r.Post("/grant/add", h.ProvisionGrantAdd)
		r.Post("/grant/revoke", h.ProvisionGrantRevoke)
		r.Post("/grant/list", h.ProvisionGrantList)
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "busgate",
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
