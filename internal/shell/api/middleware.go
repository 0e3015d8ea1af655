package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/fleetyard/dispatch/internal/core/auth"
	"github.com/go-chi/chi/v5/middleware"
)

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// authContext extracts the identity headers the gateway injects and stores
// the resulting auth context on the request.
func (h *Handler) authContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := auth.ExtractFromRequest(r)
		next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
	})
}

// gatewayCheck rejects API requests that did not pass through the gateway.
// Disabled when no shared secret is configured.
func (h *Handler) gatewayCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.gatewaySecret != "" {
			got := r.Header.Get(auth.HeaderGatewaySecret)
			if subtle.ConstantTimeCompare([]byte(got), []byte(h.gatewaySecret)) != 1 {
				h.writeError(w, http.StatusForbidden, "invalid gateway secret", "permission_denied")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
