// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/daverunner/reflectd/internal/auth"
	"github.com/daverunner/reflectd/internal/log"
)

// requireAuth guards the memory endpoints with the configured API key.
// Without a configured key the endpoints fail closed unless anonymous
// access is explicitly enabled.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			if s.cfg.AuthAnonymous {
				next.ServeHTTP(w, r)
				return
			}
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Warn().
				Str(log.FieldEvent, "auth.no_key_configured").
				Str("path", r.URL.Path).
				Msg("rejecting request, no API key configured")
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		if !auth.AuthorizeRequest(r, s.cfg.APIKey) {
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Warn().
				Str(log.FieldEvent, "auth.invalid_key").
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("rejecting request, invalid API key")
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}
