package gateway

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// authMiddleware returns a chi-compatible middleware that validates Bearer token
// or Basic auth credentials using constant-time comparison. Outcomes are
// logged to logger when it is non-nil.
func authMiddleware(cfg AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				logAuth(logger, r, false, "missing authorization header")
				writeDetail(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			// Try Bearer token first.
			if cfg.BearerToken != "" {
				if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
					if constantTimeEqual(after, cfg.BearerToken) {
						logAuth(logger, r, true, "bearer")
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			// Try Basic auth.
			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					logAuth(logger, r, true, "basic")
					next.ServeHTTP(w, r)
					return
				}
			}

			logAuth(logger, r, false, "invalid credentials")
			writeDetail(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func logAuth(logger *slog.Logger, r *http.Request, ok bool, detail string) {
	if logger == nil {
		return
	}
	attrs := []any{
		"detail", detail,
		"remote_addr", r.RemoteAddr,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if ok {
		logger.Debug("admin auth succeeded", attrs...)
		return
	}
	logger.Warn("admin auth failed", attrs...)
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
