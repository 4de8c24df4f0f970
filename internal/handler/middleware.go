package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// SystemAuth validates the x-system-name / x-system-key header pair
// against the configured credential registry. Missing headers yield
// 401, a wrong key 403.
func SystemAuth(systemKeys map[string]string, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := r.Header.Get("x-system-name")
			key := r.Header.Get("x-system-key")

			if name == "" || key == "" {
				writeError(w, http.StatusUnauthorized, errorBody{Message: "缺少系统认证信息"})
				return
			}

			expected, ok := systemKeys[name]
			if !ok || subtle.ConstantTimeCompare([]byte(expected), []byte(key)) != 1 {
				log.Warn().Str("system_name", name).Msg("system authentication failed")
				writeError(w, http.StatusForbidden, errorBody{Message: "系统认证失败"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs every request at debug level with its outcome.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("request handled")
		})
	}
}

// Recovery converts panics into the generic 500 envelope instead of a
// dropped connection.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic recovered")
					writeError(w, http.StatusInternalServerError, errorBody{Message: "服务器内部错误，请稍后重试"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
