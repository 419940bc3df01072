package httpapi

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/gideon/internal/common"
	"github.com/dmitrijs2005/gideon/internal/logging"
	"github.com/dmitrijs2005/gideon/internal/server/auth"
	"github.com/dmitrijs2005/gideon/internal/server/metrics"
	"github.com/go-chi/chi/v5"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// accessLog logs one line per request and feeds the request metrics. Headers
// and bodies are never logged.
func accessLog(logger logging.Logger, rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			// the user is resolved further down the chain; the holder lets it
			// flow back up here
			holder := &userHolder{}
			next.ServeHTTP(sr, r.WithContext(withUserHolder(r.Context(), holder)))

			d := time.Since(start)
			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			rec.RecordHTTPRequest(r.Method, route, sr.statusCode, d)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sr.statusCode,
				"duration_ms", float64(d.Nanoseconds()) / float64(time.Millisecond),
			}
			if holder.userID != "" {
				args = append(args, "user_id", holder.userID)
			}

			switch {
			case sr.statusCode >= 500:
				logger.Error(r.Context(), "http_request", args...)
			case sr.statusCode >= 400:
				logger.Warn(r.Context(), "http_request", args...)
			default:
				logger.Info(r.Context(), "http_request", args...)
			}
		})
	}
}

func recoverer(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					logger.Error(r.Context(), "panic recovered",
						"panic", p, "method", r.Method, "path", r.URL.Path, "stack", string(debug.Stack()))
					writeError(w, http.StatusInternalServerError, errorResponse{Detail: msgInternal})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// bearerAuth resolves the Authorization bearer token to an active user and
// stores it in the request context.
func bearerAuth(gw Gateway, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, errorResponse{Detail: "Not authenticated"})
				return
			}

			user, err := gw.ResolveIdentity(r.Context(), token)
			if err != nil {
				status, body := statusFor(err)
				if status >= http.StatusInternalServerError {
					logger.Error(r.Context(), "identity resolution failed", "error", err)
				}
				writeError(w, status, body)
				return
			}

			if holder := userHolderFrom(r.Context()); holder != nil {
				holder.userID = user.ID
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(common.AuthorizationHeaderName)
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, common.TokenTypeBearer) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
