package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/coastwatch/hazardplatform/internal/common"
	"github.com/coastwatch/hazardplatform/internal/server/models"
	"github.com/coastwatch/hazardplatform/internal/server/ratelimit"
	"github.com/julienschmidt/httprouter"
)

type contextKey string

const accountContextKey contextKey = "account"

// accountFromContext returns the authenticated account placed by requireAuth,
// or nil outside an authenticated request.
func accountFromContext(ctx context.Context) *models.Account {
	acc, ok := ctx.Value(accountContextKey).(*models.Account)
	if !ok {
		return nil
	}
	return acc
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// requireAuth resolves the bearer token to an account and stores it in the
// request context. The account state is re-read from the store on every
// request, so deactivation takes effect immediately.
func (s *Server) requireAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		acc, err := s.accounts.Authenticate(r.Context(), extractBearerToken(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountContextKey, acc)
		next(w, r.WithContext(ctx), ps)
	}
}

// requireRole gates a handler behind requireAuth plus a role check.
func (s *Server) requireRole(next httprouter.Handle, roles ...models.Role) httprouter.Handle {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		acc := accountFromContext(r.Context())
		if acc == nil {
			s.writeError(w, r, common.ErrMissingToken)
			return
		}
		if err := s.accounts.Authorize(acc, roles...); err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r, ps)
	})
}

// clientIP keys the limiter on the caller. X-Forwarded-For is honored only
// when TrustProxyHeader is set: a direct client could otherwise rotate
// spoofed header values to dodge the per-IP budget.
func (s *Server) clientIP(r *http.Request) string {
	if s.config.TrustProxyHeader {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if i := strings.IndexByte(fwd, ','); i >= 0 {
				return strings.TrimSpace(fwd[:i])
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimited applies a per-IP limiter to a single route. Limiter failures
// let the request through: the account lockout keeps brute force bounded even
// when the limiter backend is down.
func (s *Server) rateLimited(limiter ratelimit.Limiter, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ok, err := limiter.Allow(r.Context(), s.clientIP(r))
		if err != nil {
			s.logger.Warn(r.Context(), "rate limiter unavailable", "error", err)
		} else if !ok {
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
			return
		}
		next(w, r, ps)
	}
}

// limitAll is the whole-API variant of rateLimited.
func (s *Server) limitAll(limiter ratelimit.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := limiter.Allow(r.Context(), s.clientIP(r))
		if err != nil {
			s.logger.Warn(r.Context(), "rate limiter unavailable", "error", err)
		} else if !ok {
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info(r.Context(), "visit",
			"method", r.Method,
			"ip", s.clientIP(r),
			"uri", r.URL.Path,
			"status", rw.statusCode,
		)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error(r.Context(), "panic recovered", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if !s.config.Production() && strings.HasPrefix(origin, "http://localhost:") {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
