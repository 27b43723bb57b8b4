package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coastwatch/hazardplatform/internal/common"
)

// ErrorResponse is the uniform error envelope for API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a simple confirmation envelope.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps the service error taxonomy to HTTP statuses. In production
// mode internal errors are reduced to a generic message so stack detail never
// reaches clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrDuplicateEmail):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Email already registered. Please use a different email or try signing in.",
		})
	case errors.Is(err, common.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid email or password"})
	case errors.Is(err, common.ErrAccountLocked):
		writeJSON(w, http.StatusLocked, ErrorResponse{
			Error: "Account temporarily locked due to too many failed login attempts. Please try again later.",
		})
	case errors.Is(err, common.ErrAccountDeactivated):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Account is deactivated. Please contact support."})
	case errors.Is(err, common.ErrMissingToken):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Access token required"})
	case errors.Is(err, common.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Token expired"})
	case errors.Is(err, common.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid token"})
	case errors.Is(err, common.ErrForbidden):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "Access denied. Administrator privileges required."})
	default:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg := "Internal server error"
		if !s.config.Production() {
			msg = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msg})
	}
}
