package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coastwatch/hazardplatform/internal/common"
	"github.com/coastwatch/hazardplatform/internal/server/models"
	"github.com/coastwatch/hazardplatform/internal/server/services"
	"github.com/julienschmidt/httprouter"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string              `json:"message"`
	Token   string              `json:"token,omitempty"`
	User    *models.AccountInfo `json:"user"`
}

type userResponse struct {
	User *models.AccountInfo `json:"user"`
}

type usersResponse struct {
	Users []*models.AccountInfo `json:"users"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	info, err := s.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "new account registered", "email", info.Email)
	writeJSON(w, http.StatusCreated, authResponse{
		Message: "Account created successfully! Please sign in with your credentials.",
		User:    info,
	})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	token, info, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "account signed in", "email", info.Email)
	writeJSON(w, http.StatusOK, authResponse{
		Message: "Login successful",
		Token:   token,
		User:    info,
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	acc := accountFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{User: acc.Info()})
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	acc := accountFromContext(r.Context())
	info, err := s.accounts.UpdateProfile(r.Context(), acc, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Message string              `json:"message"`
		User    *models.AccountInfo `json:"user"`
	}{Message: "Profile updated successfully", User: info})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Current password and new password are required"})
		return
	}

	acc := accountFromContext(r.Context())
	if err := s.accounts.ChangePassword(r.Context(), acc, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	maxRequest := s.config.MaxUploadSize * int64(s.config.MaxUploadFiles)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequest)

	if err := r.ParseMultipartForm(s.config.MaxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid multipart request"})
		return
	}

	headers := r.MultipartForm.File["files"]
	inputs := make([]services.UploadInput, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.writeError(w, r, common.ErrInternal)
			return
		}
		defer f.Close()
		inputs = append(inputs, services.UploadInput{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Reader:      f,
		})
	}

	acc := accountFromContext(r.Context())
	files, err := s.uploads.Store(r.Context(), inputs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "files uploaded", "email", acc.Email, "count", len(files))
	writeJSON(w, http.StatusOK, struct {
		Message string                 `json:"message"`
		Files   []*models.UploadedFile `json:"files"`
	}{Message: "Files uploaded successfully", Files: files})
}

// handleGetUpload turns the stored object key back into media: it redirects
// the client to a time-limited presigned link for the object. The route
// parameter covers everything after /uploads/, so date-bucketed keys resolve.
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	suffix := ps.ByName("key")
	if suffix == "" || suffix == "/" || strings.Contains(suffix, "..") {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid file key"})
		return
	}
	key := "uploads" + suffix

	url, err := s.uploads.PresignedGetURL(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	acc := accountFromContext(r.Context())
	users, err := s.accounts.ListAccounts(r.Context(), acc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	acc := accountFromContext(r.Context())
	s.logger.Info(r.Context(), "account logged out", "email", acc.Email)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Database    string `json:"database"`
	Users       int64  `json:"users"`
	Uptime      int64  `json:"uptime"`
	Environment string `json:"environment"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	dbState := "connected"
	if err := s.db.PingContext(r.Context()); err != nil {
		dbState = "disconnected"
	}

	count, err := s.accounts.CountAccounts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, struct {
			Status    string `json:"status"`
			Timestamp string `json:"timestamp"`
			Error     string `json:"error"`
		}{
			Status:    "ERROR",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Error:     fmt.Sprintf("database check failed: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "OK",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Database:    dbState,
		Users:       count,
		Uptime:      int64(time.Since(s.startedAt).Seconds()),
		Environment: s.config.Environment,
	})
}
