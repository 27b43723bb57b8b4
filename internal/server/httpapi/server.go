// Package httpapi exposes the account and upload services over HTTP. Routes,
// payloads, and status codes form the public dashboard API; everything else
// falls through to static file serving.
package httpapi

import (
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coastwatch/hazardplatform/internal/logging"
	"github.com/coastwatch/hazardplatform/internal/server/config"
	"github.com/coastwatch/hazardplatform/internal/server/models"
	"github.com/coastwatch/hazardplatform/internal/server/ratelimit"
	"github.com/coastwatch/hazardplatform/internal/server/services"
	"github.com/julienschmidt/httprouter"
)

// Server wires services into HTTP handlers.
type Server struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	accounts *services.AccountService
	uploads  *services.UploadService

	authLimiter    ratelimit.Limiter
	generalLimiter ratelimit.Limiter

	startedAt time.Time
}

// NewServer builds the HTTP server around the given services. The db handle
// is only pinged by the health endpoint.
func NewServer(cfg *config.Config, l logging.Logger, db *sql.DB,
	accounts *services.AccountService, uploads *services.UploadService,
	authLimiter, generalLimiter ratelimit.Limiter) *Server {
	return &Server{
		config:         cfg,
		logger:         l.With("module", "http_server"),
		db:             db,
		accounts:       accounts,
		uploads:        uploads,
		authLimiter:    authLimiter,
		generalLimiter: generalLimiter,
		startedAt:      time.Now(),
	}
}

// Handler assembles the router and middleware chain.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	router.GET("/health", s.handleHealth)

	router.POST("/signup", s.rateLimited(s.authLimiter, s.handleSignup))
	router.POST("/signin", s.rateLimited(s.authLimiter, s.handleSignin))

	router.GET("/profile", s.requireAuth(s.handleGetProfile))
	router.PUT("/profile", s.requireAuth(s.handleUpdateProfile))
	router.PUT("/change-password", s.requireAuth(s.handleChangePassword))
	router.POST("/upload", s.requireAuth(s.handleUpload))
	router.GET("/uploads/*key", s.requireAuth(s.handleGetUpload))
	router.GET("/users", s.requireRole(s.handleListUsers, models.RoleAdministrator))
	router.POST("/logout", s.requireAuth(s.handleLogout))

	router.NotFound = http.HandlerFunc(s.handleFallback)

	var h http.Handler = router
	h = s.limitAll(s.generalLimiter, h)
	h = s.recoverPanics(h)
	h = s.cors(h)
	h = s.logRequests(h)
	return h
}

// handleFallback serves the static dashboard for anything outside the API.
// Unknown /api paths get a JSON 404; any file that exists under StaticDir is
// served as-is; everything else falls back to the login page.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "API endpoint not found"})
		return
	}

	full := filepath.Join(s.config.StaticDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(full); err == nil && !info.IsDir() {
		http.ServeFile(w, r, full)
		return
	}

	http.ServeFile(w, r, filepath.Join(s.config.StaticDir, "login.html"))
}
