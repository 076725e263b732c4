package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"feedbackhub/internal/app"
	"feedbackhub/internal/ratelimit"
	"feedbackhub/internal/util"
	"feedbackhub/pkg/domain"
)

const defaultMaxUploadBytes = 10 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	MaxUploadBytes             int64
}

// Server exposes the HTTP API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	maxUploadBytes  int64
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "feedbackhub:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		maxUploadBytes:  maxUpload,
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the standard middleware.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/register-admin", s.handleRegisterAdmin)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// feedback
	s.mux.Handle("/api/dashboard", s.authenticated(s.handleDashboard))
	s.mux.Handle("/api/feedback", s.authenticated(s.handleFeedback))
	s.mux.Handle("/api/feedback/my", s.authenticated(s.handleMyFeedback))
	s.mux.Handle("/api/feedback/", s.authenticated(s.handleFeedbackByID))

	// admin
	s.mux.Handle("/api/admin/dashboard", s.adminOnly(s.handleAdminDashboard))
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/feedback", s.adminOnly(s.handleAdminFeedback))
	s.mux.Handle("/api/admin/analytics", s.adminOnly(s.handleAdminAnalytics))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.Identity)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, ident)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
		if ident.Role != domain.RoleAdmin {
			s.audit(r, "admin.authorize", "fail", "user_id", ident.UserID)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, ident)
	})
}

func (s *Server) authorize(r *http.Request) (domain.Identity, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.Identity{}, false
	}
	return s.app.ResolveSession(token)
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.registerLimiter.Allow(util.ClientIP(r)) {
		s.audit(r, "auth.register", "rate_limited")
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Register(req.Name, req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.register", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleRegisterAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.registerLimiter.Allow(util.ClientIP(r)) {
		s.audit(r, "auth.register_admin", "rate_limited")
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req registerAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.RegisterAdmin(req.Name, req.Email, req.Password, req.ConfirmPassword, req.AdminCode)
	if err != nil {
		s.audit(r, "auth.register_admin", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.register_admin", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.loginLimiter.Allow(util.ClientIP(r)) {
		s.audit(r, "auth.login", "rate_limited")
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail")
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.CurrentUser(ident)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// feedback handlers
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	dash, err := s.app.Dashboard(ident)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		filter, err := listFilterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		page, err := s.app.ListFeedback(ident, filter)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	case http.MethodPost:
		var req createFeedbackRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		fb, err := s.app.CreateFeedback(ident, req.Title, req.Category, req.Content, req.Priority)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		s.audit(r, "feedback.create", "success", "user_id", ident.UserID, "feedback_id", fb.ID)
		writeJSON(w, http.StatusCreated, fb)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleMyFeedback(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	filter, err := listFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.app.ListOwnFeedback(ident, filter)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFeedbackByID(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/feedback/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch {
	case len(parts) == 1:
		s.handleFeedbackRecord(w, r, ident, id)
	case len(parts) == 2 && parts[1] == "status":
		s.handleFeedbackStatus(w, r, ident, id)
	case len(parts) == 2 && parts[1] == "comments":
		s.handleFeedbackComments(w, r, ident, id)
	case len(parts) == 2 && parts[1] == "attachments":
		s.handleFeedbackAttachments(w, r, ident, id)
	case len(parts) == 3 && parts[1] == "attachments" && parts[2] != "":
		s.handleFeedbackAttachmentByName(w, r, ident, id, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleFeedbackRecord(w http.ResponseWriter, r *http.Request, ident domain.Identity, id string) {
	switch r.Method {
	case http.MethodGet:
		fb, err := s.app.GetFeedback(ident, id)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, fb)
	case http.MethodDelete:
		if err := s.app.DeleteFeedback(r.Context(), ident, id); err != nil {
			s.audit(r, "feedback.delete", "fail", "user_id", ident.UserID, "feedback_id", id, "reason", err.Error())
			s.writeAppError(w, r, err)
			return
		}
		s.audit(r, "feedback.delete", "success", "user_id", ident.UserID, "feedback_id", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleFeedbackStatus(w http.ResponseWriter, r *http.Request, ident domain.Identity, id string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req triageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	fb, err := s.app.UpdateTriage(ident, id, req.Status, req.AssignedTo)
	if err != nil {
		s.audit(r, "feedback.triage", "fail", "user_id", ident.UserID, "feedback_id", id, "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "feedback.triage", "success", "user_id", ident.UserID, "feedback_id", id)
	writeJSON(w, http.StatusOK, fb)
}

func (s *Server) handleFeedbackComments(w http.ResponseWriter, r *http.Request, ident domain.Identity, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	comment, err := s.app.AddComment(ident, id, req.Content)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleFeedbackAttachments(w http.ResponseWriter, r *http.Request, ident domain.Identity, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()
	contentType := header.Header.Get("Content-Type")
	att, err := s.app.AddAttachment(r.Context(), ident, id, header.Filename, file, header.Size, contentType)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "feedback.attach", "success", "user_id", ident.UserID, "feedback_id", id, "filename", att.Filename)
	writeJSON(w, http.StatusCreated, att)
}

func (s *Server) handleFeedbackAttachmentByName(w http.ResponseWriter, r *http.Request, ident domain.Identity, id, filename string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	url, err := s.app.AttachmentURL(r.Context(), ident, id, filename)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// admin handlers
func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	dash, err := s.app.AdminDashboard(ident)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListAllUsers(ident)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": users,
		"count": len(users),
	})
}

func (s *Server) handleAdminFeedback(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	filter, err := listFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.app.ListFeedback(ident, filter)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleAdminAnalytics(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	report, err := s.app.Analytics(ident)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeAppError maps application errors onto HTTP status codes.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case app.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden), errors.Is(err, app.ErrInvalidAdminCode):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrFeedbackNotFound), errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func listFilterFromQuery(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	filter := domain.ListFilter{
		Search: q.Get("search"),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return domain.ListFilter{}, fmt.Errorf("invalid status filter %q", raw)
		}
		filter.Status = string(status)
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, ok := domain.ParseCategory(raw)
		if !ok {
			return domain.ListFilter{}, fmt.Errorf("invalid category filter %q", raw)
		}
		filter.Category = string(category)
	}
	if raw := q.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Page = n
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	return filter, nil
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerAdminRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AdminCode       string `json:"adminCode"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type createFeedbackRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
}

type triageRequest struct {
	Status     string `json:"status"`
	AssignedTo string `json:"assignedTo"`
}

type commentRequest struct {
	Content string `json:"content"`
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
