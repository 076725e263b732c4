package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"feedbackhub/internal/util"
	"feedbackhub/pkg/auth"
	"feedbackhub/pkg/domain"
	"feedbackhub/pkg/storage"
	"feedbackhub/pkg/store"
)

// DashboardRecentLimit caps the recent-items list on dashboards.
const DashboardRecentLimit = 5

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration
	AdminCode     string

	Store       store.Store
	Sessions    store.SessionStore
	Attachments storage.AttachmentStore
}

// App is the core application service wiring storage, sessions, and
// authorization together.
type App struct {
	store       store.Store
	sessions    store.SessionStore
	attachments storage.AttachmentStore
	adminCode   string
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for the redis session strategy")
		}
		sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
	}

	return &App{
		store:       dataStore,
		sessions:    sessionStore,
		attachments: cfg.Attachments,
		adminCode:   strings.TrimSpace(cfg.AdminCode),
	}, nil
}

// Register creates a user account and starts a session for it.
func (a *App) Register(name, email, password string) (domain.User, string, error) {
	user, err := a.createAccount(name, email, password, domain.RoleUser)
	if err != nil {
		return domain.User{}, "", err
	}
	return a.startSession(user)
}

// RegisterAdmin creates an admin account gated by the registration code.
// The confirmation password must match, mirroring the admin signup form.
func (a *App) RegisterAdmin(name, email, password, confirmPassword, code string) (domain.User, string, error) {
	if a.adminCode == "" || strings.TrimSpace(code) != a.adminCode {
		return domain.User{}, "", ErrInvalidAdminCode
	}
	if password != confirmPassword {
		return domain.User{}, "", Validation("passwords do not match")
	}
	user, err := a.createAccount(name, email, password, domain.RoleAdmin)
	if err != nil {
		return domain.User{}, "", err
	}
	return a.startSession(user)
}

// Login validates credentials and starts a session.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	return a.startSession(user)
}

// Logout invalidates the session token. Unknown tokens are not an error.
func (a *App) Logout(token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return a.sessions.Destroy(token)
}

// ResolveSession maps a token to its identity snapshot.
func (a *App) ResolveSession(token string) (domain.Identity, bool) {
	ident, ok, err := a.sessions.Resolve(token)
	if err != nil {
		slog.Warn("session resolve failed", "error", err)
		return domain.Identity{}, false
	}
	return ident, ok
}

// CurrentUser returns the stored account behind an identity snapshot.
func (a *App) CurrentUser(ident domain.Identity) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ident.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// CreateFeedback submits a new feedback record. Status and assignee are
// server-controlled: every record starts pending and unassigned.
func (a *App) CreateFeedback(ident domain.Identity, title, category, content, priority string) (domain.Feedback, error) {
	if !CanCreateFeedback(&ident) {
		return domain.Feedback{}, ErrForbidden
	}
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return domain.Feedback{}, Validation("title is required")
	}
	if content == "" {
		return domain.Feedback{}, Validation("content is required")
	}
	cat, ok := domain.ParseCategory(category)
	if !ok {
		return domain.Feedback{}, Validation("category must be one of bug, feature, improvement, other")
	}
	prio := domain.PriorityMedium
	if strings.TrimSpace(priority) != "" {
		prio, ok = domain.ParsePriority(priority)
		if !ok {
			return domain.Feedback{}, Validation("priority must be one of low, medium, high")
		}
	}
	now := time.Now().UTC()
	fb := domain.Feedback{
		ID:        uuid.NewString(),
		Title:     title,
		Category:  cat,
		Content:   content,
		Status:    domain.StatusPending,
		Priority:  prio,
		AuthorID:  ident.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveFeedback(fb); err != nil {
		return domain.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}
	fb.AuthorName = ident.Name
	return fb, nil
}

// GetFeedback returns one record with author, assignee, and commenter
// names resolved.
func (a *App) GetFeedback(ident domain.Identity, id string) (domain.Feedback, error) {
	if !CanViewFeedback(&ident) {
		return domain.Feedback{}, ErrForbidden
	}
	fb, ok, err := a.store.GetFeedback(id)
	if err != nil {
		return domain.Feedback{}, fmt.Errorf("fetch feedback: %w", err)
	}
	if !ok {
		return domain.Feedback{}, ErrFeedbackNotFound
	}
	a.resolveNames(&fb)
	return fb, nil
}

// ListFeedback returns a filtered, paginated page of all feedback,
// newest first.
func (a *App) ListFeedback(ident domain.Identity, filter domain.ListFilter) (domain.FeedbackPage, error) {
	if !CanViewFeedback(&ident) {
		return domain.FeedbackPage{}, ErrForbidden
	}
	filter.AuthorID = ""
	return a.page(filter)
}

// ListOwnFeedback returns the caller's own records, same filters applied.
func (a *App) ListOwnFeedback(ident domain.Identity, filter domain.ListFilter) (domain.FeedbackPage, error) {
	if !CanViewFeedback(&ident) {
		return domain.FeedbackPage{}, ErrForbidden
	}
	return a.page(OwnFeedbackFilter(ident, filter))
}

// Dashboard summarises the caller's own submissions.
type Dashboard struct {
	Recent   []domain.Feedback    `json:"recent"`
	Total    int                  `json:"total"`
	Statuses []domain.BucketCount `json:"statuses"`
}

// Dashboard returns the caller's recent submissions and status totals.
func (a *App) Dashboard(ident domain.Identity) (Dashboard, error) {
	if !CanViewFeedback(&ident) {
		return Dashboard{}, ErrForbidden
	}
	items, total, err := a.store.ListFeedback(domain.ListFilter{
		AuthorID: ident.UserID,
		Page:     1,
		Limit:    DashboardRecentLimit,
	}.Normalize())
	if err != nil {
		return Dashboard{}, fmt.Errorf("list own feedback: %w", err)
	}
	for i := range items {
		a.resolveNames(&items[i])
	}
	statuses, err := a.ownStatusCounts(ident.UserID)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Recent: items, Total: total, Statuses: statuses}, nil
}

// UpdateTriage changes status and/or assignee on a record. Admin only;
// a non-admin caller gets ErrForbidden rather than a silent no-op.
func (a *App) UpdateTriage(ident domain.Identity, id, status, assignedTo string) (domain.Feedback, error) {
	if !CanTriage(&ident) {
		return domain.Feedback{}, ErrForbidden
	}
	var parsed domain.FeedbackStatus
	if strings.TrimSpace(status) != "" {
		var ok bool
		parsed, ok = domain.ParseStatus(status)
		if !ok {
			return domain.Feedback{}, Validation("status must be one of pending, in-progress, resolved")
		}
	}
	assignedTo = strings.TrimSpace(assignedTo)
	if assignedTo != "" {
		if _, ok, err := a.store.GetUserByID(assignedTo); err != nil {
			return domain.Feedback{}, fmt.Errorf("fetch assignee: %w", err)
		} else if !ok {
			return domain.Feedback{}, Validation("assignee does not exist")
		}
	}
	if parsed == "" && assignedTo == "" {
		return domain.Feedback{}, Validation("nothing to update")
	}
	if err := a.store.UpdateTriage(id, parsed, assignedTo); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Feedback{}, ErrFeedbackNotFound
		}
		return domain.Feedback{}, fmt.Errorf("update triage: %w", err)
	}
	return a.GetFeedback(ident, id)
}

// AddComment appends a comment to a record.
func (a *App) AddComment(ident domain.Identity, feedbackID, content string) (domain.Comment, error) {
	if !CanComment(&ident) {
		return domain.Comment{}, ErrForbidden
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Comment{}, Validation("comment content is required")
	}
	c := domain.Comment{
		ID:         uuid.NewString(),
		FeedbackID: feedbackID,
		AuthorID:   ident.UserID,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.store.AppendComment(feedbackID, c); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Comment{}, ErrFeedbackNotFound
		}
		return domain.Comment{}, fmt.Errorf("append comment: %w", err)
	}
	c.AuthorName = ident.Name
	return c, nil
}

// AddAttachment uploads the body to object storage and records the
// metadata on the feedback. Requires an attachment store.
func (a *App) AddAttachment(ctx context.Context, ident domain.Identity, feedbackID, filename string, body io.Reader, size int64, contentType string) (domain.Attachment, error) {
	if !CanComment(&ident) {
		return domain.Attachment{}, ErrForbidden
	}
	if a.attachments == nil {
		return domain.Attachment{}, Validation("attachments are not enabled")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return domain.Attachment{}, Validation("filename is required")
	}
	if _, ok, err := a.store.GetFeedback(feedbackID); err != nil {
		return domain.Attachment{}, fmt.Errorf("fetch feedback: %w", err)
	} else if !ok {
		return domain.Attachment{}, ErrFeedbackNotFound
	}
	key := fmt.Sprintf("feedback/%s/%s-%s", feedbackID, util.NewID(), filename)
	if err := a.attachments.Put(ctx, key, body, size, contentType); err != nil {
		return domain.Attachment{}, fmt.Errorf("store attachment: %w", err)
	}
	att := domain.Attachment{
		Filename:   filename,
		Key:        key,
		UploadedAt: time.Now().UTC(),
	}
	if err := a.store.AddAttachment(feedbackID, att); err != nil {
		// keep storage consistent with metadata
		_ = a.attachments.Delete(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Attachment{}, ErrFeedbackNotFound
		}
		return domain.Attachment{}, fmt.Errorf("record attachment: %w", err)
	}
	return att, nil
}

// AttachmentURL returns a time-limited download URL for one attachment.
func (a *App) AttachmentURL(ctx context.Context, ident domain.Identity, feedbackID, filename string) (string, error) {
	if !CanViewFeedback(&ident) {
		return "", ErrForbidden
	}
	if a.attachments == nil {
		return "", Validation("attachments are not enabled")
	}
	fb, ok, err := a.store.GetFeedback(feedbackID)
	if err != nil {
		return "", fmt.Errorf("fetch feedback: %w", err)
	}
	if !ok {
		return "", ErrFeedbackNotFound
	}
	for _, att := range fb.Attachments {
		if att.Filename == filename {
			url, err := a.attachments.PresignGet(ctx, att.Key, 15*time.Minute)
			if err != nil {
				return "", fmt.Errorf("presign attachment: %w", err)
			}
			return url, nil
		}
	}
	return "", ErrFeedbackNotFound
}

// DeleteFeedback removes a record, its comments, and its attachment
// objects. Admins may delete anything, authors their own records.
func (a *App) DeleteFeedback(ctx context.Context, ident domain.Identity, id string) error {
	fb, ok, err := a.store.GetFeedback(id)
	if err != nil {
		return fmt.Errorf("fetch feedback: %w", err)
	}
	if !ok {
		return ErrFeedbackNotFound
	}
	if !CanDeleteFeedback(&ident, fb) {
		return ErrForbidden
	}
	if err := a.store.DeleteFeedback(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrFeedbackNotFound
		}
		return fmt.Errorf("delete feedback: %w", err)
	}
	// Object deletes are best-effort; the record is already gone.
	if a.attachments != nil {
		for _, att := range fb.Attachments {
			if err := a.attachments.Delete(ctx, att.Key); err != nil {
				slog.Warn("delete attachment object failed", "key", att.Key, "error", err)
			}
		}
	}
	return nil
}

// AdminDashboard summarises the whole system for the admin console.
type AdminDashboard struct {
	Recent        []domain.Feedback    `json:"recent"`
	TotalFeedback int                  `json:"totalFeedback"`
	TotalUsers    int                  `json:"totalUsers"`
	Statuses      []domain.BucketCount `json:"statuses"`
}

// AdminDashboard returns recent feedback and system-wide totals.
func (a *App) AdminDashboard(ident domain.Identity) (AdminDashboard, error) {
	if !CanAccessAdmin(&ident) {
		return AdminDashboard{}, ErrForbidden
	}
	items, total, err := a.store.ListFeedback(domain.ListFilter{
		Page:  1,
		Limit: DashboardRecentLimit,
	}.Normalize())
	if err != nil {
		return AdminDashboard{}, fmt.Errorf("list feedback: %w", err)
	}
	for i := range items {
		a.resolveNames(&items[i])
	}
	users, err := a.store.ListUsers()
	if err != nil {
		return AdminDashboard{}, fmt.Errorf("list users: %w", err)
	}
	nonAdmins := 0
	for _, u := range users {
		if u.Role != domain.RoleAdmin {
			nonAdmins++
		}
	}
	statuses, err := a.store.StatusCounts()
	if err != nil {
		return AdminDashboard{}, fmt.Errorf("status counts: %w", err)
	}
	return AdminDashboard{
		Recent:        items,
		TotalFeedback: total,
		TotalUsers:    nonAdmins,
		Statuses:      statuses,
	}, nil
}

// ListAllUsers returns the non-admin accounts for the admin console.
func (a *App) ListAllUsers(ident domain.Identity) ([]domain.User, error) {
	if !CanAccessAdmin(&ident) {
		return nil, ErrForbidden
	}
	users, err := a.store.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.Role != domain.RoleAdmin {
			out = append(out, u)
		}
	}
	return out, nil
}

func (a *App) createAccount(name, email, password string, role domain.UserRole) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" {
		return domain.User{}, Validation("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, Validation("a valid email is required")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, Validation(err.Error())
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

func (a *App) startSession(user domain.User) (domain.User, string, error) {
	token, err := a.sessions.Start(domain.Identity{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return domain.User{}, "", fmt.Errorf("start session: %w", err)
	}
	return user, token, nil
}

func (a *App) page(filter domain.ListFilter) (domain.FeedbackPage, error) {
	filter = filter.Normalize()
	items, total, err := a.store.ListFeedback(filter)
	if err != nil {
		return domain.FeedbackPage{}, fmt.Errorf("list feedback: %w", err)
	}
	for i := range items {
		a.resolveNames(&items[i])
	}
	totalPages := (total + filter.Limit - 1) / filter.Limit
	return domain.FeedbackPage{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}

func (a *App) ownStatusCounts(userID string) ([]domain.BucketCount, error) {
	counts := map[domain.FeedbackStatus]int{}
	page := 1
	for {
		items, total, err := a.store.ListFeedback(domain.ListFilter{
			AuthorID: userID,
			Page:     page,
			Limit:    100,
		})
		if err != nil {
			return nil, fmt.Errorf("list own feedback: %w", err)
		}
		for _, fb := range items {
			counts[fb.Status]++
		}
		if page*100 >= total || len(items) == 0 {
			break
		}
		page++
	}
	out := make([]domain.BucketCount, 0, len(counts))
	for _, s := range []domain.FeedbackStatus{domain.StatusPending, domain.StatusInProgress, domain.StatusResolved} {
		if counts[s] > 0 {
			out = append(out, domain.BucketCount{Key: string(s), Count: counts[s]})
		}
	}
	return out, nil
}

// resolveNames fills display names on a record in place. A missing user
// leaves the name empty rather than failing the read.
func (a *App) resolveNames(fb *domain.Feedback) {
	fb.AuthorName = a.userName(fb.AuthorID)
	if fb.AssignedTo != "" {
		fb.AssignedToName = a.userName(fb.AssignedTo)
	}
	for i := range fb.Comments {
		fb.Comments[i].AuthorName = a.userName(fb.Comments[i].AuthorID)
	}
}

func (a *App) userName(id string) string {
	if id == "" {
		return ""
	}
	user, ok, err := a.store.GetUserByID(id)
	if err != nil || !ok {
		return ""
	}
	return user.Name
}
