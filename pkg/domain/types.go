package domain

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type FeedbackStatus string

const (
	StatusPending    FeedbackStatus = "pending"
	StatusInProgress FeedbackStatus = "in-progress"
	StatusResolved   FeedbackStatus = "resolved"
)

type FeedbackCategory string

const (
	CategoryBug         FeedbackCategory = "bug"
	CategoryFeature     FeedbackCategory = "feature"
	CategoryImprovement FeedbackCategory = "improvement"
	CategoryOther       FeedbackCategory = "other"
)

type FeedbackPriority string

const (
	PriorityLow    FeedbackPriority = "low"
	PriorityMedium FeedbackPriority = "medium"
	PriorityHigh   FeedbackPriority = "high"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the snapshot bound to a session token at login time.
// It is never refreshed while the session lives; a role change only
// becomes visible after the next login.
type Identity struct {
	UserID string   `json:"userId"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
}

type Comment struct {
	ID         string    `json:"id"`
	FeedbackID string    `json:"feedbackId"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Attachment struct {
	Filename   string    `json:"filename"`
	Key        string    `json:"-"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Feedback struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Category       FeedbackCategory `json:"category"`
	Content        string           `json:"content"`
	Status         FeedbackStatus   `json:"status"`
	Priority       FeedbackPriority `json:"priority"`
	AuthorID       string           `json:"authorId"`
	AuthorName     string           `json:"authorName,omitempty"`
	AssignedTo     string           `json:"assignedTo,omitempty"`
	AssignedToName string           `json:"assignedToName,omitempty"`
	Comments       []Comment        `json:"comments,omitempty"`
	Attachments    []Attachment     `json:"attachments,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// DefaultPageSize is also the fallback when a caller supplies limit <= 0.
const DefaultPageSize = 10

// ListFilter narrows and pages a feedback listing. AuthorID is set
// internally for own-list views and is never caller-controlled.
type ListFilter struct {
	Status   string
	Category string
	Search   string
	AuthorID string
	Page     int
	Limit    int
}

// Normalize clamps page and limit to usable values.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

type FeedbackPage struct {
	Items      []Feedback `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

type DailyCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type BucketCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type UserActivity struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Count  int    `json:"count"`
}

type AnalyticsReport struct {
	DailyCreated  []DailyCount   `json:"dailyCreated"`
	Categories    []BucketCount  `json:"categories"`
	Statuses      []BucketCount  `json:"statuses"`
	TopAuthors    []UserActivity `json:"topAuthors"`
	TopCommenters []UserActivity `json:"topCommenters"`
}

// ParseStatus validates a user-supplied status string.
func ParseStatus(s string) (FeedbackStatus, bool) {
	switch FeedbackStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, true
	case StatusInProgress:
		return StatusInProgress, true
	case StatusResolved:
		return StatusResolved, true
	default:
		return "", false
	}
}

// ParseCategory validates a user-supplied category string.
func ParseCategory(s string) (FeedbackCategory, bool) {
	switch FeedbackCategory(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryBug:
		return CategoryBug, true
	case CategoryFeature:
		return CategoryFeature, true
	case CategoryImprovement:
		return CategoryImprovement, true
	case CategoryOther:
		return CategoryOther, true
	default:
		return "", false
	}
}

// ParsePriority validates a user-supplied priority string.
func ParsePriority(s string) (FeedbackPriority, bool) {
	switch FeedbackPriority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow, true
	case PriorityMedium:
		return PriorityMedium, true
	case PriorityHigh:
		return PriorityHigh, true
	default:
		return "", false
	}
}
