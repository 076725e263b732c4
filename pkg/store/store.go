package store

import (
	"errors"
	"time"

	"feedbackhub/pkg/domain"
)

// ErrNotFound indicates the referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for users, feedback, and comments.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)

	// feedback
	SaveFeedback(domain.Feedback) error
	GetFeedback(id string) (domain.Feedback, bool, error)
	ListFeedback(filter domain.ListFilter) ([]domain.Feedback, int, error)
	// UpdateTriage applies the supplied status and/or assignee; empty
	// values leave the field unchanged. updated_at is always touched.
	UpdateTriage(id string, status domain.FeedbackStatus, assignedTo string) error
	AppendComment(feedbackID string, c domain.Comment) error
	AddAttachment(feedbackID string, a domain.Attachment) error
	DeleteFeedback(id string) error

	// aggregations
	DailyFeedbackCounts(since time.Time) ([]domain.DailyCount, error)
	CategoryCounts() ([]domain.BucketCount, error)
	StatusCounts() ([]domain.BucketCount, error)
	TopAuthors(limit int) ([]domain.UserActivity, error)
	TopCommenters(limit int) ([]domain.UserActivity, error)
}

// SessionStore binds opaque tokens to identity snapshots with a TTL.
type SessionStore interface {
	Start(ident domain.Identity) (string, error)
	Resolve(token string) (domain.Identity, bool, error)
	// Destroy is idempotent; removing an unknown token is not an error.
	Destroy(token string) error
}
