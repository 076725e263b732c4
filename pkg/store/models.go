package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type FeedbackModel struct {
	ID          string `gorm:"primaryKey"`
	AuthorID    string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Category    string `gorm:"not null;index"`
	Content     string `gorm:"not null"`
	Status      string `gorm:"not null;index"`
	Priority    string `gorm:"not null"`
	AssignedTo  string
	Attachments datatypes.JSON
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// CommentModel rows are the append-only comment sequence of a feedback
// record; row insertion is the atomic append primitive.
type CommentModel struct {
	ID         string    `gorm:"primaryKey"`
	FeedbackID string    `gorm:"not null;index"`
	AuthorID   string    `gorm:"not null;index"`
	Content    string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}
