package store

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"feedbackhub/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &FeedbackModel{}, &CommentModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "role", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// SaveFeedback stores or updates a feedback record.
func (s *GormStore) SaveFeedback(f domain.Feedback) error {
	model, err := feedbackToModel(f)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "category", "content", "status", "priority", "assigned_to", "attachments", "updated_at"}),
	}).Create(&model).Error
}

// GetFeedback retrieves a record with its comment thread.
func (s *GormStore) GetFeedback(id string) (domain.Feedback, bool, error) {
	var model FeedbackModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Feedback{}, false, nil
		}
		return domain.Feedback{}, false, err
	}
	fb, err := feedbackFromModel(model)
	if err != nil {
		return domain.Feedback{}, false, err
	}
	var comments []CommentModel
	if err := s.db.Where("feedback_id = ?", id).Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		return domain.Feedback{}, false, err
	}
	for _, c := range comments {
		fb.Comments = append(fb.Comments, commentFromModel(c))
	}
	return fb, true, nil
}

// ListFeedback returns one page of matching records plus the total
// match count before pagination. Comment threads are not loaded.
func (s *GormStore) ListFeedback(filter domain.ListFilter) ([]domain.Feedback, int, error) {
	filter = filter.Normalize()
	base := s.feedbackQuery(filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []FeedbackModel
	err := s.feedbackQuery(filter).
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	res := make([]domain.Feedback, 0, len(models))
	for _, m := range models {
		fb, err := feedbackFromModel(m)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, fb)
	}
	return res, int(total), nil
}

func (s *GormStore) feedbackQuery(filter domain.ListFilter) *gorm.DB {
	tx := s.db.Model(&FeedbackModel{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		tx = tx.Where("category = ?", filter.Category)
	}
	if filter.AuthorID != "" {
		tx = tx.Where("author_id = ?", filter.AuthorID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		tx = tx.Where("title ILIKE ? OR content ILIKE ?", pattern, pattern)
	}
	return tx
}

// UpdateTriage applies status/assignee changes; empty values keep the
// current field. updated_at is touched either way.
func (s *GormStore) UpdateTriage(id string, status domain.FeedbackStatus, assignedTo string) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if status != "" {
		updates["status"] = string(status)
	}
	if assignedTo != "" {
		updates["assigned_to"] = assignedTo
	}
	res := s.db.Model(&FeedbackModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendComment records a comment and touches the parent record.
func (s *GormStore) AppendComment(feedbackID string, c domain.Comment) error {
	model := commentToModel(c)
	model.FeedbackID = feedbackID
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return tx.Model(&FeedbackModel{}).
			Where("id = ?", feedbackID).
			Update("updated_at", time.Now().UTC()).Error
	})
}

// AddAttachment appends attachment metadata to the record's JSON column.
func (s *GormStore) AddAttachment(feedbackID string, a domain.Attachment) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model FeedbackModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&model, "id = ?", feedbackID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrNotFound
			}
			return err
		}
		attachments, err := attachmentsFromJSON(model.Attachments)
		if err != nil {
			return err
		}
		attachments = append(attachments, a)
		raw, err := attachmentsToJSON(attachments)
		if err != nil {
			return err
		}
		return tx.Model(&FeedbackModel{}).Where("id = ?", feedbackID).Updates(map[string]any{
			"attachments": raw,
			"updated_at":  time.Now().UTC(),
		}).Error
	})
}

// DeleteFeedback removes the record and its comment thread permanently.
func (s *GormStore) DeleteFeedback(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&CommentModel{}, "feedback_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&FeedbackModel{}, "id = ?", id).Error
	})
}

// DailyFeedbackCounts groups creation counts per calendar day.
func (s *GormStore) DailyFeedbackCounts(since time.Time) ([]domain.DailyCount, error) {
	var rows []domain.DailyCount
	err := s.db.Model(&FeedbackModel{}).
		Select("to_char(created_at, 'YYYY-MM-DD') AS day, count(*) AS count").
		Where("created_at >= ?", since).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	return rows, err
}

// CategoryCounts returns the category distribution.
func (s *GormStore) CategoryCounts() ([]domain.BucketCount, error) {
	return s.bucketCounts("category")
}

// StatusCounts returns the status distribution.
func (s *GormStore) StatusCounts() ([]domain.BucketCount, error) {
	return s.bucketCounts("status")
}

func (s *GormStore) bucketCounts(column string) ([]domain.BucketCount, error) {
	var rows []domain.BucketCount
	err := s.db.Model(&FeedbackModel{}).
		Select(column + " AS key, count(*) AS count").
		Group(column).
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}

// TopAuthors returns the most active feedback authors.
func (s *GormStore) TopAuthors(limit int) ([]domain.UserActivity, error) {
	var rows []domain.UserActivity
	err := s.db.Model(&FeedbackModel{}).
		Select("author_id AS user_id, count(*) AS count").
		Group("author_id").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// TopCommenters returns the most active commenters.
func (s *GormStore) TopCommenters(limit int) ([]domain.UserActivity, error) {
	var rows []domain.UserActivity
	err := s.db.Model(&CommentModel{}).
		Select("author_id AS user_id, count(*) AS count").
		Group("author_id").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func feedbackToModel(f domain.Feedback) (FeedbackModel, error) {
	raw, err := attachmentsToJSON(f.Attachments)
	if err != nil {
		return FeedbackModel{}, err
	}
	return FeedbackModel{
		ID:          f.ID,
		AuthorID:    f.AuthorID,
		Title:       f.Title,
		Category:    string(f.Category),
		Content:     f.Content,
		Status:      string(f.Status),
		Priority:    string(f.Priority),
		AssignedTo:  f.AssignedTo,
		Attachments: raw,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}, nil
}

func feedbackFromModel(m FeedbackModel) (domain.Feedback, error) {
	attachments, err := attachmentsFromJSON(m.Attachments)
	if err != nil {
		return domain.Feedback{}, err
	}
	return domain.Feedback{
		ID:          m.ID,
		AuthorID:    m.AuthorID,
		Title:       m.Title,
		Category:    domain.FeedbackCategory(m.Category),
		Content:     m.Content,
		Status:      domain.FeedbackStatus(m.Status),
		Priority:    domain.FeedbackPriority(m.Priority),
		AssignedTo:  m.AssignedTo,
		Attachments: attachments,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func commentToModel(c domain.Comment) CommentModel {
	return CommentModel{
		ID:         c.ID,
		FeedbackID: c.FeedbackID,
		AuthorID:   c.AuthorID,
		Content:    c.Content,
		CreatedAt:  c.CreatedAt,
	}
}

func commentFromModel(m CommentModel) domain.Comment {
	return domain.Comment{
		ID:         m.ID,
		FeedbackID: m.FeedbackID,
		AuthorID:   m.AuthorID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}

type attachmentRecord struct {
	Filename   string    `json:"filename"`
	Key        string    `json:"key"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func attachmentsToJSON(attachments []domain.Attachment) (datatypes.JSON, error) {
	records := make([]attachmentRecord, 0, len(attachments))
	for _, a := range attachments {
		records = append(records, attachmentRecord(a))
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func attachmentsFromJSON(raw datatypes.JSON) ([]domain.Attachment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var records []attachmentRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	attachments := make([]domain.Attachment, 0, len(records))
	for _, r := range records {
		attachments = append(attachments, domain.Attachment(r))
	}
	return attachments, nil
}
