package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"feedbackhub/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development; the mutex provides the per-record atomicity the spec
// requires for comment appends.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	email    map[string]string // email -> user ID
	feedback map[string]domain.Feedback
	comments map[string][]domain.Comment
	order    []string // feedback insertion order, for stable tie-breaks
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		feedback: make(map[string]domain.Feedback),
		comments: make(map[string][]domain.Comment),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns all users ordered by creation time.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// SaveFeedback stores or replaces a feedback record.
func (m *MemoryStore) SaveFeedback(f domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.feedback[f.ID]; !exists {
		m.order = append(m.order, f.ID)
	}
	f.Comments = nil
	m.feedback[f.ID] = f
	return nil
}

// GetFeedback retrieves a record with its comment thread.
func (m *MemoryStore) GetFeedback(id string) (domain.Feedback, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fb, ok := m.feedback[id]
	if !ok {
		return domain.Feedback{}, false, nil
	}
	fb.Comments = append([]domain.Comment(nil), m.comments[id]...)
	return fb, true, nil
}

// ListFeedback filters, orders by created_at descending, and pages.
func (m *MemoryStore) ListFeedback(filter domain.ListFilter) ([]domain.Feedback, int, error) {
	filter = filter.Normalize()
	m.mu.RLock()
	matched := make([]domain.Feedback, 0, len(m.order))
	for _, id := range m.order {
		fb, ok := m.feedback[id]
		if ok && matchesFilter(fb, filter) {
			matched = append(matched, fb)
		}
	}
	m.mu.RUnlock()

	// Stable sort keeps insertion order for equal timestamps.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return []domain.Feedback{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matchesFilter(fb domain.Feedback, filter domain.ListFilter) bool {
	if filter.Status != "" && string(fb.Status) != filter.Status {
		return false
	}
	if filter.Category != "" && string(fb.Category) != filter.Category {
		return false
	}
	if filter.AuthorID != "" && fb.AuthorID != filter.AuthorID {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(fb.Title), needle) &&
			!strings.Contains(strings.ToLower(fb.Content), needle) {
			return false
		}
	}
	return true
}

// UpdateTriage applies status/assignee changes; empty values keep the
// current field.
func (m *MemoryStore) UpdateTriage(id string, status domain.FeedbackStatus, assignedTo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fb, ok := m.feedback[id]
	if !ok {
		return ErrNotFound
	}
	if status != "" {
		fb.Status = status
	}
	if assignedTo != "" {
		fb.AssignedTo = assignedTo
	}
	fb.UpdatedAt = time.Now().UTC()
	m.feedback[id] = fb
	return nil
}

// AppendComment records a comment and touches the parent record.
func (m *MemoryStore) AppendComment(feedbackID string, c domain.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fb, ok := m.feedback[feedbackID]
	if !ok {
		return ErrNotFound
	}
	m.comments[feedbackID] = append(m.comments[feedbackID], c)
	fb.UpdatedAt = time.Now().UTC()
	m.feedback[feedbackID] = fb
	return nil
}

// AddAttachment appends attachment metadata to the record.
func (m *MemoryStore) AddAttachment(feedbackID string, a domain.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fb, ok := m.feedback[feedbackID]
	if !ok {
		return ErrNotFound
	}
	fb.Attachments = append(fb.Attachments, a)
	fb.UpdatedAt = time.Now().UTC()
	m.feedback[feedbackID] = fb
	return nil
}

// DeleteFeedback removes the record and its comment thread permanently.
func (m *MemoryStore) DeleteFeedback(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.feedback, id)
	delete(m.comments, id)
	filtered := m.order[:0]
	for _, item := range m.order {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.order = filtered
	return nil
}

// DailyFeedbackCounts groups creation counts per calendar day.
func (m *MemoryStore) DailyFeedbackCounts(since time.Time) ([]domain.DailyCount, error) {
	m.mu.RLock()
	counts := make(map[string]int)
	for _, fb := range m.feedback {
		if fb.CreatedAt.Before(since) {
			continue
		}
		counts[fb.CreatedAt.UTC().Format("2006-01-02")]++
	}
	m.mu.RUnlock()

	res := make([]domain.DailyCount, 0, len(counts))
	for day, count := range counts {
		res = append(res, domain.DailyCount{Day: day, Count: count})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Day < res[j].Day })
	return res, nil
}

// CategoryCounts returns the category distribution.
func (m *MemoryStore) CategoryCounts() ([]domain.BucketCount, error) {
	return m.bucketCounts(func(fb domain.Feedback) string { return string(fb.Category) })
}

// StatusCounts returns the status distribution.
func (m *MemoryStore) StatusCounts() ([]domain.BucketCount, error) {
	return m.bucketCounts(func(fb domain.Feedback) string { return string(fb.Status) })
}

func (m *MemoryStore) bucketCounts(key func(domain.Feedback) string) ([]domain.BucketCount, error) {
	m.mu.RLock()
	counts := make(map[string]int)
	for _, fb := range m.feedback {
		counts[key(fb)]++
	}
	m.mu.RUnlock()
	return sortedBuckets(counts), nil
}

// TopAuthors returns the most active feedback authors.
func (m *MemoryStore) TopAuthors(limit int) ([]domain.UserActivity, error) {
	m.mu.RLock()
	counts := make(map[string]int)
	for _, fb := range m.feedback {
		counts[fb.AuthorID]++
	}
	m.mu.RUnlock()
	return topActivity(counts, limit), nil
}

// TopCommenters returns the most active commenters.
func (m *MemoryStore) TopCommenters(limit int) ([]domain.UserActivity, error) {
	m.mu.RLock()
	counts := make(map[string]int)
	for _, thread := range m.comments {
		for _, c := range thread {
			counts[c.AuthorID]++
		}
	}
	m.mu.RUnlock()
	return topActivity(counts, limit), nil
}

func sortedBuckets(counts map[string]int) []domain.BucketCount {
	res := make([]domain.BucketCount, 0, len(counts))
	for key, count := range counts {
		res = append(res, domain.BucketCount{Key: key, Count: count})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].Key < res[j].Key
	})
	return res
}

func topActivity(counts map[string]int, limit int) []domain.UserActivity {
	res := make([]domain.UserActivity, 0, len(counts))
	for id, count := range counts {
		res = append(res, domain.UserActivity{UserID: id, Count: count})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].UserID < res[j].UserID
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}
