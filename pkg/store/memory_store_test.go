package store

import (
	"fmt"
	"testing"
	"time"

	"feedbackhub/pkg/domain"
)

func seedFeedback(t *testing.T, s *MemoryStore, n int) []domain.Feedback {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	categories := []domain.FeedbackCategory{
		domain.CategoryBug, domain.CategoryFeature, domain.CategoryImprovement, domain.CategoryOther,
	}
	statuses := []domain.FeedbackStatus{
		domain.StatusPending, domain.StatusInProgress, domain.StatusResolved,
	}
	var seeded []domain.Feedback
	for i := 0; i < n; i++ {
		fb := domain.Feedback{
			ID:        fmt.Sprintf("fb-%02d", i),
			Title:     fmt.Sprintf("Issue %d", i),
			Category:  categories[i%len(categories)],
			Content:   fmt.Sprintf("description %d", i),
			Status:    statuses[i%len(statuses)],
			Priority:  domain.PriorityMedium,
			AuthorID:  fmt.Sprintf("user-%d", i%3),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveFeedback(fb); err != nil {
			t.Fatalf("save feedback: %v", err)
		}
		seeded = append(seeded, fb)
	}
	return seeded
}

func TestListFeedbackOrdersNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	seedFeedback(t, s, 5)

	items, total, err := s.ListFeedback(domain.ListFilter{})
	if err != nil {
		t.Fatalf("list feedback: %v", err)
	}
	if total != 5 || len(items) != 5 {
		t.Fatalf("expected 5 items, got %d (total %d)", len(items), total)
	}
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.After(items[i-1].CreatedAt) {
			t.Fatalf("items not in descending created_at order at index %d", i)
		}
	}
}

func TestListFeedbackPagesConcatenateToTotal(t *testing.T) {
	s := NewMemoryStore()
	seedFeedback(t, s, 23)

	var collected []domain.Feedback
	limit := 10
	for page := 1; ; page++ {
		items, total, err := s.ListFeedback(domain.ListFilter{Page: page, Limit: limit})
		if err != nil {
			t.Fatalf("list page %d: %v", page, err)
		}
		if total != 23 {
			t.Fatalf("expected total 23, got %d", total)
		}
		if len(items) == 0 {
			break
		}
		collected = append(collected, items...)
	}
	if len(collected) != 23 {
		t.Fatalf("concatenated pages hold %d items, want 23", len(collected))
	}
	for i := 1; i < len(collected); i++ {
		if collected[i].CreatedAt.After(collected[i-1].CreatedAt) {
			t.Fatalf("concatenated pages out of order at index %d", i)
		}
	}
}

func TestListFeedbackPageBeyondEndIsEmpty(t *testing.T) {
	s := NewMemoryStore()
	seedFeedback(t, s, 3)

	items, total, err := s.ListFeedback(domain.ListFilter{Page: 99, Limit: 10})
	if err != nil {
		t.Fatalf("list feedback: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty page, got %d items", len(items))
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
}

func TestListFeedbackClampsPageAndLimit(t *testing.T) {
	s := NewMemoryStore()
	seedFeedback(t, s, 15)

	items, _, err := s.ListFeedback(domain.ListFilter{Page: -2, Limit: 0})
	if err != nil {
		t.Fatalf("list feedback: %v", err)
	}
	if len(items) != domain.DefaultPageSize {
		t.Fatalf("expected default page size %d, got %d", domain.DefaultPageSize, len(items))
	}
}

func TestListFeedbackFilters(t *testing.T) {
	s := NewMemoryStore()
	seedFeedback(t, s, 12)

	items, total, err := s.ListFeedback(domain.ListFilter{Status: string(domain.StatusPending)})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 pending, got %d", total)
	}
	for _, fb := range items {
		if fb.Status != domain.StatusPending {
			t.Fatalf("status filter leaked %q", fb.Status)
		}
	}

	items, _, err = s.ListFeedback(domain.ListFilter{Category: string(domain.CategoryBug)})
	if err != nil {
		t.Fatalf("list by category: %v", err)
	}
	for _, fb := range items {
		if fb.Category != domain.CategoryBug {
			t.Fatalf("category filter leaked %q", fb.Category)
		}
	}

	_, total, err = s.ListFeedback(domain.ListFilter{AuthorID: "user-1"})
	if err != nil {
		t.Fatalf("list by author: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected 4 for user-1, got %d", total)
	}
}

func TestListFeedbackSearchIsCaseInsensitiveOverTitleAndContent(t *testing.T) {
	s := NewMemoryStore()
	must := func(err error) {
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	now := time.Now().UTC()
	must(s.SaveFeedback(domain.Feedback{ID: "a", Title: "Login CRASHES on submit", Content: "steps", Status: domain.StatusPending, Category: domain.CategoryBug, AuthorID: "u", CreatedAt: now}))
	must(s.SaveFeedback(domain.Feedback{ID: "b", Title: "minor", Content: "the app crashes at night", Status: domain.StatusPending, Category: domain.CategoryBug, AuthorID: "u", CreatedAt: now}))
	must(s.SaveFeedback(domain.Feedback{ID: "c", Title: "unrelated", Content: "nothing here", Status: domain.StatusPending, Category: domain.CategoryBug, AuthorID: "u", CreatedAt: now}))

	_, total, err := s.ListFeedback(domain.ListFilter{Search: "crash"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 matches for 'crash', got %d", total)
	}
}

func TestAppendCommentKeepsOrderAndTouchesParent(t *testing.T) {
	s := NewMemoryStore()
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := s.SaveFeedback(domain.Feedback{ID: "fb", Title: "t", Content: "c", Status: domain.StatusPending, Category: domain.CategoryBug, AuthorID: "u", CreatedAt: created, UpdatedAt: created}); err != nil {
		t.Fatalf("save feedback: %v", err)
	}

	for i := 0; i < 3; i++ {
		c := domain.Comment{
			ID:         fmt.Sprintf("c-%d", i),
			FeedbackID: "fb",
			AuthorID:   "u",
			Content:    fmt.Sprintf("comment %d", i),
			CreatedAt:  created.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendComment("fb", c); err != nil {
			t.Fatalf("append comment: %v", err)
		}
	}

	fb, ok, err := s.GetFeedback("fb")
	if err != nil || !ok {
		t.Fatalf("get feedback: ok=%v err=%v", ok, err)
	}
	if len(fb.Comments) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(fb.Comments))
	}
	for i, c := range fb.Comments {
		if c.ID != fmt.Sprintf("c-%d", i) {
			t.Fatalf("comment order broken at %d: %q", i, c.ID)
		}
	}
	if !fb.UpdatedAt.After(created) {
		t.Fatalf("expected updated_at to be touched")
	}

	if err := s.AppendComment("missing", domain.Comment{ID: "x"}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing parent, got %v", err)
	}
}

func TestUpdateTriagePartialUpdate(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveFeedback(domain.Feedback{ID: "fb", Title: "t", Content: "c", Status: domain.StatusPending, Category: domain.CategoryBug, AuthorID: "u", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("save feedback: %v", err)
	}

	if err := s.UpdateTriage("fb", domain.StatusInProgress, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	fb, _, _ := s.GetFeedback("fb")
	if fb.Status != domain.StatusInProgress || fb.AssignedTo != "" {
		t.Fatalf("unexpected record after status update: %+v", fb)
	}

	if err := s.UpdateTriage("fb", "", "admin-1"); err != nil {
		t.Fatalf("update assignee: %v", err)
	}
	fb, _, _ = s.GetFeedback("fb")
	if fb.Status != domain.StatusInProgress || fb.AssignedTo != "admin-1" {
		t.Fatalf("unexpected record after assignee update: %+v", fb)
	}

	if err := s.UpdateTriage("missing", domain.StatusResolved, ""); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteFeedbackRemovesCommentsToo(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveFeedback(domain.Feedback{ID: "fb", Title: "t", Content: "c", Status: domain.StatusPending, Category: domain.CategoryBug, AuthorID: "u", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("save feedback: %v", err)
	}
	if err := s.AppendComment("fb", domain.Comment{ID: "c1", FeedbackID: "fb", AuthorID: "u", Content: "x", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("append comment: %v", err)
	}

	if err := s.DeleteFeedback("fb"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetFeedback("fb"); ok {
		t.Fatalf("expected record gone after delete")
	}
	if n, _ := s.TopCommenters(10); len(n) != 0 {
		t.Fatalf("expected comment thread gone after delete")
	}
}

func TestAggregations(t *testing.T) {
	s := NewMemoryStore()
	seedFeedback(t, s, 12)
	for i := 0; i < 5; i++ {
		author := "user-0"
		if i >= 3 {
			author = "user-1"
		}
		c := domain.Comment{ID: fmt.Sprintf("c-%d", i), FeedbackID: "fb-00", AuthorID: author, Content: "x", CreatedAt: time.Now().UTC()}
		if err := s.AppendComment("fb-00", c); err != nil {
			t.Fatalf("append comment: %v", err)
		}
	}

	daily, err := s.DailyFeedbackCounts(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("daily counts: %v", err)
	}
	sum := 0
	for _, d := range daily {
		sum += d.Count
	}
	if sum != 12 {
		t.Fatalf("daily counts sum to %d, want 12", sum)
	}

	categories, err := s.CategoryCounts()
	if err != nil {
		t.Fatalf("category counts: %v", err)
	}
	if len(categories) != 4 {
		t.Fatalf("expected 4 category buckets, got %d", len(categories))
	}

	statuses, err := s.StatusCounts()
	if err != nil {
		t.Fatalf("status counts: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 status buckets, got %d", len(statuses))
	}

	authors, err := s.TopAuthors(2)
	if err != nil {
		t.Fatalf("top authors: %v", err)
	}
	if len(authors) != 2 || authors[0].Count < authors[1].Count {
		t.Fatalf("unexpected top authors: %+v", authors)
	}

	commenters, err := s.TopCommenters(10)
	if err != nil {
		t.Fatalf("top commenters: %v", err)
	}
	if len(commenters) != 2 || commenters[0].UserID != "user-0" || commenters[0].Count != 3 {
		t.Fatalf("unexpected top commenters: %+v", commenters)
	}
}
