package app

import (
	"errors"
	"fmt"
	"testing"

	"feedbackhub/pkg/domain"
)

func TestAnalyticsRequiresAdmin(t *testing.T) {
	a := newTestApp(t)
	_, alice := registerUser(t, a, "Alice", "alice@example.com")
	if _, err := a.Analytics(alice); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestAnalyticsReport(t *testing.T) {
	a := newTestApp(t)
	_, alice := registerUser(t, a, "Alice", "alice@example.com")
	_, bob := registerUser(t, a, "Bob", "bob@example.com")
	_, admin := registerAdmin(t, a, "Root", "root@example.com")

	// Alice files three bugs, Bob one feature. Bob comments twice.
	var first domain.Feedback
	for i := 0; i < 3; i++ {
		fb, err := a.CreateFeedback(alice, fmt.Sprintf("Bug %d", i), "bug", "x", "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if i == 0 {
			first = fb
		}
	}
	if _, err := a.CreateFeedback(bob, "Feature", "feature", "x", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := a.AddComment(bob, first.ID, "note"); err != nil {
			t.Fatalf("comment: %v", err)
		}
	}
	if _, err := a.UpdateTriage(admin, first.ID, "resolved", ""); err != nil {
		t.Fatalf("triage: %v", err)
	}

	report, err := a.Analytics(admin)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}

	total := 0
	for _, d := range report.DailyCreated {
		total += d.Count
	}
	if total != 4 {
		t.Fatalf("daily counts sum to %d, want 4", total)
	}

	categories := map[string]int{}
	for _, b := range report.Categories {
		categories[b.Key] = b.Count
	}
	if categories["bug"] != 3 || categories["feature"] != 1 {
		t.Fatalf("categories = %+v", report.Categories)
	}

	statuses := map[string]int{}
	for _, b := range report.Statuses {
		statuses[b.Key] = b.Count
	}
	if statuses["pending"] != 3 || statuses["resolved"] != 1 {
		t.Fatalf("statuses = %+v", report.Statuses)
	}

	if len(report.TopAuthors) == 0 || report.TopAuthors[0].Count != 3 || report.TopAuthors[0].Name != "Alice" {
		t.Fatalf("top authors = %+v, want Alice with 3", report.TopAuthors)
	}
	if len(report.TopCommenters) != 1 || report.TopCommenters[0].Count != 2 || report.TopCommenters[0].Name != "Bob" {
		t.Fatalf("top commenters = %+v, want Bob with 2", report.TopCommenters)
	}
}
