package app

import (
	"testing"

	"feedbackhub/pkg/domain"
)

func TestGuardPredicates(t *testing.T) {
	admin := &domain.Identity{UserID: "u-admin", Role: domain.RoleAdmin}
	user := &domain.Identity{UserID: "u-user", Role: domain.RoleUser}

	cases := []struct {
		name  string
		check func(*domain.Identity) bool
		ident *domain.Identity
		want  bool
	}{
		{"create nil identity", CanCreateFeedback, nil, false},
		{"create user", CanCreateFeedback, user, true},
		{"create admin", CanCreateFeedback, admin, true},
		{"view nil identity", CanViewFeedback, nil, false},
		{"view user", CanViewFeedback, user, true},
		{"comment nil identity", CanComment, nil, false},
		{"comment user", CanComment, user, true},
		{"triage nil identity", CanTriage, nil, false},
		{"triage user", CanTriage, user, false},
		{"triage admin", CanTriage, admin, true},
		{"admin surface user", CanAccessAdmin, user, false},
		{"admin surface admin", CanAccessAdmin, admin, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.check(tc.ident); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanDeleteFeedback(t *testing.T) {
	admin := &domain.Identity{UserID: "u-admin", Role: domain.RoleAdmin}
	author := &domain.Identity{UserID: "u-author", Role: domain.RoleUser}
	other := &domain.Identity{UserID: "u-other", Role: domain.RoleUser}
	fb := domain.Feedback{ID: "f1", AuthorID: "u-author"}

	if CanDeleteFeedback(nil, fb) {
		t.Fatalf("nil identity must not delete")
	}
	if !CanDeleteFeedback(admin, fb) {
		t.Fatalf("admin must delete any feedback")
	}
	if !CanDeleteFeedback(author, fb) {
		t.Fatalf("author must delete own feedback")
	}
	if CanDeleteFeedback(other, fb) {
		t.Fatalf("non-author user must not delete")
	}
}

func TestOwnFeedbackFilterOverridesAuthor(t *testing.T) {
	ident := domain.Identity{UserID: "u-me", Role: domain.RoleUser}
	filter := domain.ListFilter{AuthorID: "u-someone-else", Status: "pending"}

	got := OwnFeedbackFilter(ident, filter)
	if got.AuthorID != "u-me" {
		t.Fatalf("AuthorID = %q, want caller's own id", got.AuthorID)
	}
	if got.Status != "pending" {
		t.Fatalf("other filter fields must survive, got status %q", got.Status)
	}
}
