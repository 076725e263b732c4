package app

import "feedbackhub/pkg/domain"

// Authorization predicates. Each one is pure: it depends only on the
// identity snapshot and the record handed to it, never on storage.

// CanCreateFeedback reports whether the caller may submit feedback.
func CanCreateFeedback(ident *domain.Identity) bool {
	return ident != nil
}

// CanViewFeedback reports whether the caller may read feedback records.
// Any authenticated user may read any feedback.
func CanViewFeedback(ident *domain.Identity) bool {
	return ident != nil
}

// CanComment reports whether the caller may comment on feedback.
func CanComment(ident *domain.Identity) bool {
	return ident != nil
}

// CanTriage reports whether the caller may change status or assignee.
func CanTriage(ident *domain.Identity) bool {
	return ident != nil && ident.Role == domain.RoleAdmin
}

// CanAccessAdmin reports whether the caller may use the admin surface.
func CanAccessAdmin(ident *domain.Identity) bool {
	return ident != nil && ident.Role == domain.RoleAdmin
}

// CanDeleteFeedback reports whether the caller may delete the record:
// admins may delete anything, authors may delete their own.
func CanDeleteFeedback(ident *domain.Identity, fb domain.Feedback) bool {
	if ident == nil {
		return false
	}
	if ident.Role == domain.RoleAdmin {
		return true
	}
	return fb.AuthorID == ident.UserID
}

// OwnFeedbackFilter pins a listing filter to the caller's own records.
// The author constraint always wins over whatever the caller sent.
func OwnFeedbackFilter(ident domain.Identity, filter domain.ListFilter) domain.ListFilter {
	filter.AuthorID = ident.UserID
	return filter
}
