package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The message is shown to end users and must not enable account enumeration.
	ErrInvalidCredentials = errors.New("Invalid email or password")

	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidAdminCode   = errors.New("invalid admin registration code")

	// ErrForbidden is returned when an authenticated caller lacks the
	// rights for the requested operation.
	ErrForbidden = errors.New("forbidden")

	ErrFeedbackNotFound = errors.New("feedback not found")
	ErrUserNotFound     = errors.New("user not found")
)

// ValidationError marks caller mistakes that map to a 400 response.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// Validation wraps a message as a ValidationError.
func Validation(msg string) error { return ValidationError{Msg: msg} }

// IsValidation reports whether err is a caller-input error.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}
