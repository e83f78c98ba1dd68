package domain

import "errors"

// Error kinds. Every domain error wraps exactly one of these so the handler
// layer can classify it with errors.Is without knowing the specific sentinel.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")
	ErrConflict   = errors.New("conflict")
)

// Domain errors - these are business logic errors that should be translated
// to appropriate HTTP status codes by the handler layer

var (
	// User errors
	ErrUserNotFound       = NewDomainError(ErrNotFound, "user not found")
	ErrUserAlreadyExists  = NewDomainError(ErrConflict, "user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")

	// Catalog errors
	ErrProblemNotFound   = NewDomainError(ErrNotFound, "problem not found")
	ErrSheetNotFound     = NewDomainError(ErrNotFound, "sheet not found")
	ErrNoUnsolvedProblem = NewDomainError(ErrNotFound, "no unsolved problems available")

	// Progress errors
	ErrProgressNotFound    = NewDomainError(ErrNotFound, "progress record not found")
	ErrInvalidTimeTaken    = NewDomainError(ErrValidation, "time taken must be zero or positive")
	ErrMissingProblemID    = NewDomainError(ErrValidation, "problem id is required")
	ErrEmptyIntervals      = NewDomainError(ErrValidation, "revision intervals must not be empty")
	ErrInvalidInterval     = NewDomainError(ErrValidation, "revision intervals must be positive days")
	ErrInvalidStatusFilter = NewDomainError(ErrValidation, "unknown revision status filter")

	// Revision errors
	ErrRevisionNotFound         = NewDomainError(ErrNotFound, "revision not found")
	ErrRevisionAlreadyCompleted = NewDomainError(ErrConflict, "revision already completed")

	// Concurrency errors
	ErrStaleWrite = NewDomainError(ErrConflict, "record was modified concurrently")

	// General errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
	Cause   error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Err.Error()
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *DomainError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// NewDomainError creates a new DomainError with the given error and message
func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

// StorageError marks a persistence failure. Domain errors pass through
// untouched so repositories can return them from inside transactions.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return &DomainError{
		Err:     ErrStorage,
		Message: "storage failure",
		Cause:   err,
	}
}
