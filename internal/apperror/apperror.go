package apperror

import "errors"

// Kind describes a stable error category that can be mapped to HTTP status codes.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	// KindUnprocessable marks a well-formed request the current state cannot accept,
	// e.g. a status transition that would be a no-op.
	KindUnprocessable Kind = "unprocessable"
)

// Error is a typed error with a stable Kind and a human-readable message.
// Msg and Details should be safe to return to clients for every kind except internal ones.
type Error struct {
	Kind    Kind
	Msg     string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string, err error) error      { return New(KindNotFound, msg, err) }
func Validation(msg string, err error) error    { return New(KindValidation, msg, err) }
func Conflict(msg string, err error) error      { return New(KindConflict, msg, err) }
func Unprocessable(msg string, err error) error { return New(KindUnprocessable, msg, err) }

// ValidationDetails builds a validation error carrying one message per failed rule.
func ValidationDetails(msg string, details []string, err error) error {
	return &Error{Kind: KindValidation, Msg: msg, Details: details, Err: err}
}

func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// DetailsOf returns the client-facing messages of err: its Details when set,
// otherwise its single message.
func DetailsOf(err error) []string {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	if len(e.Details) > 0 {
		out := make([]string, len(e.Details))
		copy(out, e.Details)
		return out
	}
	return []string{e.Error()}
}
