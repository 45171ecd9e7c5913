package pocketbase

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failed collaborator call.
type Kind int

const (
	KindCollaborator Kind = iota
	KindCancelled
	KindNotFound
	KindValidationFailed
)

func (k Kind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindNotFound:
		return "not_found"
	case KindValidationFailed:
		return "validation_failed"
	default:
		return "collaborator_error"
	}
}

// errSuperseded is the cancellation cause set when a newer request with the
// same key replaces an in-flight one.
var errSuperseded = errors.New("request superseded by a newer one")

// FieldError is a per-field rejection reported by the collaborator.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is returned by every Session method when a call fails.
type Error struct {
	Kind    Kind
	Status  int
	URL     string
	Message string
	Fields  map[string]FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("pocketbase: %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("pocketbase: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err. Errors that did not come from this package
// count as cancelled when they wrap a context cancellation.
func KindOf(err error) Kind {
	var pbErr *Error
	if errors.As(err, &pbErr) {
		return pbErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindCollaborator
}

func IsCancelled(err error) bool {
	return err != nil && KindOf(err) == KindCancelled
}

func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// Message returns the human readable part of err, suitable for a banner.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var pbErr *Error
	if errors.As(err, &pbErr) {
		if len(pbErr.Fields) == 0 {
			return pbErr.Message
		}
		// first field only, the banner has room for one line
		name := sortedKeys(pbErr.Fields)[0]
		return fmt.Sprintf("%s %s: %s", pbErr.Message, name, pbErr.Fields[name].Message)
	}
	return err.Error()
}
