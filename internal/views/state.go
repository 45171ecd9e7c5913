// Package views holds the per-request state of the submission board and the
// review modal, and renders them to HTML.
package views

import (
	"errors"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/services"
)

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

var ErrBusy = errors.New("a submission is already in progress")

// outcome is what a failed submit leaves on screen.
type outcome struct {
	state  State
	banner string
	fields map[string]string
}

// failure classifies err for display. Local validation messages are shown
// bare, cancellations leave nothing behind, anything else gets prefix.
func failure(err error, prefix string) outcome {
	if verr, ok := services.AsValidation(err); ok {
		return outcome{state: StateFailed, banner: verr.Error(), fields: verr.FieldMap()}
	}
	if pocketbase.IsCancelled(err) {
		return outcome{state: StateIdle}
	}
	return outcome{state: StateFailed, banner: prefix + pocketbase.Message(err)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
