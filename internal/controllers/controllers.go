package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/models"
	"games_portal/internal/services"
	"games_portal/internal/views"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrBadRequest  = errors.New("bad request")
	ErrInvalidForm = errors.New("cannot parse form")
	ErrRender      = errors.New("failed to render page")
	ErrEncoding    = errors.New("failed to encode")
)

type GameServicer interface {
	views.GameSubmitter
	GetSubmission(ctx context.Context, id string) (*models.Game, error)
}

type ReviewServicer interface {
	views.ReviewPoster
}

// Workflow is everything one request needs, bound to a single collaborator
// session so that requests of different visitors never cancel each other.
type Workflow struct {
	Games   GameServicer
	Reviews ReviewServicer
	Session views.Canceller
}

type WorkflowFactory func() Workflow

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// status maps a workflow error to the HTTP status of the HTML pages.
func status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	}

	switch pocketbase.KindOf(err) {
	case pocketbase.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case pocketbase.KindNotFound:
		return http.StatusNotFound
	case pocketbase.KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// apiStatus is status for the JSON API, where validation is a plain 400.
func apiStatus(err error) int {
	if s := status(err); s != http.StatusUnprocessableEntity {
		return s
	}
	return http.StatusBadRequest
}

func errorResponse(err error) ErrorResponse {
	if verr, ok := services.AsValidation(err); ok {
		return ErrorResponse{Error: verr.Error(), Fields: verr.FieldMap()}
	}

	res := ErrorResponse{Error: pocketbase.Message(err)}

	var pbErr *pocketbase.Error
	if errors.As(err, &pbErr) && len(pbErr.Fields) > 0 {
		res.Error = pbErr.Message
		res.Fields = make(map[string]string, len(pbErr.Fields))
		for name, f := range pbErr.Fields {
			res.Fields[name] = f.Message
		}
	}

	return res
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, op string, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(ErrEncoding.Error(), slog.String("operation", op), slog.String("error", err.Error()))
	}
}

func writeAPIError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	writeJSON(w, log, op, apiStatus(err), errorResponse(err))
}

func render(w http.ResponseWriter, log *slog.Logger, renderer *views.Renderer, op string, code int, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	var buf bytes.Buffer
	if err := renderer.Render(&buf, page, data); err != nil {
		log.Error(ErrRender.Error(), slog.String("operation", op), slog.String("error", err.Error()))
		http.Error(w, ErrRender.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}
