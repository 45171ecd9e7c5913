package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/models"
	"games_portal/internal/uploads"
)

const (
	screenshotField = "screenshot"
	thumbSize       = "100x100"

	gamesListKey = "games:list"
)

// Collaborator is the slice of the backend client the services need.
// *pocketbase.Session implements it.
type Collaborator interface {
	List(ctx context.Context, collection string, opts pocketbase.ListOptions, items any) (*pocketbase.Page, error)
	View(ctx context.Context, collection, id string, out any) error
	Create(ctx context.Context, collection string, body any, out any) error
	CreateMultipart(ctx context.Context, collection string, fields map[string]string, files []pocketbase.File, out any) error
	FileURL(collection, recordID, filename, thumb string) string
}

type GameConfig struct {
	Collection     string
	MaxSubmissions int
	MaxUploadSize  int64
	Rules          Rules
}

type GameService struct {
	collab    Collaborator
	cfg       GameConfig
	validator *formValidator
	log       *slog.Logger
}

func NewGameService(collab Collaborator, cfg GameConfig, log *slog.Logger) *GameService {
	return &GameService{
		collab:    collab,
		cfg:       cfg,
		validator: newFormValidator(cfg.Rules),
		log:       log,
	}
}

// SubmitGame validates the form and screenshot locally and only then creates
// the record. The screenshot is required for every new submission.
func (s *GameService) SubmitGame(ctx context.Context, form models.GameForm, shot *uploads.Screenshot) (*models.Game, error) {
	const op = "services.games.SubmitGame"

	form = trimGameForm(form)

	if err := s.Validate(form, shot); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	files := []pocketbase.File{{
		Field:       screenshotField,
		Name:        shot.Filename,
		ContentType: shot.ContentType,
		Data:        shot.Data,
	}}

	var created models.Game
	if err := s.collab.CreateMultipart(ctx, s.cfg.Collection, form.Fields(), files, &created); err != nil {
		s.log.Error("failed to create game",
			slog.String("operation", op),
			slog.String("kind", pocketbase.KindOf(err).String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.resolveFiles(&created)

	s.log.Info("game submitted",
		slog.String("operation", op),
		slog.String("id", created.ID),
		slog.String("title", created.Title))

	return &created, nil
}

// Validate reports every local problem with form and shot, or nil.
// It normalizes shot on success.
func (s *GameService) Validate(form models.GameForm, shot *uploads.Screenshot) error {
	verr := s.validator.check(form)

	if shot == nil {
		verr.Add(screenshotField, "Screenshot is required")
		return verr.orNil()
	}

	switch err := shot.Normalize(s.cfg.MaxUploadSize); {
	case err == nil:
	case errors.Is(err, uploads.ErrEmptyImage):
		verr.Add(screenshotField, "Screenshot is required")
	case errors.Is(err, uploads.ErrTooLarge):
		verr.Add(screenshotField, fmt.Sprintf("Screenshot must be at most %d MB", s.cfg.MaxUploadSize>>20))
	default:
		verr.Add(screenshotField, "Screenshot must be an image")
	}

	return verr.orNil()
}

// ListSubmissions returns up to MaxSubmissions games, newest first.
func (s *GameService) ListSubmissions(ctx context.Context) ([]models.Game, error) {
	const op = "services.games.ListSubmissions"

	var games []models.Game
	_, err := s.collab.List(ctx, s.cfg.Collection, pocketbase.ListOptions{
		Page:       1,
		PerPage:    s.cfg.MaxSubmissions,
		Sort:       "-created",
		RequestKey: gamesListKey,
	}, &games)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if games == nil {
		games = []models.Game{}
	}

	for i := range games {
		s.resolveFiles(&games[i])
	}

	return games, nil
}

func (s *GameService) GetSubmission(ctx context.Context, id string) (*models.Game, error) {
	const op = "services.games.GetSubmission"

	var g models.Game
	if err := s.collab.View(ctx, s.cfg.Collection, id, &g); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.resolveFiles(&g)

	return &g, nil
}

func (s *GameService) resolveFiles(g *models.Game) {
	if g.Screenshot == "" {
		return
	}

	collection := g.CollectionID
	if collection == "" {
		collection = g.CollectionName
	}
	if collection == "" {
		collection = s.cfg.Collection
	}

	g.ScreenshotURL = s.collab.FileURL(collection, g.ID, g.Screenshot, "")
	g.ThumbnailURL = s.collab.FileURL(collection, g.ID, g.Screenshot, thumbSize)
}

func trimGameForm(f models.GameForm) models.GameForm {
	return models.GameForm{
		FullName:   strings.TrimSpace(f.FullName),
		Email:      strings.TrimSpace(f.Email),
		Title:      strings.TrimSpace(f.Title),
		HostedLink: strings.TrimSpace(f.HostedLink),
		GithubLink: strings.TrimSpace(f.GithubLink),
	}
}
