package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/models"
)

const reviewsListKey = "reviews:list"

type ReviewConfig struct {
	Collection string
	// GameField is the name of the record field referencing the game.
	GameField  string
	MaxReviews int
}

type ReviewService struct {
	collab    Collaborator
	cfg       ReviewConfig
	validator *formValidator
	log       *slog.Logger
}

func NewReviewService(collab Collaborator, cfg ReviewConfig, log *slog.Logger) *ReviewService {
	return &ReviewService{
		collab:    collab,
		cfg:       cfg,
		validator: newFormValidator(Rules{}),
		log:       log,
	}
}

// ListReviews returns up to MaxReviews reviews of gameID, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, gameID string) ([]models.Review, error) {
	const op = "services.reviews.ListReviews"

	if gameID == "" {
		verr := &ValidationError{}
		verr.Add("game", "Game is required")
		return nil, fmt.Errorf("%s: %w", op, verr)
	}

	var raw []json.RawMessage
	_, err := s.collab.List(ctx, s.cfg.Collection, pocketbase.ListOptions{
		Page:       1,
		PerPage:    s.cfg.MaxReviews,
		Sort:       "-created",
		Filter:     pocketbase.Eq(s.cfg.GameField, gameID),
		RequestKey: reviewsListKey,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reviews := make([]models.Review, 0, len(raw))
	for _, item := range raw {
		r, err := s.decode(item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		reviews = append(reviews, r)
	}

	return reviews, nil
}

// SubmitReview rejects invalid input without calling the collaborator.
func (s *ReviewService) SubmitReview(ctx context.Context, gameID string, form models.ReviewForm) (*models.Review, error) {
	const op = "services.reviews.SubmitReview"

	form.Name = strings.TrimSpace(form.Name)
	form.Comment = strings.TrimSpace(form.Comment)

	verr := s.validator.check(form)
	if gameID == "" {
		verr.Add("game", "Game is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	body := map[string]any{
		"name":          form.Name,
		"comment":       form.Comment,
		"rating":        form.Rating,
		s.cfg.GameField: gameID,
	}

	var raw json.RawMessage
	if err := s.collab.Create(ctx, s.cfg.Collection, body, &raw); err != nil {
		s.log.Error("failed to create review",
			slog.String("operation", op),
			slog.String("game_id", gameID),
			slog.String("kind", pocketbase.KindOf(err).String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("review submitted",
		slog.String("operation", op),
		slog.String("id", created.ID),
		slog.String("game_id", gameID),
		slog.Int("rating", created.Rating))

	return &created, nil
}

func (s *ReviewService) decode(raw json.RawMessage) (models.Review, error) {
	var r models.Review
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return r, err
	}
	if ref, ok := fields[s.cfg.GameField]; ok {
		_ = json.Unmarshal(ref, &r.GameID)
	}

	return r, nil
}
