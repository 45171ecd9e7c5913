package views

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/models"
)

const (
	loadReviewsPrefix   = "Failed to load reviews: "
	submitReviewsPrefix = "Failed to submit review: "
)

type ReviewPoster interface {
	ListReviews(ctx context.Context, gameID string) ([]models.Review, error)
	SubmitReview(ctx context.Context, gameID string, form models.ReviewForm) (*models.Review, error)
}

// Canceller aborts every request still in flight. *pocketbase.Session
// implements it.
type Canceller interface {
	CancelAll()
}

// ReviewModal shows the reviews of one game and takes new ones.
type ReviewModal struct {
	svc           ReviewPoster
	canceller     Canceller
	onReviewAdded func(*models.Review)
	log           *slog.Logger

	mu        sync.Mutex
	open      bool
	gameID    string
	loadedFor string
	state     State
	reviews   []models.Review
	form      models.ReviewForm
	loadErr   string
	submitErr string
	fieldErrs map[string]string
	added     *models.Review
}

type ModalView struct {
	Open        bool
	GameID      string
	State       State
	Reviews     []models.Review
	Form        models.ReviewForm
	Error       string
	FieldErrors map[string]string
	Added       *models.Review
}

func (v ModalView) Busy() bool {
	return v.State == StateSubmitting
}

// NewReviewModal builds a closed modal. canceller and onReviewAdded may be nil.
func NewReviewModal(svc ReviewPoster, canceller Canceller, onReviewAdded func(*models.Review), log *slog.Logger) *ReviewModal {
	return &ReviewModal{
		svc:           svc,
		canceller:     canceller,
		onReviewAdded: onReviewAdded,
		log:           log,
		reviews:       []models.Review{},
	}
}

// Open shows the modal for gameID. Switching to another game drops whatever
// belonged to the previous one before anything is fetched. Reviews are loaded
// once per game id.
func (m *ReviewModal) Open(ctx context.Context, gameID string) error {
	m.mu.Lock()
	m.open = true
	if gameID != m.gameID {
		m.gameID = gameID
		m.state = StateIdle
		m.reviews = []models.Review{}
		m.form = models.ReviewForm{}
		m.loadErr = ""
		m.submitErr = ""
		m.fieldErrs = nil
		m.added = nil
	}
	load := gameID != "" && m.loadedFor != gameID
	if load {
		m.loadedFor = gameID
	}
	m.mu.Unlock()

	if !load {
		return nil
	}
	return m.Fetch(ctx)
}

// Fetch reloads the reviews of the current game. Results that arrive for a
// game the modal no longer shows are dropped, as are superseded requests.
func (m *ReviewModal) Fetch(ctx context.Context) error {
	const op = "views.ReviewModal.Fetch"

	m.mu.Lock()
	gameID := m.gameID
	m.mu.Unlock()

	if gameID == "" {
		return nil
	}

	reviews, err := m.svc.ListReviews(ctx, gameID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gameID != m.gameID {
		m.log.Debug("discarding stale reviews",
			slog.String("operation", op),
			slog.String("game_id", gameID),
			slog.String("current", m.gameID))
		return nil
	}

	if err != nil {
		if pocketbase.IsCancelled(err) {
			return nil
		}
		m.log.Error("failed to load reviews",
			slog.String("operation", op),
			slog.String("game_id", gameID),
			slog.String("error", err.Error()))
		m.loadErr = loadReviewsPrefix + pocketbase.Message(err)
		m.reviews = []models.Review{}
		return err
	}

	m.reviews = reviews
	m.loadErr = ""
	return nil
}

// Submit posts a review for the current game. On success the form is reset,
// the reviews are refetched, the modal returns to idle with the review in
// Added and onReviewAdded is called.
func (m *ReviewModal) Submit(ctx context.Context, form models.ReviewForm) (*models.Review, error) {
	m.mu.Lock()
	if m.state == StateSubmitting {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	gameID := m.gameID
	m.state = StateSubmitting
	m.form = form
	m.submitErr = ""
	m.fieldErrs = nil
	m.added = nil
	m.mu.Unlock()

	review, err := m.svc.SubmitReview(ctx, gameID, form)

	m.mu.Lock()
	if err != nil {
		out := failure(err, submitReviewsPrefix)
		m.state = out.state
		m.submitErr = out.banner
		m.fieldErrs = out.fields
		m.mu.Unlock()
		return nil, err
	}
	m.state = StateSuccess
	m.form = models.ReviewForm{}
	m.added = review
	m.mu.Unlock()

	_ = m.Fetch(ctx)

	m.mu.Lock()
	if m.state == StateSuccess {
		m.state = StateIdle
	}
	m.mu.Unlock()

	if m.onReviewAdded != nil {
		m.onReviewAdded(review)
	}

	return review, nil
}

// Close hides the modal and cancels its outstanding requests.
func (m *ReviewModal) Close() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()

	if m.canceller != nil {
		m.canceller.CancelAll()
	}
}

func (m *ReviewModal) Snapshot() ModalView {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ModalView{
		Open:        m.open,
		GameID:      m.gameID,
		State:       m.state,
		Reviews:     slices.Clone(m.reviews),
		Form:        m.form,
		Error:       firstNonEmpty(m.submitErr, m.loadErr),
		FieldErrors: m.fieldErrs,
		Added:       m.added,
	}
}
