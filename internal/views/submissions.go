package views

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/models"
	"games_portal/internal/uploads"
)

const (
	loadSubmissionsPrefix  = "Failed to load submissions: "
	submitSubmissionPrefix = "Failed to submit game: "
)

type GameSubmitter interface {
	SubmitGame(ctx context.Context, form models.GameForm, shot *uploads.Screenshot) (*models.Game, error)
	ListSubmissions(ctx context.Context) ([]models.Game, error)
}

// SubmissionBoard is the submission form together with the list of every
// submission, newest first.
type SubmissionBoard struct {
	svc GameSubmitter
	log *slog.Logger

	mu        sync.Mutex
	mounted   bool
	state     State
	games     []models.Game
	form      models.GameForm
	loadErr   string
	submitErr string
	fieldErrs map[string]string
	submitted *models.Game
}

type BoardView struct {
	State       State
	Games       []models.Game
	Form        models.GameForm
	Error       string
	FieldErrors map[string]string
	Submitted   *models.Game
}

// Busy reports whether the form controls should be disabled.
func (v BoardView) Busy() bool {
	return v.State == StateSubmitting
}

func NewSubmissionBoard(svc GameSubmitter, log *slog.Logger) *SubmissionBoard {
	return &SubmissionBoard{
		svc:   svc,
		log:   log,
		games: []models.Game{},
	}
}

// Mount performs the initial list load. Only the first call per board loads,
// and none does if a refresh already ran.
func (b *SubmissionBoard) Mount(ctx context.Context) {
	b.mu.Lock()
	if b.mounted {
		b.mu.Unlock()
		return
	}
	b.mounted = true
	b.mu.Unlock()

	_ = b.Refresh(ctx)
}

// Refresh replaces the list. A failure keeps the previous list, a superseded
// refresh changes nothing.
func (b *SubmissionBoard) Refresh(ctx context.Context) error {
	const op = "views.SubmissionBoard.Refresh"

	b.mu.Lock()
	b.mounted = true
	b.mu.Unlock()

	games, err := b.svc.ListSubmissions(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		if pocketbase.IsCancelled(err) {
			b.log.Debug("submissions refresh superseded", slog.String("operation", op))
			return nil
		}
		b.log.Error("failed to load submissions",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		b.loadErr = loadSubmissionsPrefix + pocketbase.Message(err)
		return err
	}

	b.games = games
	b.loadErr = ""
	return nil
}

// Submit sends the form. On success the form is cleared, the list is
// refreshed exactly once and the board settles back to idle with the new
// game in Submitted. On failure the input is kept for the next attempt.
func (b *SubmissionBoard) Submit(ctx context.Context, form models.GameForm, shot *uploads.Screenshot) (*models.Game, error) {
	b.mu.Lock()
	if b.state == StateSubmitting {
		b.mu.Unlock()
		return nil, ErrBusy
	}
	b.state = StateSubmitting
	b.form = form
	b.submitErr = ""
	b.fieldErrs = nil
	b.submitted = nil
	b.mu.Unlock()

	game, err := b.svc.SubmitGame(ctx, form, shot)

	b.mu.Lock()
	if err != nil {
		out := failure(err, submitSubmissionPrefix)
		b.state = out.state
		b.submitErr = out.banner
		b.fieldErrs = out.fields
		b.mu.Unlock()
		return nil, err
	}
	b.state = StateSuccess
	b.form = models.GameForm{}
	b.submitted = game
	b.mu.Unlock()

	_ = b.Refresh(ctx)

	b.mu.Lock()
	if b.state == StateSuccess {
		b.state = StateIdle
	}
	b.mu.Unlock()

	return game, nil
}

func (b *SubmissionBoard) Snapshot() BoardView {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BoardView{
		State:       b.state,
		Games:       slices.Clone(b.games),
		Form:        b.form,
		Error:       firstNonEmpty(b.submitErr, b.loadErr),
		FieldErrors: b.fieldErrs,
		Submitted:   b.submitted,
	}
}
