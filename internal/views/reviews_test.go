package views

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/clients/pocketbase/pbtest"
	"games_portal/internal/models"
	"games_portal/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReviews lets a test decide, per call, what the review service answers.
type fakeReviews struct {
	mu      sync.Mutex
	list    func(ctx context.Context, gameID string) ([]models.Review, error)
	submit  func(ctx context.Context, gameID string, form models.ReviewForm) (*models.Review, error)
	listed  []string
	posted  int
	cancels int
}

func (f *fakeReviews) ListReviews(ctx context.Context, gameID string) ([]models.Review, error) {
	f.mu.Lock()
	f.listed = append(f.listed, gameID)
	list := f.list
	f.mu.Unlock()

	if list == nil {
		return []models.Review{}, nil
	}
	return list(ctx, gameID)
}

func (f *fakeReviews) SubmitReview(ctx context.Context, gameID string, form models.ReviewForm) (*models.Review, error) {
	f.mu.Lock()
	f.posted++
	submit := f.submit
	f.mu.Unlock()

	return submit(ctx, gameID, form)
}

func (f *fakeReviews) CancelAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeReviews) listCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listed...)
}

func reviewsFor(gameID string, names ...string) []models.Review {
	out := make([]models.Review, 0, len(names))
	for _, n := range names {
		out = append(out, models.Review{GameID: gameID, Name: n, Rating: 5, Comment: "ok"})
	}
	return out
}

func TestReviewModal_Open(t *testing.T) {
	t.Run("fetches once per game", func(t *testing.T) {
		fake := &fakeReviews{list: func(_ context.Context, id string) ([]models.Review, error) {
			return reviewsFor(id, "Ada"), nil
		}}
		modal := NewReviewModal(fake, fake, nil, discardLogger())

		require.NoError(t, modal.Open(context.Background(), "abc123"))
		require.NoError(t, modal.Open(context.Background(), "abc123"))

		view := modal.Snapshot()
		assert.True(t, view.Open)
		assert.Equal(t, "abc123", view.GameID)
		require.Len(t, view.Reviews, 1)
		assert.Equal(t, []string{"abc123"}, fake.listCalls())
	})

	t.Run("switching game clears state immediately", func(t *testing.T) {
		fake := &fakeReviews{
			list: func(_ context.Context, id string) ([]models.Review, error) {
				if id == "B" {
					return nil, &pocketbase.Error{Kind: pocketbase.KindCollaborator, Message: "down"}
				}
				return reviewsFor(id, "Ada"), nil
			},
			submit: func(context.Context, string, models.ReviewForm) (*models.Review, error) {
				return nil, &pocketbase.Error{Kind: pocketbase.KindCollaborator, Message: "nope"}
			},
		}
		modal := NewReviewModal(fake, nil, nil, discardLogger())

		require.NoError(t, modal.Open(context.Background(), "A"))
		_, _ = modal.Submit(context.Background(), models.ReviewForm{Name: "Bob", Rating: 3, Comment: "draft"})
		require.NotEmpty(t, modal.Snapshot().Error)

		_ = modal.Open(context.Background(), "B")

		view := modal.Snapshot()
		assert.Equal(t, "B", view.GameID)
		assert.Empty(t, view.Reviews)
		assert.Equal(t, models.ReviewForm{}, view.Form)
		assert.Equal(t, "Failed to load reviews: down", view.Error)
	})

	t.Run("reopening the same game after another fetches again", func(t *testing.T) {
		fake := &fakeReviews{}
		modal := NewReviewModal(fake, nil, nil, discardLogger())

		_ = modal.Open(context.Background(), "A")
		_ = modal.Open(context.Background(), "B")
		_ = modal.Open(context.Background(), "A")

		assert.Equal(t, []string{"A", "B", "A"}, fake.listCalls())
	})
}

func TestReviewModal_StaleResults(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	fake := &fakeReviews{list: func(_ context.Context, id string) ([]models.Review, error) {
		if id == "A" {
			close(started)
			<-release
			return reviewsFor("A", "From A"), nil
		}
		return reviewsFor("B", "From B"), nil
	}}
	modal := NewReviewModal(fake, nil, nil, discardLogger())

	done := make(chan error)
	go func() { done <- modal.Open(context.Background(), "A") }()

	<-started
	require.NoError(t, modal.Open(context.Background(), "B"))

	close(release)
	require.NoError(t, <-done)

	view := modal.Snapshot()
	assert.Equal(t, "B", view.GameID)
	require.Len(t, view.Reviews, 1)
	assert.Equal(t, "From B", view.Reviews[0].Name)
	for _, r := range view.Reviews {
		assert.NotEqual(t, "A", r.GameID)
	}
}

func TestReviewModal_Fetch(t *testing.T) {
	t.Run("cancellation never sets the banner", func(t *testing.T) {
		calls := 0
		fake := &fakeReviews{list: func(_ context.Context, id string) ([]models.Review, error) {
			calls++
			if calls == 1 {
				return reviewsFor(id, "Ada"), nil
			}
			return nil, &pocketbase.Error{Kind: pocketbase.KindCancelled, Message: "The request was autocancelled."}
		}}
		modal := NewReviewModal(fake, nil, nil, discardLogger())

		require.NoError(t, modal.Open(context.Background(), "A"))
		require.NoError(t, modal.Fetch(context.Background()))

		view := modal.Snapshot()
		assert.Empty(t, view.Error)
		assert.Len(t, view.Reviews, 1)
	})

	t.Run("other failures set the banner and clear the list", func(t *testing.T) {
		calls := 0
		fake := &fakeReviews{list: func(_ context.Context, id string) ([]models.Review, error) {
			calls++
			if calls == 1 {
				return reviewsFor(id, "Ada"), nil
			}
			return nil, &pocketbase.Error{Kind: pocketbase.KindNotFound, Status: 404, Message: "The requested resource wasn't found."}
		}}
		modal := NewReviewModal(fake, nil, nil, discardLogger())

		require.NoError(t, modal.Open(context.Background(), "A"))
		require.Error(t, modal.Fetch(context.Background()))

		view := modal.Snapshot()
		assert.Equal(t, "Failed to load reviews: The requested resource wasn't found.", view.Error)
		assert.NotNil(t, view.Reviews)
		assert.Empty(t, view.Reviews)
	})

	t.Run("nothing to fetch before open", func(t *testing.T) {
		fake := &fakeReviews{}
		modal := NewReviewModal(fake, nil, nil, discardLogger())

		require.NoError(t, modal.Fetch(context.Background()))
		assert.Empty(t, fake.listCalls())
	})
}

func TestReviewModal_Submit(t *testing.T) {
	t.Run("success resets form, refetches and notifies", func(t *testing.T) {
		var stored []models.Review
		fake := &fakeReviews{
			list: func(context.Context, string) ([]models.Review, error) {
				return append([]models.Review(nil), stored...), nil
			},
			submit: func(_ context.Context, id string, form models.ReviewForm) (*models.Review, error) {
				r := models.Review{Record: models.Record{ID: "r1"}, GameID: id, Name: form.Name, Rating: form.Rating, Comment: form.Comment}
				stored = append([]models.Review{r}, stored...)
				return &r, nil
			},
		}

		var added []*models.Review
		modal := NewReviewModal(fake, nil, func(r *models.Review) { added = append(added, r) }, discardLogger())
		require.NoError(t, modal.Open(context.Background(), "abc123"))

		review, err := modal.Submit(context.Background(), models.ReviewForm{Name: "Bob", Rating: 4, Comment: "Great game"})
		require.NoError(t, err)
		assert.Equal(t, "r1", review.ID)

		view := modal.Snapshot()
		assert.Equal(t, StateIdle, view.State)
		assert.Equal(t, review, view.Added)
		assert.Equal(t, models.ReviewForm{}, view.Form)
		require.Len(t, view.Reviews, 1)
		assert.Equal(t, "Bob", view.Reviews[0].Name)
		require.Len(t, added, 1)
		assert.Equal(t, review, added[0])
		assert.Equal(t, []string{"abc123", "abc123"}, fake.listCalls())
	})

	t.Run("validation message shown without prefix", func(t *testing.T) {
		fake := &fakeReviews{submit: func(context.Context, string, models.ReviewForm) (*models.Review, error) {
			verr := &services.ValidationError{}
			verr.Add("rating", "Rating is required")
			return nil, verr
		}}
		called := false
		modal := NewReviewModal(fake, nil, func(*models.Review) { called = true }, discardLogger())
		require.NoError(t, modal.Open(context.Background(), "abc123"))

		form := models.ReviewForm{Name: "Bob", Rating: 0, Comment: "Great game"}
		_, err := modal.Submit(context.Background(), form)
		require.ErrorIs(t, err, services.ErrValidation)

		view := modal.Snapshot()
		assert.Equal(t, StateFailed, view.State)
		assert.Equal(t, "Rating is required", view.Error)
		assert.Equal(t, "Rating is required", view.FieldErrors["rating"])
		assert.Equal(t, form, view.Form)
		assert.False(t, called)
		assert.Len(t, fake.listCalls(), 1)
	})

	t.Run("collaborator failure keeps input", func(t *testing.T) {
		fake := &fakeReviews{submit: func(context.Context, string, models.ReviewForm) (*models.Review, error) {
			return nil, &pocketbase.Error{Kind: pocketbase.KindCollaborator, Status: 500, Message: "Something went wrong"}
		}}
		modal := NewReviewModal(fake, nil, nil, discardLogger())
		require.NoError(t, modal.Open(context.Background(), "abc123"))

		form := models.ReviewForm{Name: "Bob", Rating: 4, Comment: "Great game"}
		_, err := modal.Submit(context.Background(), form)
		require.Error(t, err)

		view := modal.Snapshot()
		assert.Equal(t, "Failed to submit review: Something went wrong", view.Error)
		assert.Equal(t, form, view.Form)
	})

	t.Run("busy while submitting", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		fake := &fakeReviews{submit: func(context.Context, string, models.ReviewForm) (*models.Review, error) {
			close(started)
			<-release
			return nil, errors.New("boom")
		}}
		modal := NewReviewModal(fake, nil, nil, discardLogger())
		require.NoError(t, modal.Open(context.Background(), "abc123"))

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = modal.Submit(context.Background(), models.ReviewForm{Name: "A", Rating: 1, Comment: "x"})
		}()

		<-started
		assert.True(t, modal.Snapshot().Busy())
		_, err := modal.Submit(context.Background(), models.ReviewForm{Name: "B", Rating: 1, Comment: "y"})
		assert.ErrorIs(t, err, ErrBusy)

		close(release)
		<-done
	})
}

func TestReviewModal_Close(t *testing.T) {
	fake := &fakeReviews{}
	modal := NewReviewModal(fake, fake, nil, discardLogger())
	require.NoError(t, modal.Open(context.Background(), "A"))

	modal.Close()

	assert.False(t, modal.Snapshot().Open)
	assert.Equal(t, 1, fake.cancels)
}

func newReviewModal(t *testing.T, pb *pbtest.Server, onAdded func(*models.Review)) *ReviewModal {
	t.Helper()

	client, err := pocketbase.New(discardLogger(), pb.URL, 5*time.Second)
	require.NoError(t, err)

	session := client.NewSession()
	svc := services.NewReviewService(session, services.ReviewConfig{
		Collection: "comments",
		GameField:  "game",
		MaxReviews: 50,
	}, discardLogger())

	return NewReviewModal(svc, session, onAdded, discardLogger())
}

func TestReviewModal_Scenario(t *testing.T) {
	pb := pbtest.New(t)
	pb.Require("comments", "name", "comment", "rating", "game")
	pb.Seed("comments", map[string]any{"game": "abc123", "name": "Ada", "rating": 5, "comment": "Lovely"})
	pb.Seed("comments", map[string]any{"game": "other", "name": "Eve", "rating": 1, "comment": "Meh"})

	added := 0
	modal := newReviewModal(t, pb, func(*models.Review) { added++ })
	require.NoError(t, modal.Open(context.Background(), "abc123"))
	require.Len(t, modal.Snapshot().Reviews, 1)

	review, err := modal.Submit(context.Background(), models.ReviewForm{Name: "Bob", Rating: 4, Comment: "Great game"})
	require.NoError(t, err)

	view := modal.Snapshot()
	require.Len(t, view.Reviews, 2)
	assert.Equal(t, review.ID, view.Reviews[0].ID)
	assert.Equal(t, "Bob", view.Reviews[0].Name)
	assert.Equal(t, 4, view.Reviews[0].Rating)
	assert.Equal(t, "Great game", view.Reviews[0].Comment)
	assert.Equal(t, "abc123", view.Reviews[0].GameID)
	assert.Equal(t, models.ReviewForm{}, view.Form)
	assert.Equal(t, 1, added)

	t.Run("rating zero never reaches the collaborator", func(t *testing.T) {
		posts := pb.CountRequests(http.MethodPost, "comments")

		_, err := modal.Submit(context.Background(), models.ReviewForm{Name: "Bob", Rating: 0, Comment: "Great game"})
		require.ErrorIs(t, err, services.ErrValidation)

		assert.Equal(t, "Rating is required", modal.Snapshot().Error)
		assert.Equal(t, posts, pb.CountRequests(http.MethodPost, "comments"))
	})
}

func TestReviewModal_SupersededFetch(t *testing.T) {
	pb := pbtest.New(t)
	pb.Seed("comments", map[string]any{"game": "gameA", "name": "From A", "rating": 2, "comment": "a"})
	pb.Seed("comments", map[string]any{"game": "gameB", "name": "From B", "rating": 4, "comment": "b"})

	release := pb.Hold(`"gameA"`)
	defer release()

	modal := newReviewModal(t, pb, nil)

	done := make(chan error)
	go func() { done <- modal.Open(context.Background(), "gameA") }()

	require.Eventually(t, func() bool {
		return pb.CountRequests(http.MethodGet, "comments") == 1
	}, 2*time.Second, 5*time.Millisecond)

	// same request key: this fetch supersedes the one still held for A
	require.NoError(t, modal.Open(context.Background(), "gameB"))
	require.NoError(t, <-done)

	view := modal.Snapshot()
	assert.Empty(t, view.Error)
	require.Len(t, view.Reviews, 1)
	assert.Equal(t, "From B", view.Reviews[0].Name)
}
