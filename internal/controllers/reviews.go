package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/models"
	"games_portal/internal/views"

	"github.com/go-chi/chi/v5"
)

type ReviewRequest struct {
	Name    string `json:"name"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type ReviewController struct {
	newWorkflow WorkflowFactory
	renderer    *views.Renderer
	site        views.Site
	log         *slog.Logger
}

func NewReviewController(f WorkflowFactory, renderer *views.Renderer, site views.Site, log *slog.Logger) *ReviewController {
	return &ReviewController{
		newWorkflow: f,
		renderer:    renderer,
		site:        site,
		log:         log,
	}
}

// Show renders the review panel of one game.
func (c *ReviewController) Show(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.reviews.Show"

	gameID := chi.URLParam(r, "id")
	wf := c.newWorkflow()

	game, ok := c.lookup(w, r, wf, gameID)
	if !ok {
		return
	}

	modal := views.NewReviewModal(wf.Reviews, wf.Session, nil, c.log)
	defer modal.Close()
	_ = modal.Open(r.Context(), gameID)

	render(w, c.log, c.renderer, op, http.StatusOK, views.PageReviews, views.ReviewsPage{
		Site:   c.site,
		Game:   game,
		Modal:  modal.Snapshot(),
		Action: r.URL.Path,
	})
}

// Create handles the review form post.
func (c *ReviewController) Create(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.reviews.Create"

	if err := r.ParseForm(); err != nil {
		c.log.Error(ErrInvalidForm.Error(), slog.String("operation", op), slog.String("error", err.Error()))
		http.Error(w, ErrInvalidForm.Error(), http.StatusBadRequest)
		return
	}

	gameID := chi.URLParam(r, "id")
	wf := c.newWorkflow()

	game, ok := c.lookup(w, r, wf, gameID)
	if !ok {
		return
	}

	// an unparsable rating counts as no rating at all
	rating, _ := strconv.Atoi(r.PostFormValue("rating"))
	form := models.ReviewForm{
		Name:    r.PostFormValue("name"),
		Rating:  rating,
		Comment: r.PostFormValue("comment"),
	}

	added := false
	modal := views.NewReviewModal(wf.Reviews, wf.Session, func(review *models.Review) {
		added = true
		c.log.Info("review added",
			slog.String("operation", op),
			slog.String("game_id", gameID),
			slog.String("review_id", review.ID))
	}, c.log)
	defer modal.Close()

	_ = modal.Open(r.Context(), gameID)
	_, err := modal.Submit(r.Context(), form)

	render(w, c.log, c.renderer, op, status(err), views.PageReviews, views.ReviewsPage{
		Site:   c.site,
		Game:   game,
		Modal:  modal.Snapshot(),
		Added:  added,
		Action: r.URL.Path,
	})
}

// ListAPI godoc
// @Summary      List reviews of a game
// @Tags         reviews
// @Produce      json
// @Param        id   path      string  true  "Game id"
// @Success      200  {array}   models.Review
// @Failure      502  {object}  controllers.ErrorResponse
// @Router       /games/{id}/reviews [get]
func (c *ReviewController) ListAPI(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.reviews.ListAPI"

	reviews, err := c.newWorkflow().Reviews.ListReviews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.log.Error("failed to list reviews", slog.String("operation", op), slog.String("error", err.Error()))
		writeAPIError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, op, http.StatusOK, reviews)
}

// CreateAPI godoc
// @Summary      Review a game
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Param        id      path      string                       true  "Game id"
// @Param        review  body      controllers.ReviewRequest    true  "Review"
// @Success      201     {object}  models.Review
// @Failure      400     {object}  controllers.ErrorResponse
// @Failure      502     {object}  controllers.ErrorResponse
// @Router       /games/{id}/reviews [post]
func (c *ReviewController) CreateAPI(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.reviews.CreateAPI"

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, c.log, op, http.StatusBadRequest, ErrorResponse{Error: ErrBadRequest.Error()})
		return
	}

	review, err := c.newWorkflow().Reviews.SubmitReview(r.Context(), chi.URLParam(r, "id"), models.ReviewForm{
		Name:    req.Name,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeAPIError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, op, http.StatusCreated, review)
}

// lookup fetches the game the panel is about. Unknown games answer 404, any
// other failure is logged and the panel is shown without a title.
func (c *ReviewController) lookup(w http.ResponseWriter, r *http.Request, wf Workflow, gameID string) (*models.Game, bool) {
	const op = "controllers.reviews.lookup"

	game, err := wf.Games.GetSubmission(r.Context(), gameID)
	switch {
	case err == nil:
		return game, true
	case pocketbase.IsNotFound(err):
		http.Error(w, ErrNotFound.Error(), http.StatusNotFound)
		return nil, false
	default:
		c.log.Warn("failed to load game",
			slog.String("operation", op),
			slog.String("game_id", gameID),
			slog.String("error", err.Error()))
		return nil, true
	}
}
