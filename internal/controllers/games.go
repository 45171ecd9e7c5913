package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"games_portal/internal/models"
	"games_portal/internal/uploads"
	"games_portal/internal/views"
)

// formOverhead is the room left for the text fields of a multipart form on
// top of the screenshot itself.
const formOverhead = 1 << 20

type GameController struct {
	newWorkflow   WorkflowFactory
	renderer      *views.Renderer
	site          views.Site
	maxUploadSize int64
	log           *slog.Logger
}

func NewGameController(f WorkflowFactory, renderer *views.Renderer, site views.Site, maxUploadSize int64, log *slog.Logger) *GameController {
	return &GameController{
		newWorkflow:   f,
		renderer:      renderer,
		site:          site,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// Index renders the submission form and every submission, newest first.
func (c *GameController) Index(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Index"

	board := views.NewSubmissionBoard(c.newWorkflow().Games, c.log)
	board.Mount(r.Context())

	render(w, c.log, c.renderer, op, http.StatusOK, views.PageIndex, views.IndexPage{
		Site:  c.site,
		Board: board.Snapshot(),
	})
}

// Create handles the submission form post and renders the board with the outcome.
func (c *GameController) Create(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Create"

	form, shot, err := c.parseSubmission(w, r)
	if err != nil {
		c.log.Error(ErrInvalidForm.Error(), slog.String("operation", op), slog.String("error", err.Error()))
		http.Error(w, ErrInvalidForm.Error(), http.StatusBadRequest)
		return
	}

	board := views.NewSubmissionBoard(c.newWorkflow().Games, c.log)
	_, err = board.Submit(r.Context(), form, shot)
	board.Mount(r.Context())

	render(w, c.log, c.renderer, op, status(err), views.PageIndex, views.IndexPage{
		Site:  c.site,
		Board: board.Snapshot(),
	})
}

// List godoc
// @Summary      List submissions
// @Description  Returns up to the configured maximum of submissions, newest first
// @Tags         games
// @Produce      json
// @Success      200  {array}   models.Game
// @Failure      502  {object}  controllers.ErrorResponse
// @Failure      503  {object}  controllers.ErrorResponse
// @Router       /games [get]
func (c *GameController) List(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.List"

	games, err := c.newWorkflow().Games.ListSubmissions(r.Context())
	if err != nil {
		c.log.Error("failed to list games", slog.String("operation", op), slog.String("error", err.Error()))
		writeAPIError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, op, http.StatusOK, games)
}

// CreateAPI godoc
// @Summary      Submit a game
// @Tags         games
// @Accept       multipart/form-data
// @Produce      json
// @Param        full_name    formData  string  true  "Full name"
// @Param        adypu_email  formData  string  true  "Organisation email"
// @Param        game_title   formData  string  true  "Game title"
// @Param        hosted_link  formData  string  true  "Where the game is playable"
// @Param        github_link  formData  string  true  "Source repository"
// @Param        screenshot   formData  file    true  "Screenshot image"
// @Success      201  {object}  models.Game
// @Failure      400  {object}  controllers.ErrorResponse
// @Failure      502  {object}  controllers.ErrorResponse
// @Router       /games [post]
func (c *GameController) CreateAPI(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.CreateAPI"

	form, shot, err := c.parseSubmission(w, r)
	if err != nil {
		writeJSON(w, c.log, op, http.StatusBadRequest, ErrorResponse{Error: ErrInvalidForm.Error()})
		return
	}

	game, err := c.newWorkflow().Games.SubmitGame(r.Context(), form, shot)
	if err != nil {
		writeAPIError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, op, http.StatusCreated, game)
}

// parseSubmission reads the multipart form. A missing screenshot is not an
// error here, it is reported by validation with the other fields.
func (c *GameController) parseSubmission(w http.ResponseWriter, r *http.Request) (models.GameForm, *uploads.Screenshot, error) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadSize+formOverhead)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		return models.GameForm{}, nil, err
	}

	form := models.GameForm{
		FullName:   r.FormValue("full_name"),
		Email:      r.FormValue("adypu_email"),
		Title:      r.FormValue("game_title"),
		HostedLink: r.FormValue("hosted_link"),
		GithubLink: r.FormValue("github_link"),
	}

	file, header, err := r.FormFile("screenshot")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, nil
	}
	if err != nil {
		return form, nil, err
	}
	defer file.Close()

	shot, err := uploads.Read(file, header.Filename, c.maxUploadSize)
	if err != nil {
		return form, nil, err
	}

	return form, shot, nil
}
