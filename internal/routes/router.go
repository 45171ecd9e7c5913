package routes

import (
	"log/slog"
	"net/http"

	"games_portal/internal/clients/pocketbase"
	"games_portal/internal/config"
	"games_portal/internal/controllers"
	portalmw "games_portal/internal/middleware"
	"games_portal/internal/services"
	"games_portal/internal/views"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRouter(log *slog.Logger, cfg *config.Config, pb *pocketbase.Client, renderer *views.Renderer) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(portalmw.NewLogger(log))
	r.Use(middleware.Recoverer)

	factory := NewWorkflowFactory(log, cfg, pb)
	site := views.Site{
		Title:       cfg.Portal.Title,
		Credit:      cfg.Portal.Credit,
		EmailDomain: cfg.Portal.EmailDomain,
		RepoPrefix:  cfg.Portal.RepoPrefix,
	}

	gameController := controllers.NewGameController(factory, renderer, site, cfg.Portal.MaxUploadSize, log)
	reviewController := controllers.NewReviewController(factory, renderer, site, log)
	healthController := controllers.NewHealthController(pb, log)

	r.Get("/", gameController.Index)
	r.Post("/games", gameController.Create)
	r.Route("/games/{id}/reviews", func(r chi.Router) {
		r.Get("/", reviewController.Show)
		r.Post("/", reviewController.Create)
	})
	r.Get("/healthz", healthController.Check)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Cors,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))

		r.Route("/games", func(r chi.Router) {
			r.Get("/", gameController.List)
			r.Post("/", gameController.CreateAPI)
			r.Get("/{id}/reviews", reviewController.ListAPI)
			r.Post("/{id}/reviews", reviewController.CreateAPI)
		})
	})

	return r
}

// NewWorkflowFactory gives every request its own collaborator session.
func NewWorkflowFactory(log *slog.Logger, cfg *config.Config, pb *pocketbase.Client) controllers.WorkflowFactory {
	games := services.GameConfig{
		Collection:     cfg.Collaborator.GamesCollection,
		MaxSubmissions: cfg.Portal.MaxSubmissions,
		MaxUploadSize:  cfg.Portal.MaxUploadSize,
		Rules: services.Rules{
			EmailDomain: cfg.Portal.EmailDomain,
			RepoPrefix:  cfg.Portal.RepoPrefix,
		},
	}
	reviews := services.ReviewConfig{
		Collection: cfg.Collaborator.CommentsCollection,
		GameField:  cfg.Collaborator.CommentGameField,
		MaxReviews: cfg.Portal.MaxReviews,
	}

	return func() controllers.Workflow {
		session := pb.NewSession()
		return controllers.Workflow{
			Games:   services.NewGameService(session, games, log),
			Reviews: services.NewReviewService(session, reviews, log),
			Session: session,
		}
	}
}
