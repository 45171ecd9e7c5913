package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"time"

	"games_portal/internal/models"
)

const (
	PageIndex   = "index"
	PageReviews = "reviews"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Site holds what every page shows regardless of state.
type Site struct {
	Title       string
	Credit      string
	EmailDomain string
	RepoPrefix  string
}

type IndexPage struct {
	Site  Site
	Board BoardView
}

type ReviewsPage struct {
	Site   Site
	Game   *models.Game
	Modal  ModalView
	Added  bool
	Action string
}

type Renderer struct {
	pages map[string]*template.Template
	now   func() time.Time
}

func NewRenderer() (*Renderer, error) {
	const op = "views.NewRenderer"

	r := &Renderer{
		pages: make(map[string]*template.Template),
		now:   time.Now,
	}

	funcs := template.FuncMap{
		"stars":     func() []int { return []int{1, 2, 3, 4, 5} },
		"date":      formatDate,
		"year":      func() int { return r.now().Year() },
		"quotemeta": regexp.QuoteMeta,
	}

	for _, page := range []string{PageIndex, PageReviews} {
		t, err := template.New(page).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.tmpl",
			"templates/"+page+".tmpl",
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.pages[page] = t
	}

	return r, nil
}

func (r *Renderer) Render(w io.Writer, page string, data any) error {
	const op = "views.Renderer.Render"

	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("%s: unknown page %q", op, page)
	}

	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func formatDate(d models.DateTime) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 2, 2006")
}
