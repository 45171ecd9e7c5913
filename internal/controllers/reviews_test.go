package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"games_portal/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postReview(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestReviewController_Show(t *testing.T) {
	t.Run("reviews of one game, newest first", func(t *testing.T) {
		env := setupControllers(t)
		id := env.pb.Seed("games", map[string]any{"game_title": "Pong"})
		env.pb.Seed("comments", map[string]any{"game": id, "name": "Ada", "rating": 5, "comment": "Lovely"})
		env.pb.Seed("comments", map[string]any{"game": "someone-else", "name": "Eve", "rating": 1, "comment": "Meh"})
		env.pb.Seed("comments", map[string]any{"game": id, "name": "Bob", "rating": 3, "comment": "Fine"})

		w, doc := env.do(httptest.NewRequest(http.MethodGet, "/games/"+id+"/reviews", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, doc.Find("h3").Text(), "Pong")

		names := doc.Find(".review-name").Map(func(_ int, s *goquery.Selection) string { return s.Text() })
		assert.Equal(t, []string{"Bob", "Ada"}, names)

		action, _ := doc.Find("#review-form").Attr("action")
		assert.Equal(t, "/games/"+id+"/reviews", action)
	})

	t.Run("no reviews yet", func(t *testing.T) {
		env := setupControllers(t)
		id := env.pb.Seed("games", map[string]any{"game_title": "Pong"})

		w, doc := env.do(httptest.NewRequest(http.MethodGet, "/games/"+id+"/reviews", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "No reviews yet. Be the first to review!", doc.Find(".no-reviews").Text())
	})

	t.Run("unknown game", func(t *testing.T) {
		env := setupControllers(t)

		w, _ := env.do(httptest.NewRequest(http.MethodGet, "/games/nope/reviews", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 0, env.pb.CountRequests(http.MethodGet, "comments"))
	})

	t.Run("load failure", func(t *testing.T) {
		env := setupControllers(t)
		id := env.pb.Seed("games", map[string]any{"game_title": "Pong"})
		env.pb.Fail(http.MethodGet, "comments", http.StatusInternalServerError, "Something went wrong")

		w, doc := env.do(httptest.NewRequest(http.MethodGet, "/games/"+id+"/reviews", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Failed to load reviews: Something went wrong", doc.Find(".alert-error span").Text())
		assert.Equal(t, 0, doc.Find(".review").Length())
	})
}

func TestReviewController_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := setupControllers(t)
		id := env.pb.Seed("games", map[string]any{"game_title": "Pong"})
		env.pb.Seed("comments", map[string]any{"game": id, "name": "Ada", "rating": 5, "comment": "Lovely"})

		w, doc := env.do(postReview("/games/"+id+"/reviews", url.Values{
			"name":    {"Bob"},
			"rating":  {"4"},
			"comment": {"Great game"},
		}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, doc.Find(".alert-success").Length())

		first := doc.Find(".review").First()
		assert.Equal(t, "Bob", first.Find(".review-name").Text())
		assert.Equal(t, "Great game", first.Find(".review-comment").Text())
		rating, _ := first.Find("[data-rating]").Attr("data-rating")
		assert.Equal(t, "4", rating)

		name, _ := doc.Find("#name").Attr("value")
		assert.Empty(t, name)
		assert.Empty(t, doc.Find("#comment").Text())

		records := env.pb.Records("comments")
		require.Len(t, records, 2)
		assert.Equal(t, id, records[1]["game"])
	})

	t.Run("markup-like text is kept and escaped", func(t *testing.T) {
		env := setupControllers(t)
		id := env.pb.Seed("games", map[string]any{"game_title": "Pong"})

		w, doc := env.do(postReview("/games/"+id+"/reviews", url.Values{
			"name":    {"<Bob>"},
			"rating":  {"4"},
			"comment": {"x<y and y>z"},
		}))

		assert.Equal(t, http.StatusOK, w.Code)
		first := doc.Find(".review").First()
		assert.Equal(t, "<Bob>", first.Find(".review-name").Text())
		assert.Equal(t, "x<y and y>z", first.Find(".review-comment").Text())
		assert.Equal(t, "x<y and y>z", env.pb.Records("comments")[0]["comment"])
	})

	t.Run("rating zero is rejected locally", func(t *testing.T) {
		env := setupControllers(t)
		id := env.pb.Seed("games", map[string]any{"game_title": "Pong"})

		w, doc := env.do(postReview("/games/"+id+"/reviews", url.Values{
			"name":    {"Bob"},
			"rating":  {"0"},
			"comment": {"Great game"},
		}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "Rating is required", doc.Find(".alert-error span").Text())
		name, _ := doc.Find("#name").Attr("value")
		assert.Equal(t, "Bob", name)
		assert.Equal(t, 0, env.pb.CountRequests(http.MethodPost, "comments"))
	})

	t.Run("collaborator failure", func(t *testing.T) {
		env := setupControllers(t)
		id := env.pb.Seed("games", map[string]any{"game_title": "Pong"})
		env.pb.Fail(http.MethodPost, "comments", http.StatusInternalServerError, "Something went wrong")

		w, doc := env.do(postReview("/games/"+id+"/reviews", url.Values{
			"name":    {"Bob"},
			"rating":  {"4"},
			"comment": {"Great game"},
		}))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "Failed to submit review: Something went wrong", doc.Find(".alert-error span").Text())
		assert.Equal(t, "Great game", doc.Find("#comment").Text())
	})

	t.Run("unknown game", func(t *testing.T) {
		env := setupControllers(t)

		w, _ := env.do(postReview("/games/nope/reviews", url.Values{"name": {"Bob"}, "rating": {"4"}, "comment": {"x"}}))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, 0, env.pb.CountRequests(http.MethodPost, "comments"))
	})
}

func TestReviewController_API(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		env := setupControllers(t)
		env.pb.Seed("comments", map[string]any{"game": "abc123", "name": "Ada", "rating": 5, "comment": "Lovely"})

		w, _ := env.do(httptest.NewRequest(http.MethodGet, "/api/games/abc123/reviews", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var reviews []models.Review
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviews))
		require.Len(t, reviews, 1)
		assert.Equal(t, "abc123", reviews[0].GameID)
	})

	t.Run("create then list", func(t *testing.T) {
		env := setupControllers(t)

		req := httptest.NewRequest(http.MethodPost, "/api/games/abc123/reviews",
			strings.NewReader(`{"name":"Bob","rating":4,"comment":"Great game"}`))
		req.Header.Set("Content-Type", "application/json")
		w, _ := env.do(req)

		require.Equal(t, http.StatusCreated, w.Code)

		var review models.Review
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &review))
		assert.Equal(t, "Bob", review.Name)
		assert.Equal(t, 4, review.Rating)

		w, _ = env.do(httptest.NewRequest(http.MethodGet, "/api/games/abc123/reviews", nil))

		var reviews []models.Review
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviews))
		require.NotEmpty(t, reviews)
		assert.Equal(t, review.ID, reviews[0].ID)
	})

	t.Run("rating out of range", func(t *testing.T) {
		env := setupControllers(t)

		req := httptest.NewRequest(http.MethodPost, "/api/games/abc123/reviews",
			strings.NewReader(`{"name":"Bob","rating":9,"comment":"Great game"}`))
		w, _ := env.do(req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var res ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "Rating must be between 1 and 5", res.Error)
		assert.Equal(t, "Rating must be between 1 and 5", res.Fields["rating"])
		assert.Equal(t, 0, env.pb.CountRequests(http.MethodPost, "comments"))
	})

	t.Run("malformed body", func(t *testing.T) {
		env := setupControllers(t)

		w, _ := env.do(httptest.NewRequest(http.MethodPost, "/api/games/abc123/reviews", strings.NewReader("{")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
