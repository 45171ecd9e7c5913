package models

// Game is a student submission stored in the games collection.
type Game struct {
	Record
	FullName   string `json:"full_name"`
	Email      string `json:"adypu_email"`
	Title      string `json:"game_title"`
	Screenshot string `json:"screenshot"`
	HostedLink string `json:"hosted_link"`
	GithubLink string `json:"github_link"`

	// Resolved from the collaborator file route, never sent back to it.
	ScreenshotURL string `json:"screenshot_url,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
}

// GameForm is what a visitor typed into the submission form.
type GameForm struct {
	FullName   string `form:"full_name" validate:"required"`
	Email      string `form:"adypu_email" validate:"required,email,org_email"`
	Title      string `form:"game_title" validate:"required"`
	HostedLink string `form:"hosted_link" validate:"required,http_url"`
	GithubLink string `form:"github_link" validate:"required,repo_url"`
}

func (f GameForm) Fields() map[string]string {
	return map[string]string{
		"full_name":   f.FullName,
		"adypu_email": f.Email,
		"game_title":  f.Title,
		"hosted_link": f.HostedLink,
		"github_link": f.GithubLink,
	}
}
