package models

// Review is a star-rated comment left on a game.
// GameID is filled by the service because the reference field name is configurable.
type Review struct {
	Record
	GameID  string `json:"game_id"`
	Name    string `json:"name"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type ReviewForm struct {
	Name    string `form:"name" validate:"required"`
	Rating  int    `form:"rating" validate:"required,min=1,max=5"`
	Comment string `form:"comment" validate:"required"`
}
