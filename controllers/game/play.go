package game

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

type PlayRequest struct {
	GameType   string `json:"game_type" validate:"required"`
	AdWatched  bool   `json:"ad_watched"`
	WatchAgain bool   `json:"watch_again"`
}

// Play records one finished round. The country comes from the edge headers
// and falls back to the account's country.
func Play(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		var req PlayRequest
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		res, err := e.RecordGamePlay(c.UserContext(), user, services.PlayInput{
			GameType:   req.GameType,
			AdWatched:  req.AdWatched,
			WatchAgain: req.WatchAgain,
			Country:    helpers.RequestCountry(c),
		})
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, res)
	}
}

func History(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		sessions, err := e.GameHistory(c.UserContext(), user.ID, c.QueryInt("limit", 50))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"sessions": sessions})
	}
}
