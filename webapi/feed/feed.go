// Package feed exposes the quota-limited transactions feed refresher.
package feed

import (
	"github.com/amirasaad/splitsync/pkg/refresh"
	"github.com/amirasaad/splitsync/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// RefreshRequest is the body of POST /api/feeds/transactions/refresh.
type RefreshRequest struct {
	Consumer string `json:"consumer" validate:"required,max=128"`
	Mode     string `json:"mode" validate:"omitempty,oneof=auto manual scoped"`
}

// StatusResponse describes a consumer's feed budget.
type StatusResponse struct {
	Consumer  string        `json:"consumer"`
	State     refresh.State `json:"state"`
	Allowed   bool          `json:"allowed"`
	Reason    string        `json:"reason"`
	Score     float64       `json:"score"`
	CanManual bool          `json:"can_manual"`
}

// Routes registers the feed endpoints.
func Routes(app *fiber.App, refresher *refresh.Refresher) {
	group := app.Group("/api/feeds/transactions")
	group.Get("/:consumer", Status(refresher.Engine()))
	group.Post("/refresh", Refresh(refresher))
}

// Status reports whether a background refresh would be admitted now.
// @Summary Feed refresh status
// @Tags feeds
// @Produce json
// @Param consumer path string true "Consumer id"
// @Success 200 {object} common.Response
// @Router /api/feeds/transactions/{consumer} [get]
func Status(engine *refresh.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		consumer := c.Params("consumer")
		ctx := c.UserContext()
		st, err := engine.State(ctx, consumer)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to load feed state", err)
		}
		d, err := engine.Evaluate(ctx, consumer)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to evaluate feed policy", err)
		}
		manual, err := engine.CanManualRefresh(ctx, consumer)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to evaluate feed policy", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Feed status fetched", StatusResponse{
			Consumer:  consumer,
			State:     st,
			Allowed:   d.Allowed,
			Reason:    d.Reason,
			Score:     d.Score,
			CanManual: manual,
		})
	}
}

// Refresh runs one admission-controlled refresh.
// @Summary Refresh the transactions feed
// @Tags feeds
// @Accept json
// @Produce json
// @Success 200 {object} common.Response
// @Failure 429 {object} common.ProblemDetails
// @Failure 503 {object} common.ProblemDetails
// @Router /api/feeds/transactions/refresh [post]
func Refresh(refresher *refresh.Refresher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[RefreshRequest](c)
		if input == nil {
			return err // error response already written
		}
		mode, err := refresh.ParseMode(input.Mode)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid mode", err, fiber.StatusBadRequest)
		}
		out, err := refresher.Refresh(c.UserContext(), input.Consumer, mode)
		if err != nil {
			status := common.ErrorToStatusCode(err)
			if status == fiber.StatusInternalServerError {
				status = fiber.StatusBadGateway
			}
			return common.ProblemDetailsJSON(c, "Feed refresh failed", err, status)
		}
		msg := "Feed refreshed"
		if !out.Refreshed {
			msg = "Feed refresh not admitted"
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, msg, out)
	}
}
