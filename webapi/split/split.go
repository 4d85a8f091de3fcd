// Package split serves split previews: the shares a payment would get
// without writing anything.
package split

import (
	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/money"
	splitcalc "github.com/amirasaad/splitsync/pkg/split"
	"github.com/amirasaad/splitsync/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the split endpoints.
func Routes(app *fiber.App, calc *splitcalc.Calculator) {
	app.Post("/api/splits/preview", Preview(calc))
}

// Preview computes a split set.
// @Summary Preview a split
// @Tags splits
// @Accept json
// @Produce json
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 422 {object} common.ProblemDetails
// @Router /api/splits/preview [post]
func Preview(calc *splitcalc.Calculator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[PreviewRequest](c)
		if input == nil {
			return err // error response already written
		}
		currency, err := money.ParseCurrency(input.Currency)
		if err != nil {
			return common.ProblemDetailsJSON(c, "Invalid currency", err)
		}
		splits, err := calc.Calculate(splitcalc.Input{
			Mode:     domain.SplitMode(input.Mode),
			Target:   input.Total,
			Currency: currency,
			Splits:   input.toSplits(),
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Split rejected", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Split computed", toResponse(input.Mode, currency, splits))
	}
}
