// Package conversion serves payment currency conversions.
package conversion

import (
	conversionsvc "github.com/amirasaad/splitsync/pkg/service/conversion"
	"github.com/amirasaad/splitsync/webapi/common"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ConvertRequest is the body of POST /api/payments/:id/convert. Amount is
// the payment total the client saw, in major units of From.
type ConvertRequest struct {
	From   string          `json:"from" validate:"required,len=3,uppercase"`
	To     string          `json:"to" validate:"required,len=3,uppercase,nefield=From"`
	Amount decimal.Decimal `json:"amount"`
	Rate   decimal.Decimal `json:"rate"`
	Actor  string          `json:"actor" validate:"required"`
	Source string          `json:"source"`
}

// Routes registers the conversion endpoint.
func Routes(app *fiber.App, svc *conversionsvc.Service) {
	app.Post("/api/payments/:id/convert", Convert(svc))
}

// Convert converts a payment and its splits into another currency.
// @Summary Convert a payment
// @Tags payments
// @Accept json
// @Produce json
// @Param id path string true "Payment local id"
// @Success 200 {object} common.Response
// @Failure 400 {object} common.ProblemDetails
// @Failure 404 {object} common.ProblemDetails
// @Failure 422 {object} common.ProblemDetails
// @Router /api/payments/{id}/convert [post]
func Convert(svc *conversionsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := common.BindAndValidate[ConvertRequest](c)
		if input == nil {
			return err // error response already written
		}
		if !input.Rate.IsPositive() {
			return common.ProblemDetailsJSON(c, "Invalid rate", nil, fiber.StatusBadRequest)
		}
		record, err := svc.PerformConversion(c.UserContext(), conversionsvc.Request{
			PaymentID: c.Params("id"),
			From:      input.From,
			To:        input.To,
			Amount:    input.Amount,
			Rate:      input.Rate,
			Actor:     input.Actor,
			Source:    input.Source,
		})
		if err != nil {
			return common.ProblemDetailsJSON(c, "Conversion failed", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Payment converted", fiber.Map{
			"conversion_id":     record.ID,
			"payment_id":        record.PaymentID,
			"original_currency": record.OriginalCurrency,
			"original_amount":   record.OriginalAmount,
			"final_currency":    record.FinalCurrency,
			"final_amount":      record.FinalAmount,
			"exchange_rate":     record.ExchangeRate.String(),
			"converted_at":      record.ConvertedAt,
		})
	}
}
