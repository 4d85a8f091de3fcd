package split

import (
	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/money"
	"github.com/shopspring/decimal"
)

// Participant is one share of a preview request. Weight is used in
// WEIGHTED mode and Percentage in PERCENTAGE mode.
type Participant struct {
	ParticipantID string               `json:"participant_id" validate:"required"`
	Weight        int64                `json:"weight" validate:"gte=0"`
	Percentage    *decimal.NullDecimal `json:"percentage,omitempty"`
}

// PreviewRequest is the body of POST /api/splits/preview.
type PreviewRequest struct {
	Mode         string          `json:"mode" validate:"required,oneof=EQUAL WEIGHTED PERCENTAGE"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency" validate:"required,len=3,uppercase"`
	Participants []Participant   `json:"participants" validate:"required,min=1,dive"`
}

// ShareResponse is one computed share.
type ShareResponse struct {
	ParticipantID string `json:"participant_id"`
	Amount        int64  `json:"amount"`
	Display       string `json:"display"`
}

// PreviewResponse is the computed split set.
type PreviewResponse struct {
	Mode     string          `json:"mode"`
	Currency string          `json:"currency"`
	Total    int64           `json:"total"`
	Shares   []ShareResponse `json:"shares"`
}

func (r *PreviewRequest) toSplits() []*domain.Split {
	out := make([]*domain.Split, len(r.Participants))
	for i, p := range r.Participants {
		s := &domain.Split{ParticipantID: p.ParticipantID, Amount: p.Weight}
		if p.Percentage != nil {
			s.Percentage = *p.Percentage
		}
		out[i] = s
	}
	return out
}

func toResponse(mode string, currency money.Currency, splits []*domain.Split) PreviewResponse {
	resp := PreviewResponse{Mode: mode, Currency: currency.Code.String(), Shares: make([]ShareResponse, len(splits))}
	for i, s := range splits {
		resp.Total += s.Amount
		resp.Shares[i] = ShareResponse{
			ParticipantID: s.ParticipantID,
			Amount:        s.Amount,
			Display:       money.FromMinorUnits(s.Amount, currency).StringFixed(int32(currency.Decimals)),
		}
	}
	return resp
}
