// Package split divides a payment total between participants so that the
// shares add up to the total exactly in minor currency units.
package split

import (
	"cmp"
	"fmt"
	"math/big"
	"slices"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/money"
	"github.com/shopspring/decimal"
)

// Input describes one split calculation. Splits carry the participants and
// their prior amounts (weights) or percentages.
type Input struct {
	Mode     domain.SplitMode
	Target   decimal.Decimal
	Currency money.Currency
	Splits   []*domain.Split
	Actor    string
	At       int64
}

// Calculator computes split sets. It is stateless and deterministic.
type Calculator struct{}

// New returns a Calculator.
func New() *Calculator {
	return &Calculator{}
}

// share is the working row of a calculation.
type share struct {
	idx   int
	split *domain.Split
	exact *big.Rat
	units int64
}

// Calculate returns new split rows for in.Target in in.Currency, in the
// same order as in.Splits. Inputs are not modified.
func (c *Calculator) Calculate(in Input) ([]*domain.Split, error) {
	if len(in.Splits) == 0 {
		return nil, fmt.Errorf("%w: no participants", domain.ErrValidation)
	}
	if !in.Currency.IsValid() {
		return nil, fmt.Errorf("%w: %v", money.ErrInvalidCurrency, in.Currency)
	}
	target, err := money.ToMinorUnits(in.Target, in.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: target %s: %v", domain.ErrValidation, in.Target, err)
	}

	shares := make([]*share, len(in.Splits))
	for i, s := range in.Splits {
		if s == nil {
			return nil, fmt.Errorf("%w: nil split at %d", domain.ErrValidation, i)
		}
		shares[i] = &share{idx: i, split: s}
	}
	// Stable participant order makes every tiebreak deterministic.
	slices.SortStableFunc(shares, func(a, b *share) int {
		if o := cmp.Compare(a.split.ParticipantID, b.split.ParticipantID); o != 0 {
			return o
		}
		return cmp.Compare(a.split.ID, b.split.ID)
	})

	magnitude := abs(target)
	switch in.Mode {
	case domain.SplitEqual:
		equal(shares, magnitude)
	case domain.SplitWeighted:
		weighted(shares, magnitude)
	case domain.SplitPercentage:
		if err := percentage(shares, magnitude); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown split mode %q", domain.ErrValidation, in.Mode)
	}

	sign := int64(1)
	if target < 0 {
		sign = -1
	}
	out := make([]*domain.Split, len(shares))
	for _, sh := range shares {
		s := *sh.split
		s.Amount = sign * sh.units
		s.Currency = in.Currency.Code.String()
		s.UpdatedBy = in.Actor
		status := domain.StatusPendingSync
		if s.SyncStatus == domain.StatusLocalOnly {
			status = domain.StatusLocalOnly
		}
		s.Touch(status, in.At)
		out[sh.idx] = &s
	}

	if err := verify(in.Mode, target, out); err != nil {
		return nil, err
	}
	return out, nil
}

// equal gives everyone floor(T/N) and one extra unit to the first T mod N
// participants.
func equal(shares []*share, magnitude int64) {
	n := int64(len(shares))
	per, leftover := magnitude/n, magnitude%n
	for i, sh := range shares {
		sh.units = per
		if int64(i) < leftover {
			sh.units++
		}
	}
}

// weighted splits proportionally to the absolute prior amounts. Leftover
// units go to the largest exact shares first. All-zero weights fall back
// to equal.
func weighted(shares []*share, magnitude int64) {
	total := new(big.Int)
	for _, sh := range shares {
		total.Add(total, big.NewInt(abs(sh.split.Amount)))
	}
	if total.Sign() == 0 {
		equal(shares, magnitude)
		return
	}

	mag := big.NewInt(magnitude)
	var allocated int64
	for _, sh := range shares {
		num := new(big.Int).Mul(big.NewInt(abs(sh.split.Amount)), mag)
		sh.exact = new(big.Rat).SetFrac(num, total)
		sh.units = new(big.Int).Quo(num, total).Int64()
		allocated += sh.units
	}

	order := slices.Clone(shares)
	slices.SortStableFunc(order, func(a, b *share) int {
		return b.exact.Cmp(a.exact)
	})
	distribute(order, magnitude-allocated)
}

// percentage rounds each exact share half up, then moves the remaining
// units to the shares with the largest relative rounding error.
func percentage(shares []*share, magnitude int64) error {
	total := new(big.Rat)
	pcts := make([]*big.Rat, len(shares))
	for i, sh := range shares {
		if !sh.split.Percentage.Valid {
			return fmt.Errorf("%w: participant %s has no percentage", domain.ErrValidation, sh.split.ParticipantID)
		}
		p := sh.split.Percentage.Decimal
		if p.IsNegative() {
			return fmt.Errorf("%w: negative percentage %s", domain.ErrValidation, p)
		}
		pcts[i] = p.Rat()
		total.Add(total, pcts[i])
	}
	if total.Sign() == 0 {
		return fmt.Errorf("%w: percentages sum to zero", domain.ErrValidation)
	}

	mag := new(big.Rat).SetInt64(magnitude)
	var allocated int64
	for i, sh := range shares {
		sh.exact = new(big.Rat).Mul(new(big.Rat).Quo(pcts[i], total), mag)
		sh.units = roundHalfUp(sh.exact)
		allocated += sh.units
	}

	leftover := magnitude - allocated
	if leftover == 0 {
		return nil
	}
	// Positive leftover favours the most under-allocated shares, negative
	// leftover takes back from the most over-allocated ones.
	errOf := func(sh *share) *big.Rat {
		if sh.exact.Sign() == 0 {
			return new(big.Rat)
		}
		diff := new(big.Rat).Sub(sh.exact, new(big.Rat).SetInt64(sh.units))
		if leftover < 0 {
			diff.Neg(diff)
		}
		return diff.Quo(diff, sh.exact)
	}
	keys := make(map[*share]*big.Rat, len(shares))
	for _, sh := range shares {
		keys[sh] = errOf(sh)
	}
	order := slices.Clone(shares)
	slices.SortStableFunc(order, func(a, b *share) int {
		return keys[b].Cmp(keys[a])
	})
	distribute(order, leftover)
	return nil
}

// distribute moves |leftover| units one at a time along order, cycling if
// needed. Shares never cross zero.
func distribute(order []*share, leftover int64) {
	step := int64(1)
	if leftover < 0 {
		step = -1
	}
	for i := 0; leftover != 0; i = (i + 1) % len(order) {
		sh := order[i]
		if step < 0 && sh.units == 0 {
			continue
		}
		sh.units += step
		leftover -= step
	}
}

func verify(mode domain.SplitMode, target int64, splits []*domain.Split) error {
	var sum int64
	lo, hi := splits[0].Amount, splits[0].Amount
	for _, s := range splits {
		sum += s.Amount
		lo, hi = min(lo, s.Amount), max(hi, s.Amount)
		if (target > 0 && s.Amount < 0) || (target < 0 && s.Amount > 0) {
			return fmt.Errorf("%w: split %d has the wrong sign for target %d", domain.ErrInvariantViolation, s.Amount, target)
		}
	}
	if sum != target {
		return fmt.Errorf("%w: splits sum to %d, want %d", domain.ErrInvariantViolation, sum, target)
	}
	if mode == domain.SplitEqual && hi-lo > 1 {
		return fmt.Errorf("%w: equal split spread %d exceeds one unit", domain.ErrInvariantViolation, hi-lo)
	}
	return nil
}

// roundHalfUp rounds a non-negative rational to the nearest integer, ties up.
func roundHalfUp(r *big.Rat) int64 {
	num := new(big.Int).Mul(r.Num(), big.NewInt(2))
	num.Add(num, r.Denom())
	den := new(big.Int).Mul(r.Denom(), big.NewInt(2))
	return num.Quo(num, den).Int64()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
