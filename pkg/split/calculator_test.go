package split_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/money"
	"github.com/amirasaad/splitsync/pkg/split"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func participants(amounts ...int64) []*domain.Split {
	out := make([]*domain.Split, len(amounts))
	for i, a := range amounts {
		out[i] = &domain.Split{
			SyncRecord:    domain.SyncRecord{ID: fmt.Sprintf("local-%d", i), SyncStatus: domain.StatusSynced},
			PaymentID:     "payment-1",
			ParticipantID: fmt.Sprintf("user-%02d", i),
			Amount:        a,
			Currency:      "EUR",
		}
	}
	return out
}

func withPercentages(pcts ...string) []*domain.Split {
	out := participants(make([]int64, len(pcts))...)
	for i, p := range pcts {
		out[i].Percentage = decimal.NewNullDecimal(decimal.RequireFromString(p))
	}
	return out
}

func sum(splits []*domain.Split) int64 {
	var total int64
	for _, s := range splits {
		total += s.Amount
	}
	return total
}

func spread(splits []*domain.Split) int64 {
	lo, hi := splits[0].Amount, splits[0].Amount
	for _, s := range splits {
		lo, hi = min(lo, s.Amount), max(hi, s.Amount)
	}
	return hi - lo
}

func calc(t *testing.T, mode domain.SplitMode, target string, ccy money.Code, splits []*domain.Split) []*domain.Split {
	t.Helper()
	out, err := split.New().Calculate(split.Input{
		Mode:     mode,
		Target:   decimal.RequireFromString(target),
		Currency: ccy.ToCurrency(),
		Splits:   splits,
		Actor:    "user-00",
		At:       1_700_000_000_000,
	})
	require.NoError(t, err)
	return out
}

func TestCalculate_Equal(t *testing.T) {
	tests := []struct {
		name   string
		target string
		n      int
		want   []int64
	}{
		{"even", "90.00", 3, []int64{3000, 3000, 3000}},
		{"leftover goes to lowest ids", "100.00", 3, []int64{3334, 3333, 3333}},
		{"two leftover units", "0.05", 3, []int64{2, 2, 1}},
		{"negative pushes away from zero", "-100.00", 3, []int64{-3334, -3333, -3333}},
		{"zero target", "0", 4, []int64{0, 0, 0, 0}},
		{"fewer units than participants", "0.02", 5, []int64{1, 1, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := calc(t, domain.SplitEqual, tt.target, money.USD, participants(make([]int64, tt.n)...))
			got := make([]int64, len(out))
			for i, s := range out {
				got[i] = s.Amount
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculate_EqualPropertySumAndSpread(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := rng.Intn(12) + 1
		units := rng.Int63n(2_000_000) - 1_000_000
		target := money.FromMinorUnits(units, money.USD.ToCurrency())

		out := calc(t, domain.SplitEqual, target.String(), money.USD, participants(make([]int64, n)...))
		require.Equal(t, units, sum(out), "target %s over %d", target, n)
		require.LessOrEqual(t, spread(out), int64(1))
	}
}

func TestCalculate_Weighted(t *testing.T) {
	out := calc(t, domain.SplitWeighted, "100.00", money.USD, participants(1000, 2000, 3000))
	// exact shares 1666.67, 3333.33, 5000 floor to 9999; the leftover unit
	// goes to the largest exact share.
	assert.Equal(t, []int64{1666, 3333, 5001}, []int64{out[0].Amount, out[1].Amount, out[2].Amount})

	t.Run("uses absolute priors and target sign", func(t *testing.T) {
		out := calc(t, domain.SplitWeighted, "-10.00", money.USD, participants(-100, -300))
		assert.Equal(t, []int64{-250, -750}, []int64{out[0].Amount, out[1].Amount})
	})

	t.Run("leftover goes to largest share", func(t *testing.T) {
		out := calc(t, domain.SplitWeighted, "0.10", money.USD, participants(1, 1, 2))
		// exact 2.5, 2.5, 5 -> floors 2, 2, 5, one unit left for the largest
		assert.Equal(t, int64(10), sum(out))
		assert.Equal(t, []int64{2, 2, 6}, []int64{out[0].Amount, out[1].Amount, out[2].Amount})
	})

	t.Run("zero weights fall back to equal", func(t *testing.T) {
		out := calc(t, domain.SplitWeighted, "1.00", money.USD, participants(0, 0, 0))
		assert.Equal(t, []int64{34, 33, 33}, []int64{out[0].Amount, out[1].Amount, out[2].Amount})
	})
}

func TestCalculate_WeightedPropertySum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		n := rng.Intn(8) + 1
		priors := make([]int64, n)
		for j := range priors {
			priors[j] = rng.Int63n(100_000)
		}
		units := rng.Int63n(10_000_000) - 5_000_000
		target := money.FromMinorUnits(units, money.EUR.ToCurrency())
		out := calc(t, domain.SplitWeighted, target.String(), money.EUR, participants(priors...))
		require.Equal(t, units, sum(out))
	}
}

func TestCalculate_Percentage(t *testing.T) {
	out := calc(t, domain.SplitPercentage, "99.99", money.USD, withPercentages("33.33", "33.33", "33.34"))
	assert.Equal(t, int64(9999), sum(out))
	for _, s := range out {
		assert.InDelta(t, 3333, s.Amount, 1, "split %s", s.ParticipantID)
		assert.True(t, s.Percentage.Valid)
	}

	t.Run("percentages are normalised", func(t *testing.T) {
		out := calc(t, domain.SplitPercentage, "10.00", money.USD, withPercentages("1", "1", "2"))
		assert.Equal(t, []int64{250, 250, 500}, []int64{out[0].Amount, out[1].Amount, out[2].Amount})
	})

	t.Run("negative target", func(t *testing.T) {
		out := calc(t, domain.SplitPercentage, "-0.01", money.USD, withPercentages("50", "50"))
		assert.Equal(t, int64(-1), sum(out))
		for _, s := range out {
			assert.LessOrEqual(t, s.Amount, int64(0))
		}
	})

	t.Run("missing percentage", func(t *testing.T) {
		splits := withPercentages("50", "50")
		splits[1].Percentage = decimal.NullDecimal{}
		_, err := split.New().Calculate(split.Input{
			Mode: domain.SplitPercentage, Target: decimal.RequireFromString("1"),
			Currency: money.USD.ToCurrency(), Splits: splits,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("zero sum", func(t *testing.T) {
		_, err := split.New().Calculate(split.Input{
			Mode: domain.SplitPercentage, Target: decimal.RequireFromString("1"),
			Currency: money.USD.ToCurrency(), Splits: withPercentages("0", "0"),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestCalculate_PercentagePropertySum(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 300; i++ {
		n := rng.Intn(6) + 1
		pcts := make([]string, n)
		for j := range pcts {
			pcts[j] = decimal.New(rng.Int63n(10_000)+1, -2).String()
		}
		units := rng.Int63n(2_000_000) - 1_000_000
		target := money.FromMinorUnits(units, money.USD.ToCurrency())
		out := calc(t, domain.SplitPercentage, target.String(), money.USD, withPercentages(pcts...))
		require.Equal(t, units, sum(out))
	}
}

func TestCalculate_DirtiesAndStampsSplits(t *testing.T) {
	in := participants(10, 20)
	out := calc(t, domain.SplitEqual, "1000", money.JPY, in)

	for i, s := range out {
		assert.Equal(t, domain.StatusPendingSync, s.SyncStatus)
		assert.Equal(t, int64(1_700_000_000_000), s.UpdatedAt)
		assert.Equal(t, "JPY", s.Currency)
		assert.Equal(t, "user-00", s.UpdatedBy)
		assert.Equal(t, in[i].ID, s.ID)
	}
	// inputs are untouched
	assert.Equal(t, domain.StatusSynced, in[0].SyncStatus)
	assert.Equal(t, int64(10), in[0].Amount)
}

func TestCalculate_Idempotent(t *testing.T) {
	for _, mode := range []domain.SplitMode{domain.SplitEqual, domain.SplitWeighted, domain.SplitPercentage} {
		t.Run(string(mode), func(t *testing.T) {
			in := withPercentages("20", "30", "50")
			for i, s := range in {
				s.Amount = int64(100 * (i + 1))
			}
			first := calc(t, mode, "77.77", money.USD, in)
			second := calc(t, mode, "77.77", money.USD, in)
			assert.Equal(t, first, second)
		})
	}
}

func TestCalculate_Rejects(t *testing.T) {
	c := split.New()
	_, err := c.Calculate(split.Input{Mode: domain.SplitEqual, Target: decimal.NewFromInt(1), Currency: money.USD.ToCurrency()})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = c.Calculate(split.Input{
		Mode: domain.SplitEqual, Target: decimal.RequireFromString("1.005"),
		Currency: money.USD.ToCurrency(), Splits: participants(1),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = c.Calculate(split.Input{
		Mode: domain.SplitMode("RANDOM"), Target: decimal.NewFromInt(1),
		Currency: money.USD.ToCurrency(), Splits: participants(1),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
