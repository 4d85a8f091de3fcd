package activity_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/amirasaad/splitsync/infra/eventbus"
	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/amirasaad/splitsync/pkg/handler/activity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ actors []string }

func (r *recorder) RecordActivity(_ context.Context, consumer string) error {
	r.actors = append(r.actors, consumer)
	return nil
}

func TestRegister_RecordsConvertingActorOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewWithMemory(logger)
	rec := &recorder{}
	activity.Register(bus, rec, logger)

	e := events.PaymentCurrencyConverted{EventID: "e-1", PaymentID: "p-1", Actor: "alice"}
	require.NoError(t, bus.Emit(context.Background(), e))
	require.NoError(t, bus.Emit(context.Background(), e))
	require.NoError(t, bus.Emit(context.Background(), events.PaymentCurrencyConverted{EventID: "e-2"}))

	assert.Equal(t, []string{"alice"}, rec.actors)
}

func TestHandlePaymentCurrencyConverted_RejectsOtherEvents(t *testing.T) {
	h := activity.HandlePaymentCurrencyConverted(&recorder{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, h(context.Background(), events.SyncPassCompleted{}))
}
