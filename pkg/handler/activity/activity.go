// Package activity turns domain events into consumer activity for the
// feed refresh policy.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirasaad/splitsync/pkg/domain/events"
	"github.com/amirasaad/splitsync/pkg/eventbus"
	"github.com/amirasaad/splitsync/pkg/handler/common"
)

// Recorder is the part of refresh.Engine the handlers need.
type Recorder interface {
	RecordActivity(ctx context.Context, consumer string) error
}

// HandlePaymentCurrencyConverted marks the converting actor as active.
func HandlePaymentCurrencyConverted(rec Recorder, logger *slog.Logger) eventbus.HandlerFunc {
	return func(ctx context.Context, e events.Event) error {
		log := logger.With(
			"handler", "activity.HandlePaymentCurrencyConverted",
			"event_type", e.Type(),
		)

		var pc events.PaymentCurrencyConverted
		switch v := e.(type) {
		case events.PaymentCurrencyConverted:
			pc = v
		case *events.PaymentCurrencyConverted:
			pc = *v
		default:
			log.Error("❌ [ERROR] unexpected event", "event_type", fmt.Sprintf("%T", e))
			return errors.New("unexpected event type")
		}
		if pc.Actor == "" {
			log.Debug("conversion without actor, nothing to record", "payment_id", pc.PaymentID)
			return nil
		}
		if err := rec.RecordActivity(ctx, pc.Actor); err != nil {
			log.Error("❌ [ERROR] failed to record activity", "actor", pc.Actor, "error", err)
			return err
		}
		log.Debug("✅ [SUCCESS] activity recorded", "actor", pc.Actor, "payment_id", pc.PaymentID)
		return nil
	}
}

// Register subscribes the activity handlers on bus.
func Register(bus eventbus.Bus, rec Recorder, logger *slog.Logger) {
	dedup := common.NewDedup(common.DefaultDedupWindow)
	bus.Register(
		events.PaymentCurrencyConverted{}.Type(),
		dedup.Wrap(
			"activity.HandlePaymentCurrencyConverted",
			HandlePaymentCurrencyConverted(rec, logger),
			logger,
		),
	)
}
