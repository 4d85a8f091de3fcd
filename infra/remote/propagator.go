package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
	"github.com/amirasaad/splitsync/pkg/service/conversion"
	"github.com/amirasaad/splitsync/pkg/syncer"
)

// ErrNotOnServer is returned when a converted payment has never been synced,
// so there is nothing remote to update yet.
var ErrNotOnServer = errors.New("payment not yet on server")

// Propagator sends a committed conversion to the server: the audit row,
// then the payment, then every split. It stops at the first failure and
// leaves reconciliation to the sync managers.
type Propagator struct {
	endpoints *Endpoints
	ids       repository.IdentityMap
}

// NewPropagator returns a conversion.Propagator over endpoints. ids maps
// the references of the sent rows to server ids.
func NewPropagator(endpoints *Endpoints, ids repository.IdentityMap) *Propagator {
	return &Propagator{endpoints: endpoints, ids: ids}
}

func (p *Propagator) Propagate(ctx context.Context, u conversion.Update) error {
	serverID, ok := u.Payment.RemoteID()
	if !ok {
		return ErrNotOnServer
	}
	ids := paymentIdentity{base: p.ids, localID: u.Payment.ID, serverID: serverID}

	if err := send(ctx, ids, u.Conversion, func() error {
		_, err := p.endpoints.Conversions.Create(ctx, u.Conversion)
		return err
	}); err != nil {
		return fmt.Errorf("conversion %s: %w", u.Conversion.ID, err)
	}
	if err := send(ctx, ids, u.Payment, func() error {
		_, err := p.endpoints.Payments.Update(ctx, u.Payment)
		return err
	}); err != nil {
		return fmt.Errorf("payment %s: %w", u.Payment.ID, err)
	}
	for _, s := range u.Splits {
		if err := send(ctx, ids, s, func() error {
			_, err := p.endpoints.Splits.Update(ctx, s)
			return err
		}); err != nil {
			return fmt.Errorf("split %s: %w", s.ID, err)
		}
	}
	return nil
}

// send runs call with item's references rewritten to server ids.
func send(ctx context.Context, ids repository.IdentityMap, item any, call func() error) error {
	restore, err := syncer.ToServerRefs(ctx, ids, item)
	if err != nil {
		return err
	}
	defer restore()
	return call()
}

// paymentIdentity answers for the converted payment itself and defers
// every other lookup to base.
type paymentIdentity struct {
	base              repository.IdentityMap
	localID, serverID string
}

func (m paymentIdentity) ServerID(ctx context.Context, entityType, localID string) (string, error) {
	if entityType == domain.EntityPayments && localID == m.localID {
		return m.serverID, nil
	}
	if m.base == nil {
		return "", domain.ErrNotFound
	}
	return m.base.ServerID(ctx, entityType, localID)
}

func (m paymentIdentity) LocalID(ctx context.Context, entityType, serverID string) (string, error) {
	if entityType == domain.EntityPayments && serverID == m.serverID {
		return m.localID, nil
	}
	if m.base == nil {
		return "", domain.ErrNotFound
	}
	return m.base.LocalID(ctx, entityType, serverID)
}

var _ conversion.Propagator = (*Propagator)(nil)
