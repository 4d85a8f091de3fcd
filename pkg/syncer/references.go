package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/repository"
)

// ToServerRefs rewrites item's references from local to server ids and
// returns a func that puts the local ids back. Rows that do not hold
// references, or a nil ids, are left alone.
//
// A reference to a local row that has no server id yet fails with
// domain.ErrUnresolvedReference; the row is pushed again once its parent
// has synced.
func ToServerRefs(ctx context.Context, ids repository.IdentityMap, item any) (restore func(), err error) {
	refs := references(ids, item)
	saved := make([]string, len(refs))
	restore = func() {
		for i, ref := range refs {
			*ref.Field = saved[i]
		}
	}
	for i, ref := range refs {
		saved[i] = *ref.Field
	}
	for _, ref := range refs {
		localID := *ref.Field
		if localID == "" {
			continue
		}
		serverID, err := ids.ServerID(ctx, ref.Entity, localID)
		switch {
		case errors.Is(err, domain.ErrNotFound) && !ref.Required:
			continue
		case errors.Is(err, domain.ErrNotFound):
			restore()
			return nil, fmt.Errorf("%w: %s %s does not exist", domain.ErrUnresolvedReference, ref.Entity, localID)
		case err != nil:
			restore()
			return nil, err
		case serverID == "":
			restore()
			return nil, fmt.Errorf("%w: %s %s is not on the server yet", domain.ErrUnresolvedReference, ref.Entity, localID)
		}
		*ref.Field = serverID
	}
	return restore, nil
}

// ToLocalRefs rewrites a server copy's references from server to local
// ids. An unknown required reference fails with
// domain.ErrUnresolvedReference so the change is pulled again later.
func ToLocalRefs(ctx context.Context, ids repository.IdentityMap, item any) error {
	for _, ref := range references(ids, item) {
		serverID := *ref.Field
		if serverID == "" {
			continue
		}
		localID, err := ids.LocalID(ctx, ref.Entity, serverID)
		switch {
		case errors.Is(err, domain.ErrNotFound) && !ref.Required:
			continue
		case errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("%w: %s %s is not in the local store", domain.ErrUnresolvedReference, ref.Entity, serverID)
		case err != nil:
			return err
		}
		*ref.Field = localID
	}
	return nil
}

func references(ids repository.IdentityMap, item any) []domain.Reference {
	if ids == nil {
		return nil
	}
	r, ok := item.(domain.Referencer)
	if !ok {
		return nil
	}
	return r.References()
}
