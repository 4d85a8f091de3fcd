package syncer

import (
	"github.com/amirasaad/splitsync/pkg/domain"
)

// ConflictResolver decides between a local row and the server copy when
// both changed since the last sync. When pushBack is true the winner is
// kept locally and pushed on the next pass.
type ConflictResolver[T domain.Syncable] interface {
	Resolve(local, server T) (winner T, pushBack bool)
}

// ResolverFunc adapts a function to ConflictResolver.
type ResolverFunc[T domain.Syncable] func(local, server T) (T, bool)

func (f ResolverFunc[T]) Resolve(local, server T) (T, bool) {
	return f(local, server)
}

// ServerWins always takes the server copy.
type ServerWins[T domain.Syncable] struct{}

func (ServerWins[T]) Resolve(_, server T) (T, bool) {
	return server, false
}

// LastWriterWins keeps whichever side has the later UpdatedAt. Ties go to
// the server.
type LastWriterWins[T domain.Syncable] struct{}

func (LastWriterWins[T]) Resolve(local, server T) (T, bool) {
	if local.LastModified() > server.LastModified() {
		return local, true
	}
	return server, false
}
