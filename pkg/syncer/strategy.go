package syncer

import (
	"github.com/amirasaad/splitsync/pkg/domain"
)

// Strategy selects how server changes are fetched: exactly one of
// FullSync, IncrementalSync or EtagSync.
type Strategy interface {
	isStrategy()
}

// FullSync fetches everything.
type FullSync struct{}

// IncrementalSync fetches changes after Since (unix ms).
type IncrementalSync struct {
	Since int64
}

// EtagSync fetches changes unless the server still matches Etag.
type EtagSync struct {
	Etag string
}

func (FullSync) isStrategy()        {}
func (IncrementalSync) isStrategy() {}
func (EtagSync) isStrategy()        {}

// DetermineStrategy picks the fetch strategy from stored metadata.
func DetermineStrategy(meta *domain.SyncMetadata) Strategy {
	if meta == nil {
		return FullSync{}
	}
	if etag, ok := meta.Etag(); ok {
		return EtagSync{Etag: etag}
	}
	return IncrementalSync{Since: meta.LastSyncTimestamp}
}
