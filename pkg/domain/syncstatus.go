package domain

// SyncStatus is the replication state attached to every syncable row and to
// each entity type's SyncMetadata.
type SyncStatus string

const (
	// StatusPendingSync marks a row changed locally and not yet acknowledged remotely.
	StatusPendingSync SyncStatus = "PENDING_SYNC"
	// StatusSynced marks a row identical to the last acknowledged remote copy.
	StatusSynced SyncStatus = "SYNCED"
	// StatusSyncFailed marks a row whose last push or pull failed.
	StatusSyncFailed SyncStatus = "SYNC_FAILED"
	// StatusLocalOnly marks a row that never leaves the device.
	StatusLocalOnly SyncStatus = "LOCAL_ONLY"
	// StatusLocallyDeleted is a tombstone kept until the remote delete is acknowledged.
	StatusLocallyDeleted SyncStatus = "LOCALLY_DELETED"
)

// IsValid reports whether s is one of the known statuses.
func (s SyncStatus) IsValid() bool {
	switch s {
	case StatusPendingSync, StatusSynced, StatusSyncFailed, StatusLocalOnly, StatusLocallyDeleted:
		return true
	}
	return false
}

// NeedsPush reports whether a row in this status is a push candidate.
func (s SyncStatus) NeedsPush() bool {
	return s == StatusPendingSync || s == StatusSyncFailed || s == StatusLocallyDeleted
}

// String implements fmt.Stringer.
func (s SyncStatus) String() string { return string(s) }

// UnsyncedStatuses lists the statuses selected for a push, failed rows first.
var UnsyncedStatuses = []SyncStatus{StatusSyncFailed, StatusPendingSync, StatusLocallyDeleted}
