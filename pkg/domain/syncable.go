package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Syncable is implemented by every row the sync engine replicates.
// Local identity is stable and private; the server id is assigned once.
type Syncable interface {
	LocalID() string
	SetLocalID(id string)
	RemoteID() (string, bool)
	AssignServerID(id string) error
	Status() SyncStatus
	LastModified() int64
	Touch(status SyncStatus, at int64)
}

// SyncRecord carries the identity and replication bookkeeping shared by all
// syncable rows. The wire form exposes only the server id and the timestamp.
type SyncRecord struct {
	ID         string     `gorm:"primaryKey;type:varchar(36)" json:"-"`
	ServerID   *string    `gorm:"type:varchar(64);uniqueIndex" json:"id,omitempty"`
	SyncStatus SyncStatus `gorm:"type:varchar(32);not null;default:'PENDING_SYNC';index" json:"-"`
	UpdatedAt  int64      `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

// NewSyncRecord returns a fresh record with a new local id, born PENDING_SYNC.
func NewSyncRecord(at time.Time) SyncRecord {
	return SyncRecord{
		ID:         uuid.NewString(),
		SyncStatus: StatusPendingSync,
		UpdatedAt:  at.UnixMilli(),
	}
}

// NewLocalOnlyRecord returns a record that is never pushed.
func NewLocalOnlyRecord(at time.Time) SyncRecord {
	r := NewSyncRecord(at)
	r.SyncStatus = StatusLocalOnly
	return r
}

func (r *SyncRecord) LocalID() string      { return r.ID }
func (r *SyncRecord) SetLocalID(id string) { r.ID = id }
func (r *SyncRecord) Status() SyncStatus   { return r.SyncStatus }
func (r *SyncRecord) LastModified() int64  { return r.UpdatedAt }

// RemoteID returns the server id if one was assigned.
func (r *SyncRecord) RemoteID() (string, bool) {
	if r.ServerID == nil || *r.ServerID == "" {
		return "", false
	}
	return *r.ServerID, true
}

// AssignServerID sets the server id. Re-assigning a different id is rejected.
func (r *SyncRecord) AssignServerID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty server id", ErrValidation)
	}
	if current, ok := r.RemoteID(); ok && current != id {
		return fmt.Errorf("%w: server id %s already assigned, got %s", ErrInvariantViolation, current, id)
	}
	r.ServerID = &id
	return nil
}

// Touch moves status and timestamp together. It is the only mutator for either.
func (r *SyncRecord) Touch(status SyncStatus, at int64) {
	r.SyncStatus = status
	r.UpdatedAt = at
}

// MarkDirty flags a local edit. LOCAL_ONLY rows stay local.
func (r *SyncRecord) MarkDirty(at time.Time) {
	status := StatusPendingSync
	if r.SyncStatus == StatusLocalOnly {
		status = StatusLocalOnly
	}
	r.Touch(status, at.UnixMilli())
}

// MarkDeleted turns the row into a tombstone.
func (r *SyncRecord) MarkDeleted(at time.Time) {
	r.Touch(StatusLocallyDeleted, at.UnixMilli())
}
