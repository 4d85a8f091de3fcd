package domain

// SyncMetadata is the per-entity-type sync bookkeeping row.
type SyncMetadata struct {
	EntityType        string     `gorm:"primaryKey;type:varchar(64)" json:"entity_type"`
	LastSyncTimestamp int64      `gorm:"not null;default:0" json:"last_sync_timestamp"`
	LastEtag          *string    `gorm:"type:varchar(255)" json:"last_etag,omitempty"`
	SyncStatus        SyncStatus `gorm:"type:varchar(32);not null;default:'PENDING_SYNC'" json:"sync_status"`
	UpdateCount       int64      `gorm:"not null;default:0" json:"update_count"`
	LastSyncResult    string     `gorm:"type:text" json:"last_sync_result"`
}

// TableName specifies the table name for SyncMetadata.
func (SyncMetadata) TableName() string {
	return "sync_metadata"
}

// DefaultMetadata is the row synthesized when an entity type has never synced.
func DefaultMetadata(entityType string) SyncMetadata {
	return SyncMetadata{
		EntityType: entityType,
		SyncStatus: StatusPendingSync,
	}
}

// Etag returns the stored etag, if any.
func (m SyncMetadata) Etag() (string, bool) {
	if m.LastEtag == nil || *m.LastEtag == "" {
		return "", false
	}
	return *m.LastEtag, true
}
