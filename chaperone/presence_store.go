package chaperone

import (
	"fmt"
	"time"
)

// AwayStatus is the persisted form of an AwayRecord: one row per away
// user, keyed by the string user ID, with the timestamp serialized to
// ISO-8601 so it round-trips unambiguously.
type AwayStatus struct {
	// UserID is the Discord user ID (string form of a 64-bit snowflake)
	UserID string `json:"user_id" gorm:"primaryKey;type:string"`

	// Reason the user gave for going away
	Reason string `json:"reason" gorm:"type:string"`

	// Timestamp is when the user went away, ISO-8601
	Timestamp string `json:"timestamp" gorm:"type:string"`

	// ScopeID is the guild the mark applies to, if any
	ScopeID string `json:"scope_id" gorm:"type:string"`

	// OriginalDisplayName is the display name captured at marking time,
	// null when none was available
	OriginalDisplayName *string `json:"original_display_name" gorm:"type:string"`

	// No soft deletion here: rows are hard-deleted on snapshot save so
	// the primary key can be reused when a user goes away again.
	CreatedAt int64 `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64 `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
}

func newAwayStatus(rec AwayRecord) AwayStatus {
	status := AwayStatus{
		UserID:    rec.UserID,
		Reason:    rec.Reason,
		Timestamp: rec.Since.UTC().Format(time.RFC3339Nano),
		ScopeID:   rec.ScopeID,
	}
	if rec.SavedDisplayName != "" {
		name := rec.SavedDisplayName
		status.OriginalDisplayName = &name
	}
	return status
}

func (s AwayStatus) record() (AwayRecord, error) {
	since, err := time.Parse(time.RFC3339Nano, s.Timestamp)
	if err != nil {
		return AwayRecord{}, fmt.Errorf(
			"invalid away timestamp %q for user %s: %w",
			s.Timestamp, s.UserID, err,
		)
	}
	rec := AwayRecord{
		UserID:  s.UserID,
		Reason:  s.Reason,
		Since:   since,
		ScopeID: s.ScopeID,
	}
	if s.OriginalDisplayName != nil {
		rec.SavedDisplayName = *s.OriginalDisplayName
	}
	return rec, nil
}

// gormAwayStore is the durable AwayStore implementation. Save replaces
// the full table contents with the snapshot; records are few (one per
// currently-away user), so this is simpler and safer than diffing.
type gormAwayStore struct {
	db DBI
}

// NewGORMAwayStore creates an AwayStore backed by the given database.
func NewGORMAwayStore(db DBI) AwayStore {
	return &gormAwayStore{db: db}
}

func (s *gormAwayStore) Load() (map[string]AwayRecord, error) {
	var rows []AwayStatus
	if err := s.db.DB().Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error loading away records: %w", err)
	}
	records := make(map[string]AwayRecord, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			// one bad row shouldn't lose the rest
			continue
		}
		records[rec.UserID] = rec
	}
	return records, nil
}

func (s *gormAwayStore) Save(records map[string]AwayRecord) error {
	if _, err := s.db.Delete(
		&AwayStatus{}, "user_id is not null",
	); err != nil {
		return fmt.Errorf("error clearing away records: %w", err)
	}
	for _, rec := range records {
		status := newAwayStatus(rec)
		if _, err := s.db.Create(&status); err != nil {
			return fmt.Errorf(
				"error saving away record for %s: %w", rec.UserID, err,
			)
		}
	}
	return nil
}
