package chaperone

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

const (
	// afkMarker is the nickname prefix applied to away users.
	afkMarker = "[AFK]"

	// DefaultAwayReason is used when a user goes away without giving one.
	DefaultAwayReason = "Away"
)

var (
	// ErrAlreadyAway is returned by MarkAway when the user already has an
	// active away record. The existing record is never overwritten.
	ErrAlreadyAway = errors.New("user is already away")

	// ErrNotAway is returned by ClearAway when the user has no active
	// away record.
	ErrNotAway = errors.New("user is not away")
)

// AwayRecord is the state held for a single away user. At most one
// record exists per user ID at any time.
type AwayRecord struct {
	// UserID is the Discord user ID the record belongs to
	UserID string

	// Reason the user gave for going away
	Reason string

	// Since is when the user marked themselves away
	Since time.Time

	// ScopeID is the guild the mark applies to. Empty outside a guild.
	ScopeID string

	// SavedDisplayName is the display name captured at the moment of
	// marking, used for restoration on return
	SavedDisplayName string
}

// Activity describes a single inbound activity event: one user doing
// one thing at one instant, in an optional guild scope.
type Activity struct {
	UserID   string
	Username string
	ScopeID  string
	At       time.Time
}

// ReturnNotice is produced when an away user becomes active again. It's
// ephemeral UI data for the caller to render, not persisted state.
type ReturnNotice struct {
	UserID  string
	AwayFor time.Duration
	Reason  string
}

// AfkNotice is produced for each mentioned user who is currently away.
type AfkNotice struct {
	UserID string
	Reason string
	Since  time.Time
}

// displayRenamer requests a best-effort display name change from the
// platform. Failures are soft: logged by the implementation, never
// surfaced to the tracker.
type displayRenamer interface {
	RenameDisplay(scopeID, userID, name string) EffectResult
}

// AwayStore is the persistence port for away records. Load is called
// once when the tracker is created; Save receives a full snapshot after
// every mutation. Both are best-effort from the tracker's perspective.
type AwayStore interface {
	Load() (map[string]AwayRecord, error)
	Save(records map[string]AwayRecord) error
}

// memoryAwayStore is the no-op store used when durability isn't needed
// (and by most tests).
type memoryAwayStore struct{}

func (memoryAwayStore) Load() (map[string]AwayRecord, error) { return nil, nil }

func (memoryAwayStore) Save(map[string]AwayRecord) error { return nil }

// PresenceTracker records which users are away, detects their return
// via activity events, and answers "is this user away" for mentions.
//
// All state lives behind a single mutex: events for the same user are
// already delivered sequentially by the gateway dispatch, but nothing
// here depends on that.
type PresenceTracker struct {
	mu      sync.Mutex
	records map[string]AwayRecord
	store   AwayStore
	effects displayRenamer
	logger  *slog.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewPresenceTracker creates a tracker, loading any persisted away
// records from the given store. A nil store disables persistence.
func NewPresenceTracker(
	store AwayStore,
	effects displayRenamer,
	logger *slog.Logger,
) *PresenceTracker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(loggerNameKey, "presence")
	if store == nil {
		store = memoryAwayStore{}
	}
	t := &PresenceTracker{
		records: map[string]AwayRecord{},
		store:   store,
		effects: effects,
		logger:  logger,
		now:     time.Now,
	}
	loaded, err := store.Load()
	if err != nil {
		logger.Error("error loading away records", tint.Err(err))
	}
	for userID, rec := range loaded {
		if prev, ok := t.records[userID]; ok {
			// Shouldn't be possible from a keyed store, but clamp to
			// one record rather than guessing.
			logger.Error(
				"duplicate away record for user, keeping first",
				"user_id", userID,
				"kept_since", prev.Since,
			)
			continue
		}
		t.records[userID] = rec
	}
	if len(t.records) > 0 {
		logger.Info("loaded away records", "count", len(t.records))
	}
	return t
}

// MarkAway creates an away record for the user and requests the "[AFK]"
// nickname prefix. Fails with ErrAlreadyAway if a record already exists;
// the rename is best-effort and does not affect the result.
func (t *PresenceTracker) MarkAway(
	userID string,
	scopeID string,
	reason string,
	currentDisplayName string,
) (AwayRecord, error) {
	if reason == "" {
		reason = DefaultAwayReason
	}
	t.mu.Lock()
	if _, exists := t.records[userID]; exists {
		t.mu.Unlock()
		return AwayRecord{}, fmt.Errorf("%w: %s", ErrAlreadyAway, userID)
	}
	rec := AwayRecord{
		UserID:           userID,
		Reason:           reason,
		Since:            t.now(),
		ScopeID:          scopeID,
		SavedDisplayName: currentDisplayName,
	}
	t.records[userID] = rec
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(snapshot)
	if scopeID != "" && t.effects != nil {
		nick := awayNickname(currentDisplayName)
		go t.effects.RenameDisplay(scopeID, userID, nick)
	}
	t.logger.Info(
		"user marked away",
		"user_id", userID,
		"scope_id", scopeID,
		"reason", reason,
	)
	return rec, nil
}

// OnActivity clears the user's away record, if any, and requests
// restoration of their display name. The returned notice carries the
// time spent away; ok is false when the user wasn't away (no-op).
func (t *PresenceTracker) OnActivity(a Activity) (ReturnNotice, bool) {
	t.mu.Lock()
	rec, exists := t.records[a.UserID]
	if !exists {
		t.mu.Unlock()
		return ReturnNotice{}, false
	}
	delete(t.records, a.UserID)
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(snapshot)
	t.restoreDisplayName(rec, a.Username)

	notice := ReturnNotice{
		UserID:  a.UserID,
		AwayFor: a.At.Sub(rec.Since),
		Reason:  rec.Reason,
	}
	t.logger.Info(
		"user returned from away",
		"user_id", a.UserID,
		"away_for", notice.AwayFor,
	)
	return notice, true
}

// ClearAway is the explicit version of the OnActivity return path.
// Fails with ErrNotAway when the user has no active record.
func (t *PresenceTracker) ClearAway(a Activity) (ReturnNotice, error) {
	t.mu.Lock()
	rec, exists := t.records[a.UserID]
	if !exists {
		t.mu.Unlock()
		return ReturnNotice{}, fmt.Errorf("%w: %s", ErrNotAway, a.UserID)
	}
	delete(t.records, a.UserID)
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(snapshot)
	t.restoreDisplayName(rec, a.Username)

	t.logger.Info("away status cleared", "user_id", a.UserID)
	return ReturnNotice{
		UserID:  a.UserID,
		AwayFor: a.At.Sub(rec.Since),
		Reason:  rec.Reason,
	}, nil
}

// OnMention returns one notice per mentioned user who is currently
// away, in mention order. Duplicate mentions produce duplicate notices;
// deduplication is the caller's concern, if it cares.
func (t *PresenceTracker) OnMention(mentionedUserIDs []string, _ time.Time) []AfkNotice {
	t.mu.Lock()
	defer t.mu.Unlock()
	var notices []AfkNotice
	for _, userID := range mentionedUserIDs {
		rec, exists := t.records[userID]
		if !exists {
			continue
		}
		notices = append(
			notices, AfkNotice{
				UserID: userID,
				Reason: rec.Reason,
				Since:  rec.Since,
			},
		)
	}
	return notices
}

// IsAway reports whether the user currently has an away record.
func (t *PresenceTracker) IsAway(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.records[userID]
	return exists
}

// ListAway returns a snapshot of all current away records, in no
// particular order.
func (t *PresenceTracker) ListAway() []AwayRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	records := make([]AwayRecord, 0, len(t.records))
	for _, rec := range t.records {
		records = append(records, rec)
	}
	return records
}

// restoreDisplayName requests the post-return nickname. If the saved
// name itself carried the marker, only the marker is stripped; with no
// saved name, the bare username is used.
func (t *PresenceTracker) restoreDisplayName(rec AwayRecord, username string) {
	if rec.ScopeID == "" || t.effects == nil {
		return
	}
	restored := restoredNickname(rec.SavedDisplayName, username)
	go t.effects.RenameDisplay(rec.ScopeID, rec.UserID, restored)
}

func (t *PresenceTracker) snapshotLocked() map[string]AwayRecord {
	snapshot := make(map[string]AwayRecord, len(t.records))
	for userID, rec := range t.records {
		snapshot[userID] = rec
	}
	return snapshot
}

func (t *PresenceTracker) persist(snapshot map[string]AwayRecord) {
	if err := t.store.Save(snapshot); err != nil {
		t.logger.Error("error saving away records", tint.Err(err))
	}
}

// awayNickname prefixes the marker onto the current display name,
// keeping the result within Discord's 32-character nickname ceiling by
// shortening the name, never the marker.
func awayNickname(current string) string {
	if strings.HasPrefix(current, afkMarker) {
		return current
	}
	nick := afkMarker + " " + current
	limit := discordMaxNicknameLength
	if len([]rune(nick)) <= limit {
		return nick
	}
	keep := limit - len([]rune(afkMarker+" "))
	return afkMarker + " " + string([]rune(current)[:keep])
}

// restoredNickname computes the nickname to restore when a user
// returns. A saved name that itself carried the marker has exactly the
// leading marker stripped; otherwise the saved name is restored
// verbatim, falling back to the bare username.
func restoredNickname(saved, username string) string {
	if saved == "" {
		return username
	}
	if strings.HasPrefix(saved, afkMarker) {
		return strings.TrimSpace(strings.TrimPrefix(saved, afkMarker))
	}
	return saved
}
