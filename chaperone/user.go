package chaperone

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var (
	columnUserUsername   = "username"
	columnUserGlobalName = "global_name"
	columnUserLastSeen   = "last_seen"
)

// User is a record of a Discord user the bot has seen.
type User struct {
	// ID is the Discord user ID
	ID string `json:"id" gorm:"primaryKey;unique;type:string"`

	// Username, not unique
	Username string `json:"username" gorm:"type:string"`

	// User's display name
	GlobalName string `json:"global_name" gorm:"type:string"`

	// Indicates this user is a Discord bot user. Bots are ignored.
	Bot bool `json:"bot" gorm:"type:bool"`

	// If true, messages and commands from this user are dropped
	Ignored bool `json:"ignored" gorm:"type:bool;default:false"`

	// LastSeen is the last time this user produced any activity event
	LastSeen int64 `json:"last_seen" gorm:"column:last_seen"`

	ModelUnixTime
}

func NewUser(u discordgo.User) *User {
	user := User{
		ID:         u.ID,
		Username:   u.Username,
		GlobalName: u.GlobalName,
		Bot:        u.Bot,
		LastSeen:   time.Now().UTC().UnixMilli(),
	}
	if u.Bot {
		user.Ignored = true
	}
	return &user
}

func (u *User) String() string {
	return fmt.Sprintf("%s [%s]", u.Username, u.ID)
}

func (u *User) changedDiscordUsername(du discordgo.User) bool {
	return u.Username != du.Username || u.GlobalName != du.GlobalName
}

// userCache keeps User records in memory, backed by the database.
type userCache struct {
	mu     sync.Mutex
	users  map[string]*User
	db     DBI
	logger *slog.Logger
}

func newUserCache(db DBI, logger *slog.Logger) *userCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &userCache{
		users:  map[string]*User{},
		db:     db,
		logger: logger.With(loggerNameKey, "user_cache"),
	}
}

// Load populates the cache with users seen in the last day.
func (c *userCache) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var users []User
	_ = c.db.DB().Where(
		"last_seen is null OR last_seen = 0 OR last_seen >= ?",
		time.Now().Add(-24*time.Hour).UnixMilli(),
	).Find(&users)
	for i := range users {
		u := users[i]
		c.users[u.ID] = &u
	}
}

// GetOrCreate returns the cached user, refreshing last-seen and any
// changed names, creating a record on first sight.
func (c *userCache) GetOrCreate(du discordgo.User) (*User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if user, ok := c.users[du.ID]; ok {
		user.LastSeen = time.Now().UTC().UnixMilli()
		updates := map[string]any{columnUserLastSeen: user.LastSeen}
		if user.changedDiscordUsername(du) {
			user.Username = du.Username
			user.GlobalName = du.GlobalName
			updates[columnUserUsername] = du.Username
			updates[columnUserGlobalName] = du.GlobalName
		}
		if _, err := c.db.Updates(user, updates); err != nil {
			c.logger.Error("error updating user", "user", user, tint.Err(err))
		}
		return user, false, nil
	}

	user := NewUser(du)
	if _, err := c.db.Create(user); err != nil {
		c.logger.Error("error creating user", "user", user, tint.Err(err))
		return nil, true, err
	}
	c.logger.Info("created new user", "user", user)
	c.users[du.ID] = user
	return user, true, nil
}

// SetIgnored flags or unflags a user, persisting the change.
func (c *userCache) SetIgnored(userID string, ignored bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	user, ok := c.users[userID]
	if !ok {
		user = &User{ID: userID, Ignored: ignored}
		_, err := c.db.Create(user)
		if err == nil {
			c.users[userID] = user
		}
		return err
	}
	user.Ignored = ignored
	_, err := c.db.Updates(user, map[string]any{"ignored": ignored})
	return err
}
