package chaperone

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type sentMessage struct {
	ChannelID string
	Content   string
}

type sentEmbed struct {
	ChannelID string
	Embed     *discordgo.MessageEmbed
}

type timeoutCall struct {
	GuildID string
	UserID  string
	Until   *time.Time
}

// stubSession is an in-memory DiscordSessionHandler that records every
// call for assertions.
type stubSession struct {
	mu sync.Mutex

	opened    bool
	messageID int

	messages     []sentMessage
	embeds       []sentEmbed
	deleted      [][2]string // channel, message
	bulkDeleted  map[string][]string
	nicknames    []renameCall
	timeouts     []timeoutCall
	kicked       []string
	banned       []string
	unbanned     []string
	roleAdds     [][3]string // guild, user, role
	roleRemoves  [][3]string
	customStatus string
	reactions    []string
	dmChannels   map[string]string
	interactions []*discordgo.InteractionResponse
	edits        []*discordgo.WebhookEdit
	registered   []*discordgo.ApplicationCommand

	failNicknames bool
}

func newStubSession() *stubSession {
	return &stubSession{
		bulkDeleted: map[string][]string{},
		dmChannels:  map[string]string{},
	}
}

func (s *stubSession) nextMessage(channelID, content string) *discordgo.Message {
	s.messageID++
	return &discordgo.Message{
		ID:        fmt.Sprintf("msg-%d", s.messageID),
		ChannelID: channelID,
		Content:   content,
	}
}

func (s *stubSession) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

func (s *stubSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = false
	return nil
}

func (s *stubSession) AddHandler(any) func() {
	return func() {}
}

func (s *stubSession) ChannelMessageSend(
	channelID string, content string, _ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(
		s.messages, sentMessage{ChannelID: channelID, Content: content},
	)
	return s.nextMessage(channelID, content), nil
}

func (s *stubSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeds = append(s.embeds, sentEmbed{ChannelID: channelID, Embed: embed})
	return s.nextMessage(channelID, ""), nil
}

func (s *stubSession) ChannelMessageDelete(
	channelID, messageID string, _ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, [2]string{channelID, messageID})
	return nil
}

func (s *stubSession) ChannelMessagesBulkDelete(
	channelID string, messages []string, _ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkDeleted[channelID] = append(s.bulkDeleted[channelID], messages...)
	return nil
}

func (s *stubSession) ChannelMessages(
	channelID string,
	limit int,
	_, _, _ string,
	_ ...discordgo.RequestOption,
) ([]*discordgo.Message, error) {
	messages := make([]*discordgo.Message, limit)
	for n := range messages {
		messages[n] = &discordgo.Message{
			ID:        fmt.Sprintf("history-%d", n),
			ChannelID: channelID,
		}
	}
	return messages, nil
}

func (s *stubSession) ChannelEditComplex(
	channelID string,
	_ *discordgo.ChannelEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: channelID}, nil
}

func (s *stubSession) ChannelPermissionSet(
	_, _ string,
	_ discordgo.PermissionOverwriteType,
	_, _ int64,
	_ ...discordgo.RequestOption,
) error {
	return nil
}

func (s *stubSession) GuildMemberNickname(
	guildID, userID, nickname string, _ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNicknames {
		return fmt.Errorf("missing permissions")
	}
	s.nicknames = append(
		s.nicknames,
		renameCall{ScopeID: guildID, UserID: userID, Name: nickname},
	)
	return nil
}

func (s *stubSession) GuildMemberTimeout(
	guildID, userID string,
	until *time.Time,
	_ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts = append(
		s.timeouts,
		timeoutCall{GuildID: guildID, UserID: userID, Until: until},
	)
	return nil
}

func (s *stubSession) GuildMemberDeleteWithReason(
	_, userID, _ string, _ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kicked = append(s.kicked, userID)
	return nil
}

func (s *stubSession) GuildBanCreateWithReason(
	_, userID, _ string, _ int, _ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banned = append(s.banned, userID)
	return nil
}

func (s *stubSession) GuildBanDelete(
	_, userID string, _ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unbanned = append(s.unbanned, userID)
	return nil
}

func (s *stubSession) GuildMemberRoleAdd(
	guildID, userID, roleID string, _ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleAdds = append(s.roleAdds, [3]string{guildID, userID, roleID})
	return nil
}

func (s *stubSession) GuildMemberRoleRemove(
	guildID, userID, roleID string, _ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleRemoves = append(s.roleRemoves, [3]string{guildID, userID, roleID})
	return nil
}

func (s *stubSession) Guild(
	guildID string, _ ...discordgo.RequestOption,
) (*discordgo.Guild, error) {
	return &discordgo.Guild{
		ID:          guildID,
		Name:        "Test Guild",
		OwnerID:     "owner",
		MemberCount: 3,
		Roles: []*discordgo.Role{
			{ID: "role1", Name: "Mods"},
			{ID: "role2", Name: "Regulars"},
		},
	}, nil
}

func (s *stubSession) Channel(
	channelID string, _ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return &discordgo.Channel{
		ID:    channelID,
		Name:  "general",
		Topic: "anything goes",
		Type:  discordgo.ChannelTypeGuildText,
	}, nil
}

func (s *stubSession) GuildMember(
	_, userID string, _ ...discordgo.RequestOption,
) (*discordgo.Member, error) {
	return &discordgo.Member{
		User: &discordgo.User{ID: userID, Username: "member"},
	}, nil
}

func (s *stubSession) UserChannelCreate(
	recipientID string, _ ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channelID := "dm-" + recipientID
	s.dmChannels[recipientID] = channelID
	return &discordgo.Channel{ID: channelID}, nil
}

func (s *stubSession) MessageReactionAdd(
	_, _, emojiID string, _ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactions = append(s.reactions, emojiID)
	return nil
}

func (s *stubSession) InteractionRespond(
	_ *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	_ ...discordgo.RequestOption,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, resp)
	return nil
}

func (s *stubSession) InteractionResponseEdit(
	_ *discordgo.Interaction,
	edit *discordgo.WebhookEdit,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, edit)
	return s.nextMessage("", ""), nil
}

func (s *stubSession) ApplicationCommandBulkOverwrite(
	_ string,
	_ string,
	commands []*discordgo.ApplicationCommand,
	_ ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = commands
	return commands, nil
}

func (s *stubSession) UpdateCustomStatus(status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customStatus = status
	return nil
}

func (s *stubSession) HeartbeatLatency() time.Duration {
	return 42 * time.Millisecond
}

func (s *stubSession) SetLogLevel(slog.Level) error {
	return nil
}

func (s *stubSession) sentMessages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]sentMessage, len(s.messages))
	copy(messages, s.messages)
	return messages
}

func (s *stubSession) sentEmbeds() []sentEmbed {
	s.mu.Lock()
	defer s.mu.Unlock()
	embeds := make([]sentEmbed, len(s.embeds))
	copy(embeds, s.embeds)
	return embeds
}

func (s *stubSession) deletedMessages() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := make([][2]string, len(s.deleted))
	copy(deleted, s.deleted)
	return deleted
}

func (s *stubSession) timeoutCalls() []timeoutCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	timeouts := make([]timeoutCall, len(s.timeouts))
	copy(timeouts, s.timeouts)
	return timeouts
}

func (s *stubSession) interactionResponses() []*discordgo.InteractionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	responses := make([]*discordgo.InteractionResponse, len(s.interactions))
	copy(responses, s.interactions)
	return responses
}

// stubDBI is a write-interface stand-in that records created values.
type stubDBI struct {
	mu      sync.Mutex
	created []any
}

func (d *stubDBI) DB() *gorm.DB { return nil }

func (d *stubDBI) Create(value any) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, value)
	return 1, nil
}

func (d *stubDBI) Save(any) (int64, error) { return 1, nil }

func (d *stubDBI) Updates(any, any) (int64, error) { return 1, nil }

func (d *stubDBI) Delete(any, ...any) (int64, error) { return 1, nil }

func (d *stubDBI) createdModerationEvents() []*ModerationEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var events []*ModerationEvent
	for _, v := range d.created {
		if ev, ok := v.(*ModerationEvent); ok {
			events = append(events, ev)
		}
	}
	return events
}

// newTestBot wires a Chaperone around the stub session with no real
// database or gateway connection.
func newTestBot(t *testing.T, session *stubSession) (*Chaperone, *stubDBI) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Discord.Token = "test-token"
	cfg.Discord.ApplicationID = "test-app"
	cfg.Discord.AdminRoleIDs = []string{"admin-role"}
	cfg.Moderation.FilteredWords = []string{"badword"}

	db := &stubDBI{}
	c := &Chaperone{
		config:    cfg,
		logger:    slog.Default(),
		writeDB:   db,
		startedAt: time.Now(),
	}
	c.discord = &Discord{
		config:  cfg.Discord,
		session: session,
		logger:  slog.Default(),
	}
	c.discord.bot = c
	c.effects = NewEffectRunner(session, nil)
	c.presence = NewPresenceTracker(nil, c.effects, nil)
	c.filter = NewMessageFilter(cfg.Moderation.FilteredWords)
	c.spam = NewSpamDetector(
		cfg.Moderation.SpamWindow,
		cfg.Moderation.SpamThreshold,
		cfg.Moderation.SuspendDuration,
		nil,
	)
	c.users = newUserCache(db, nil)
	c.handlers = c.commandHandlers()
	return c, db
}

func TestMemberDisplayName(t *testing.T) {
	user := &discordgo.User{Username: "bob", GlobalName: "Bobby"}
	assert.Equal(
		t, "Bobcat", memberDisplayName(
			&discordgo.Member{Nick: "Bobcat"}, user,
		),
	)
	assert.Equal(t, "Bobby", memberDisplayName(&discordgo.Member{}, user))
	assert.Equal(
		t, "bob", memberDisplayName(
			nil, &discordgo.User{Username: "bob"},
		),
	)
	assert.Equal(t, "", memberDisplayName(nil, nil))
}

func TestBotCommandsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, cmd := range botCommands() {
		assert.Falsef(t, seen[cmd.Name], "duplicate command %q", cmd.Name)
		seen[cmd.Name] = true
		assert.NotEmpty(t, cmd.Description, "command %q", cmd.Name)
	}
	assert.True(t, seen[cmdAFK])
	assert.True(t, seen[cmdChat])
	assert.True(t, seen[cmdKick])
	assert.True(t, seen[cmdPoll])
	assert.True(t, seen[cmdPing])
}
