package chaperone

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guildMessage(userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg-under-test",
			GuildID:   "guild1",
			ChannelID: "chan1",
			Content:   content,
			Author: &discordgo.User{
				ID:       userID,
				Username: "user-" + userID,
			},
			Member: &discordgo.Member{},
		},
	}
}

func TestPipelineIgnoresBots(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	m := guildMessage("bot1", "badword")
	m.Author.Bot = true
	bot.handleMessageCreate(nil, m)

	assert.Empty(t, session.deletedMessages())
	assert.Zero(t, bot.messageCount.Load())
}

func TestPipelineIgnoresDMs(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	m := guildMessage("user1", "badword")
	m.GuildID = ""
	bot.handleMessageCreate(nil, m)

	assert.Empty(t, session.deletedMessages())
}

func TestPipelineIgnoresFlaggedUsers(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)
	bot.users.users["user1"] = &User{ID: "user1", Ignored: true}

	bot.handleMessageCreate(nil, guildMessage("user1", "badword"))

	assert.Empty(t, session.deletedMessages())
	assert.Zero(t, bot.messageCount.Load())
}

func TestPipelineDeletesFilteredMessage(t *testing.T) {
	session := newStubSession()
	bot, db := newTestBot(t, session)

	bot.handleMessageCreate(nil, guildMessage("user1", "you badword"))

	// message deleted
	deleted := session.deletedMessages()
	require.Len(t, deleted, 1)
	assert.Equal(t, [2]string{"chan1", "msg-under-test"}, deleted[0])

	// channel warning
	messages := session.sentMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "chan1", messages[0].ChannelID)
	assert.Contains(t, messages[0].Content, "your message was removed")

	// DM to the author
	embeds := session.sentEmbeds()
	require.Len(t, embeds, 1)
	assert.Equal(t, "dm-user1", embeds[0].ChannelID)
	assert.Equal(t, "Message Removed", embeds[0].Embed.Title)

	// audit row
	events := db.createdModerationEvents()
	require.Len(t, events, 1)
	assert.Equal(t, ModerationActionDelete, events[0].Action)
	assert.Equal(t, "user1", events[0].UserID)
	assert.Equal(t, int64(1), bot.filteredCount.Load())
}

func TestPipelineInviteLinkIsHardBlock(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	bot.handleMessageCreate(
		nil, guildMessage("user1", "join discord.gg/abc123"),
	)

	require.Len(t, session.deletedMessages(), 1)
}

func TestPipelineAdvisoryReasonsDontBlock(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	// caps-only message: advisory, never deleted
	bot.handleMessageCreate(
		nil, guildMessage("user1", "STOP SHOUTING AT ME PLEASE"),
	)

	assert.Empty(t, session.deletedMessages())
	assert.Zero(t, bot.filteredCount.Load())
}

func TestPipelineSuspendsSpammer(t *testing.T) {
	session := newStubSession()
	bot, db := newTestBot(t, session)

	for n := 0; n < 6; n++ {
		bot.handleMessageCreate(nil, guildMessage("user1", "hello"))
	}

	timeouts := session.timeoutCalls()
	require.Len(t, timeouts, 1)
	assert.Equal(t, "guild1", timeouts[0].GuildID)
	assert.Equal(t, "user1", timeouts[0].UserID)
	require.NotNil(t, timeouts[0].Until)
	assert.WithinDuration(
		t,
		time.Now().Add(DefaultSuspendDuration),
		*timeouts[0].Until,
		10*time.Second,
	)

	events := db.createdModerationEvents()
	require.Len(t, events, 1)
	assert.Equal(t, ModerationActionTimeout, events[0].Action)
	assert.Equal(t, int64(1), bot.suspendedCount.Load())

	// nothing was deleted; spam suspension leaves messages in place
	assert.Empty(t, session.deletedMessages())
}

func TestPipelineFilteredMessagesCountTowardSpam(t *testing.T) {
	session := newStubSession()
	bot, db := newTestBot(t, session)

	for n := 0; n < 6; n++ {
		bot.handleMessageCreate(nil, guildMessage("user1", "you badword"))
	}

	// every message was removed
	assert.Len(t, session.deletedMessages(), 6)

	// and the rate of sending them still earned a suspension: filtering
	// a message doesn't exempt it from the spam window
	timeouts := session.timeoutCalls()
	require.Len(t, timeouts, 1)
	assert.Equal(t, "user1", timeouts[0].UserID)
	assert.Equal(t, int64(1), bot.suspendedCount.Load())

	actions := map[string]int{}
	for _, ev := range db.createdModerationEvents() {
		actions[ev.Action]++
	}
	assert.Equal(t, 6, actions[ModerationActionDelete])
	assert.Equal(t, 1, actions[ModerationActionTimeout])
}

func TestPipelineSkipsModerationForAdmins(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	m := guildMessage("admin1", "badword")
	m.Member.Roles = []string{"admin-role"}
	bot.handleMessageCreate(nil, m)

	assert.Empty(t, session.deletedMessages())
	// but their activity still counts for presence
	assert.Equal(t, int64(1), bot.messageCount.Load())
}

func TestPipelineWelcomeBackNotice(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	_, err := bot.presence.MarkAway("user1", "guild1", "lunch", "Bob")
	require.NoError(t, err)

	bot.handleMessageCreate(nil, guildMessage("user1", "back now"))

	assert.False(t, bot.presence.IsAway("user1"))
	embeds := session.sentEmbeds()
	require.NotEmpty(t, embeds)
	assert.Equal(t, "Welcome back!", embeds[0].Embed.Title)
}

func TestPipelineMentionNotices(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	_, err := bot.presence.MarkAway("away1", "guild1", "gone fishing", "")
	require.NoError(t, err)

	m := guildMessage("user1", "hey @away1")
	m.Mentions = []*discordgo.User{{ID: "away1", Username: "away1"}}
	bot.handleMessageCreate(nil, m)

	embeds := session.sentEmbeds()
	require.Len(t, embeds, 1)
	assert.Equal(t, "User is AFK", embeds[0].Embed.Title)
	assert.Contains(t, embeds[0].Embed.Description, "gone fishing")

	// the away user wasn't cleared by someone else's message
	assert.True(t, bot.presence.IsAway("away1"))
}

func TestFilterReasonSummary(t *testing.T) {
	assert.Equal(
		t,
		string(ReasonFilteredWord),
		filterReasonSummary(nil),
	)
	assert.Equal(
		t,
		"Contains inappropriate content; Contains Discord invite link",
		filterReasonSummary(
			[]FilterReason{ReasonFilteredWord, ReasonInviteLink},
		),
	)
}

func TestShortDuration(t *testing.T) {
	assert.Equal(t, "45 seconds", shortDuration(45*time.Second))
	assert.Equal(t, "5 minutes", shortDuration(5*time.Minute+20*time.Second))
	assert.Equal(t, "2 hours 30 minutes", shortDuration(150*time.Minute))
	assert.Equal(t, "0 seconds", shortDuration(-time.Second))
}
