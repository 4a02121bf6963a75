package chaperone

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slashInteraction(
	name string,
	options ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "interaction1",
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   "guild1",
			ChannelID: "chan1",
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "user1", Username: "bob"},
			},
		},
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

func userOption(name, userID string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionUser,
		Value: userID,
	}
}

func responseContent(t *testing.T, session *stubSession, n int) string {
	t.Helper()
	responses := session.interactionResponses()
	require.Greater(t, len(responses), n)
	require.NotNil(t, responses[n].Data)
	return responses[n].Data.Content
}

func TestAFKCommandMarksAway(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	i := slashInteraction(cmdAFK, stringOption("reason", "lunch"))
	bot.handleInteractionCreate(nil, i)

	assert.True(t, bot.presence.IsAway("user1"))
	responses := session.interactionResponses()
	require.Len(t, responses, 1)
	require.Len(t, responses[0].Data.Embeds, 1)
	assert.Contains(t, responses[0].Data.Embeds[0].Description, "lunch")

	// a second /afk fails without overwriting the first record
	bot.handleInteractionCreate(nil, i)
	assert.Contains(
		t, responseContent(t, session, 1), "already marked AFK",
	)
	records := bot.presence.ListAway()
	require.Len(t, records, 1)
	assert.Equal(t, "lunch", records[0].Reason)
}

func TestAFKClearCommand(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	bot.handleInteractionCreate(nil, slashInteraction(cmdAFKClear))
	assert.Contains(t, responseContent(t, session, 0), "not marked AFK")

	_, err := bot.presence.MarkAway("user1", "guild1", "brb", "")
	require.NoError(t, err)

	bot.handleInteractionCreate(nil, slashInteraction(cmdAFKClear))
	assert.Contains(t, responseContent(t, session, 1), "Welcome back")
	assert.False(t, bot.presence.IsAway("user1"))
}

func TestAFKListCommand(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	bot.handleInteractionCreate(nil, slashInteraction(cmdAFKList))
	assert.Contains(t, responseContent(t, session, 0), "Nobody is AFK")

	_, err := bot.presence.MarkAway("away1", "guild1", "gone", "")
	require.NoError(t, err)

	bot.handleInteractionCreate(nil, slashInteraction(cmdAFKList))
	responses := session.interactionResponses()
	require.Len(t, responses, 2)
	require.Len(t, responses[1].Data.Embeds, 1)
	assert.Contains(t, responses[1].Data.Embeds[0].Description, "away1")
}

func TestAdminCommandsRequirePermission(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	i := slashInteraction(cmdKick, userOption("user", "target1"))
	bot.handleInteractionCreate(nil, i)

	assert.Contains(
		t, responseContent(t, session, 0), "don't have permission",
	)
	assert.Empty(t, session.kicked)
}

func TestKickCommandWithAdminRole(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	i := slashInteraction(
		cmdKick,
		userOption("user", "target1"),
		stringOption("reason", "being rude"),
	)
	i.Member.Roles = []string{"admin-role"}
	bot.handleInteractionCreate(nil, i)

	assert.Equal(t, []string{"target1"}, session.kicked)
	assert.Contains(t, responseContent(t, session, 0), "Kicked")
}

func TestUserOptionsResolveUsernames(t *testing.T) {
	session := newStubSession()
	bot, db := newTestBot(t, session)

	i := slashInteraction(
		cmdKick,
		userOption("user", "target1"),
		stringOption("reason", "spamming"),
	)
	i.Member.Roles = []string{"admin-role"}
	data := i.Interaction.Data.(discordgo.ApplicationCommandInteractionData)
	data.Resolved = &discordgo.ApplicationCommandInteractionDataResolved{
		Users: map[string]*discordgo.User{
			"target1": {ID: "target1", Username: "troublemaker"},
		},
	}
	i.Interaction.Data = data
	bot.handleInteractionCreate(nil, i)

	// responses and the audit row carry the resolved name, not a blank
	assert.Contains(
		t, responseContent(t, session, 0), "Kicked troublemaker",
	)
	events := db.createdModerationEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "troublemaker", events[0].Username)
}

func TestUserOptionFallsBackToMemberLookup(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	// no resolved data on the interaction; the member fetch fills in
	// the name
	i := slashInteraction(
		cmdWarn,
		userOption("user", "target1"),
		stringOption("reason", "be nice"),
	)
	i.Member.Roles = []string{"admin-role"}
	bot.handleInteractionCreate(nil, i)

	assert.Contains(t, responseContent(t, session, 0), "Warned member")
}

func TestModeratorPermissionBitAllowed(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	i := slashInteraction(cmdUnmute, userOption("user", "target1"))
	i.Member.Permissions = discordgo.PermissionModerateMembers
	bot.handleInteractionCreate(nil, i)

	timeouts := session.timeoutCalls()
	require.Len(t, timeouts, 1)
	assert.Nil(t, timeouts[0].Until)
}

func TestTimeoutCommand(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	i := slashInteraction(
		cmdTimeout,
		userOption("user", "target1"),
		intOption("minutes", 10),
	)
	i.Member.Roles = []string{"admin-role"}
	bot.handleInteractionCreate(nil, i)

	timeouts := session.timeoutCalls()
	require.Len(t, timeouts, 1)
	require.NotNil(t, timeouts[0].Until)
	assert.Equal(t, "target1", timeouts[0].UserID)
}

func TestFilterSubcommands(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	addSub := &discordgo.ApplicationCommandInteractionDataOption{
		Name: "add",
		Type: discordgo.ApplicationCommandOptionSubCommand,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			stringOption("word", "NewBad"),
		},
	}
	i := slashInteraction(cmdFilter, addSub)
	i.Member.Roles = []string{"admin-role"}
	bot.handleInteractionCreate(nil, i)

	assert.True(t, bot.filter.ContainsFilteredWords("newbad"))

	listSub := &discordgo.ApplicationCommandInteractionDataOption{
		Name: "list",
		Type: discordgo.ApplicationCommandOptionSubCommand,
	}
	i = slashInteraction(cmdFilter, listSub)
	i.Member.Roles = []string{"admin-role"}
	bot.handleInteractionCreate(nil, i)
	assert.Contains(t, responseContent(t, session, 1), "newbad")

	removeSub := &discordgo.ApplicationCommandInteractionDataOption{
		Name: "remove",
		Type: discordgo.ApplicationCommandOptionSubCommand,
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			stringOption("word", "newbad"),
		},
	}
	i = slashInteraction(cmdFilter, removeSub)
	i.Member.Roles = []string{"admin-role"}
	bot.handleInteractionCreate(nil, i)
	assert.False(t, bot.filter.ContainsFilteredWords("newbad"))
}

func TestPingCommand(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	bot.handleInteractionCreate(nil, slashInteraction(cmdPing))
	assert.Contains(t, responseContent(t, session, 0), "Pong")
	assert.Contains(t, responseContent(t, session, 0), "42ms")
}

func TestPollCommandAddsReactions(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	i := slashInteraction(
		cmdPoll,
		stringOption("question", "Pizza or tacos?"),
		stringOption("option1", "Pizza"),
		stringOption("option2", "Tacos"),
	)
	bot.handleInteractionCreate(nil, i)

	// deferred ack, then the poll embed via edit
	responses := session.interactionResponses()
	require.Len(t, responses, 1)
	assert.Equal(
		t,
		discordgo.InteractionResponseDeferredChannelMessageWithSource,
		responses[0].Type,
	)
	require.Len(t, session.edits, 1)
	assert.Equal(t, pollNumberEmoji[:2], session.reactions)
}

func TestPollNeedsTwoChoices(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	i := slashInteraction(
		cmdPoll,
		stringOption("question", "anyone?"),
		stringOption("option1", "only one"),
	)
	bot.handleInteractionCreate(nil, i)
	assert.Contains(
		t, responseContent(t, session, 0), "at least two choices",
	)
	assert.Empty(t, session.reactions)
}

func TestVoteCommand(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	i := slashInteraction(cmdVote, stringOption("question", "ship it?"))
	bot.handleInteractionCreate(nil, i)

	assert.Equal(
		t, []string{voteUpEmoji, voteDownEmoji}, session.reactions,
	)
}

func TestRPSCommand(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	bot.handleInteractionCreate(
		nil, slashInteraction(cmdRPS, stringOption("choice", "rock")),
	)
	content := responseContent(t, session, 0)
	assert.Contains(t, content, "You chose rock")
}

func TestUnknownCommandIgnored(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	bot.handleInteractionCreate(nil, slashInteraction("no-such-command"))
	assert.Empty(t, session.interactionResponses())
}

func TestNonCommandInteractionIgnored(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	i := slashInteraction(cmdPing)
	i.Type = discordgo.InteractionMessageComponent
	bot.handleInteractionCreate(nil, i)
	assert.Empty(t, session.interactionResponses())
}

func TestIgnoredUserCannotUseCommands(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)
	bot.users.users["user1"] = &User{ID: "user1", Ignored: true}

	bot.handleInteractionCreate(nil, slashInteraction(cmdPing))
	assert.Contains(
		t, responseContent(t, session, 0), "can't use this bot",
	)
}

func TestAICommandsUnconfigured(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)

	bot.handleInteractionCreate(
		nil, slashInteraction(cmdChat, stringOption("message", "hi")),
	)
	assert.Contains(
		t, responseContent(t, session, 0), "aren't configured",
	)
}

func TestAIChatCommand(t *testing.T) {
	session := newStubSession()
	bot, _ := newTestBot(t, session)
	bot.config.AI.Token = "test-token"
	bot.ai = newTestAIChat(t, "hello back")

	bot.handleInteractionCreate(
		nil, slashInteraction(cmdChat, stringOption("message", "hi")),
	)

	responses := session.interactionResponses()
	require.Len(t, responses, 1)
	assert.Equal(
		t,
		discordgo.InteractionResponseDeferredChannelMessageWithSource,
		responses[0].Type,
	)
	require.Len(t, session.edits, 1)
	require.NotNil(t, session.edits[0].Content)
	assert.Equal(t, "hello back", *session.edits[0].Content)

	// cooldown now applies
	bot.handleInteractionCreate(
		nil, slashInteraction(cmdChat, stringOption("message", "again")),
	)
	assert.Contains(t, responseContent(t, session, 1), "Please wait")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
