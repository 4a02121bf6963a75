package chaperone

import (
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectResultForbidden(t *testing.T) {
	forbidden := EffectResult{
		Op: "rename_display",
		Err: &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusForbidden},
		},
	}
	assert.True(t, forbidden.Forbidden())
	assert.False(t, forbidden.Ok())

	notFound := EffectResult{
		Op: "rename_display",
		Err: &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusNotFound},
		},
	}
	assert.False(t, notFound.Forbidden())

	ok := EffectResult{Op: "rename_display"}
	assert.True(t, ok.Ok())
	assert.False(t, ok.Forbidden())
}

func TestRenameDisplaySoftFailure(t *testing.T) {
	session := newStubSession()
	session.failNicknames = true
	runner := NewEffectRunner(session, nil)

	res := runner.RenameDisplay("guild1", "user1", "[AFK] Bob")
	assert.False(t, res.Ok())
	assert.Equal(t, "rename_display", res.Op)
}

func TestSendNoticeTTL(t *testing.T) {
	session := newStubSession()
	runner := NewEffectRunner(session, nil)

	res := runner.SendNotice(
		"chan1",
		&discordgo.MessageEmbed{Title: "ephemeral"},
		10*time.Millisecond,
	)
	require.True(t, res.Ok())
	require.Len(t, session.sentEmbeds(), 1)

	// the notice is deleted once the TTL elapses
	assert.Eventually(
		t, func() bool {
			return len(session.deletedMessages()) == 1
		}, time.Second, 5*time.Millisecond,
	)
}

func TestSendNoticeWithoutTTLPersists(t *testing.T) {
	session := newStubSession()
	runner := NewEffectRunner(session, nil)

	res := runner.SendNotice("chan1", &discordgo.MessageEmbed{}, 0)
	require.True(t, res.Ok())

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, session.deletedMessages())
}

func TestSendDirect(t *testing.T) {
	session := newStubSession()
	runner := NewEffectRunner(session, nil)

	res := runner.SendDirect("user1", &discordgo.MessageEmbed{Title: "hi"})
	require.True(t, res.Ok())

	embeds := session.sentEmbeds()
	require.Len(t, embeds, 1)
	assert.Equal(t, "dm-user1", embeds[0].ChannelID)
}

func TestSuspendUser(t *testing.T) {
	session := newStubSession()
	runner := NewEffectRunner(session, nil)

	res := runner.SuspendUser("guild1", "user1", 5*time.Minute, "spam")
	require.True(t, res.Ok())

	timeouts := session.timeoutCalls()
	require.Len(t, timeouts, 1)
	require.NotNil(t, timeouts[0].Until)
	assert.WithinDuration(
		t, time.Now().Add(5*time.Minute), *timeouts[0].Until, 10*time.Second,
	)
}

func TestDeleteContent(t *testing.T) {
	session := newStubSession()
	runner := NewEffectRunner(session, nil)

	res := runner.DeleteContent("chan1", "msg1")
	require.True(t, res.Ok())
	assert.Equal(
		t, [2]string{"chan1", "msg1"}, session.deletedMessages()[0],
	)
}
