package twitch

import (
	"context"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nous-labs/murmur/pkg/channel"
)

func TestConvert(t *testing.T) {
	c := New(Config{Username: "MurmurBot"})
	now := time.Now()

	msg := c.convert(twitch.PrivateMessage{
		User:    twitch.User{ID: "42", Name: "alice", DisplayName: "Alice"},
		Message: "@MurmurBot, gg that was close",
		Channel: "SomeStreamer",
		ID:      "abc-123",
		Time:    now,
	})
	assert.Equal(t, "abc-123", msg.ID)
	assert.Equal(t, "alice", msg.AuthorID)
	assert.Equal(t, "Alice", msg.AuthorName)
	assert.Equal(t, "somestreamer", msg.ChannelID)
	assert.Equal(t, channel.KindText, msg.Kind)
	assert.True(t, msg.Mentioned(c.Self().ID))
	assert.False(t, msg.IsBot)
	assert.Equal(t, now, msg.Timestamp)

	action := c.convert(twitch.PrivateMessage{User: twitch.User{Name: "alice"}, Message: "dances", Action: true})
	assert.Equal(t, channel.KindEmote, action.Kind)

	bot := c.convert(twitch.PrivateMessage{User: twitch.User{Name: "Nightbot"}, Message: "follow the socials"})
	assert.True(t, bot.IsBot)
}

func TestParseMentions(t *testing.T) {
	assert.Equal(t, []string{"bob", "carol"}, parseMentions("hey @Bob and @carol! @bob"))
	assert.Empty(t, parseMentions("no mentions @ here"))
}

type recorder struct {
	said    []string
	replied []string
}

func (r *recorder) Say(channel, text string) { r.said = append(r.said, channel+"|"+text) }
func (r *recorder) Reply(channel, parent, text string) {
	r.replied = append(r.replied, channel+"|"+parent+"|"+text)
}

func TestSendText(t *testing.T) {
	c := New(Config{Username: "murmurbot"})
	_, err := c.SendText(context.Background(), "chan", "hi", "")
	require.Error(t, err)

	rec := &recorder{}
	c.out = rec
	_, err = c.SendText(context.Background(), "chan", "hi", "")
	require.NoError(t, err)
	_, err = c.SendText(context.Background(), "chan", "same", "msg-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"chan|hi"}, rec.said)
	assert.Equal(t, []string{"chan|msg-1|same"}, rec.replied)
}

func TestUnsupportedPrimitives(t *testing.T) {
	c := New(Config{})
	assert.ErrorIs(t, c.SendTyping(context.Background(), "chan"), channel.ErrUnsupported)
	assert.ErrorIs(t, c.React(context.Background(), "chan", "m", "👍"), channel.ErrUnsupported)
	assert.NoError(t, c.Stop())
}
