package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFanOutAndRecent(t *testing.T) {
	b := NewBus()
	ch, done := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())

	b.Publish(Event{Type: TypeQueued, Channel: "c1"})
	b.Publish(Event{Type: TypeDelivered, Channel: "c1", Text: "gg"})

	got := <-ch
	assert.Equal(t, TypeQueued, got.Type)
	assert.NotEmpty(t, got.TS)
	assert.Equal(t, TypeDelivered, (<-ch).Type)

	recent := b.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "gg", recent[0].Text)
	assert.Len(t, b.Recent(0), 2)

	b.Unsubscribe(done)
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestRecentIsBounded(t *testing.T) {
	b := NewBus()
	for i := 0; i < 250; i++ {
		b.Publish(Event{Type: TypeSkipped})
	}
	assert.Len(t, b.Recent(0), 200)
}

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() { b.Publish(Event{Type: TypeReset}) })
}

func TestServeHTTPStreamsBacklog(t *testing.T) {
	b := NewBus()
	b.Publish(Event{Type: TypeBlocked, Account: "acct", Reason: "forbidden"})

	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "))
	assert.Contains(t, line, `"type":"blocked"`)
	assert.Contains(t, line, `"reason":"forbidden"`)
}
