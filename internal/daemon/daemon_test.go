package daemon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nous-labs/murmur/internal/config"
	"github.com/nous-labs/murmur/internal/credentials"
	"github.com/nous-labs/murmur/internal/memory"
	"github.com/nous-labs/murmur/pkg/channel"
	"github.com/nous-labs/murmur/pkg/events"
)

type stubClient struct {
	started chan struct{}
	once    sync.Once
	mu      sync.Mutex
	handler channel.MessageHandler
	sent    []string
}

func newStubClient() *stubClient { return &stubClient{started: make(chan struct{})} }

func (c *stubClient) Name() string       { return "stub" }
func (c *stubClient) Self() channel.Self { return channel.Self{ID: "bot", Username: "murmur"} }
func (c *stubClient) Stop() error        { return nil }
func (c *stubClient) Start(ctx context.Context, h channel.MessageHandler) error {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
	c.once.Do(func() { close(c.started) })
	<-ctx.Done()
	return nil
}
func (c *stubClient) SendText(_ context.Context, _, text, _ string) (string, error) {
	c.mu.Lock()
	c.sent = append(c.sent, text)
	c.mu.Unlock()
	return "id", nil
}
func (c *stubClient) SendTyping(context.Context, string) error { return channel.ErrUnsupported }
func (c *stubClient) React(context.Context, string, string, string) error {
	return channel.ErrUnsupported
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.HTTPAddr = ""
	cfg.Memory = config.MemoryConfig{Driver: config.DriverSQLite, Dir: t.TempDir(), Retention: config.Duration(time.Hour)}
	cfg.Queue.Enabled = false
	cfg.Models = []credentials.Credential{{Name: "m", Provider: "openai", Endpoint: "http://127.0.0.1:1/v1", Model: "x", APIKey: "k", Enabled: true}}
	cfg.Accounts = []config.AccountConfig{{
		Name:     "main",
		Platform: config.PlatformTwitch,
		Twitch:   &config.TwitchAccount{Username: "murmur", OAuthToken: "oauth:x"},
		Channels: []config.ChannelConfig{{ID: "chan", Name: "chan", UseAI: true}},
	}}
	return cfg
}

func newTestDaemon(t *testing.T, cfg *config.Config) (*Daemon, *stubClient) {
	t.Helper()
	client := newStubClient()
	d, err := New(context.Background(), cfg, func(config.AccountConfig) (channel.Client, error) {
		return client, nil
	})
	require.NoError(t, err)
	return d, client
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Models = nil
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "no enabled models")
}

func TestNewClientPlatforms(t *testing.T) {
	for _, a := range []config.AccountConfig{
		{Name: "m", Platform: config.PlatformMatrix, Matrix: &config.MatrixAccount{Homeserver: "http://hs", UserID: "u", ServerName: "hs"}},
		{Name: "s", Platform: config.PlatformSlack, Slack: &config.SlackAccount{BotToken: "xoxb", AppToken: "xapp"}},
		{Name: "t", Platform: config.PlatformTwitch, Twitch: &config.TwitchAccount{Username: "u", OAuthToken: "oauth:x"}},
	} {
		c, err := NewClient(a)
		require.NoError(t, err)
		assert.Equal(t, a.Platform, c.Name())
	}
	_, err := NewClient(config.AccountConfig{Platform: "irc"})
	assert.Error(t, err)
}

func TestRunServesUntilCancelled(t *testing.T) {
	d, client := newTestDaemon(t, testConfig(t))
	h := d.handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-client.started:
	case <-time.After(5 * time.Second):
		t.Fatal("client never started")
	}
	require.Eventually(t, d.healthy.Load, time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSocketServesAPI(t *testing.T) {
	d, _ := newTestDaemon(t, testConfig(t))
	t.Cleanup(d.close)
	d.healthy.Store(true)

	path := filepath.Join(t.TempDir(), "murmur.sock")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.serveSocket(ctx, path)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "unix", path)
		},
	}}
	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = client.Get("http://murmur/health")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHistoryEndpoint(t *testing.T) {
	d, _ := newTestDaemon(t, testConfig(t))
	t.Cleanup(d.close)
	require.NoError(t, d.store.Append(context.Background(), "main", memory.Exchange{
		MessageID: "m1", Author: "alice", Content: "hello", BotResponse: "hey", Topic: "general",
	}))
	h := d.handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history?account=nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history?account=main&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "alice", resp.Exchanges[0].Author)
	assert.Equal(t, "hey", resp.Exchanges[0].BotResponse)
}

func TestStatusEndpoint(t *testing.T) {
	d, _ := newTestDaemon(t, testConfig(t))
	t.Cleanup(d.close)

	rec := httptest.NewRecorder()
	d.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Models)
	require.Len(t, resp.Accounts, 1)
	assert.Equal(t, "main", resp.Accounts[0].Name)
	assert.Equal(t, "stub", resp.Accounts[0].Platform)
}

func TestResetDailyClearsCooling(t *testing.T) {
	d, _ := newTestDaemon(t, testConfig(t))
	t.Cleanup(d.close)

	d.pool.Cool(d.config.Models[0])
	require.True(t, d.dup.Accept("same old line"))
	require.Equal(t, 1, d.pool.CoolingCount())

	d.ResetDaily()
	assert.Zero(t, d.pool.CoolingCount())
	assert.False(t, d.dup.IsDuplicate("same old line"))
	recent := d.events.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, events.TypeReset, recent[0].Type)
}

func TestGreetUsesQueue(t *testing.T) {
	d, client := newTestDaemon(t, testConfig(t))
	t.Cleanup(d.close)

	d.Greet("gm")

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, []string{"gm"}, client.sent)
}
