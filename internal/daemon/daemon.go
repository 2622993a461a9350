// Package daemon implements the murmur daemon: it wires every account's
// messaging client to an orchestrator, runs them until shutdown and
// serves health, metrics and the activity stream.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/nous-labs/murmur/internal/chance"
	"github.com/nous-labs/murmur/internal/channel/matrix"
	"github.com/nous-labs/murmur/internal/channel/slack"
	"github.com/nous-labs/murmur/internal/channel/twitch"
	"github.com/nous-labs/murmur/internal/config"
	"github.com/nous-labs/murmur/internal/credentials"
	"github.com/nous-labs/murmur/internal/generate"
	"github.com/nous-labs/murmur/internal/humanize"
	"github.com/nous-labs/murmur/internal/llm"
	"github.com/nous-labs/murmur/internal/memory"
	"github.com/nous-labs/murmur/internal/orchestrator"
	"github.com/nous-labs/murmur/internal/queue"
	"github.com/nous-labs/murmur/internal/telemetry"
	"github.com/nous-labs/murmur/pkg/channel"
	"github.com/nous-labs/murmur/pkg/events"
)

// dailyResetSpec runs the daily reset at midnight.
const dailyResetSpec = "0 0 * * *"

// account is one running messaging identity.
type account struct {
	name   string
	client channel.Client
	orch   *orchestrator.Orchestrator
}

// Daemon is the main murmur process.
type Daemon struct {
	config *config.Config

	store    memory.Store
	profiles *memory.Profiles
	pool     *credentials.Pool
	dup      *credentials.DuplicateGuard
	sched    *queue.Scheduler
	events   *events.Bus
	cron     *cron.Cron
	accounts []*account

	startedAt time.Time
	healthy   atomic.Bool
}

// ClientFactory builds the messaging client for an account.
type ClientFactory func(a config.AccountConfig) (channel.Client, error)

// New creates a daemon from cfg. The store is opened here; clients connect
// in Run. A nil factory builds the platform clients from cfg.
func New(ctx context.Context, cfg *config.Config, factory ClientFactory) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if factory == nil {
		factory = NewClient
	}

	store, err := openStore(ctx, cfg.Memory)
	if err != nil {
		return nil, err
	}

	rng := chance.New()
	d := &Daemon{
		config:    cfg,
		store:     store,
		profiles:  memory.NewProfiles(store),
		pool:      credentials.NewPool(cfg.EnabledModels(), cfg.AI.APIKeyRotation, rng),
		dup:       &credentials.DuplicateGuard{},
		sched:     queue.New(ctx, cfg.QueueConfig(), rng),
		events:    events.NewBus(),
		cron:      cron.New(),
		startedAt: time.Now(),
	}
	d.pool.OnCoolingChange(telemetry.SetCooling)

	gen := generate.New(
		cfg.GenerateConfig(),
		d.pool,
		cfg.Limiters(),
		d.dup,
		llm.NewCache(llm.NewProvider),
		humanize.New(cfg.HumanizeOptions(), rng),
		store,
	)

	for _, a := range cfg.Accounts {
		client, err := factory(a)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("account %s: %w", a.Name, err)
		}
		orch := orchestrator.New(a.Name, a.ChannelConfigs(), cfg.Settings(), orchestrator.Deps{
			Client:    client,
			Generator: gen,
			Queue:     d.sched,
			Store:     store,
			Profiles:  d.profiles,
			Style:     cfg.Style(),
			Rand:      rng,
			Events:    d.events,
		})
		d.accounts = append(d.accounts, &account{name: a.Name, client: client, orch: orch})
		slog.Info("account configured", "account", a.Name, "platform", a.Platform, "channels", len(a.Channels))
	}

	slog.Info("credential pool ready", "models", d.pool.Size(), "rotation", cfg.AI.APIKeyRotation)
	return d, nil
}

// NewClient builds the platform client named by a.Platform.
func NewClient(a config.AccountConfig) (channel.Client, error) {
	switch a.Platform {
	case config.PlatformMatrix:
		m := a.Matrix
		return matrix.New(matrix.Config{
			Account:      a.Name,
			Homeserver:   m.Homeserver,
			UserID:       m.UserID,
			Password:     m.Password,
			AccessToken:  m.AccessToken,
			ServerName:   m.ServerName,
			AllowedUsers: m.AllowedUsers,
			DataDir:      m.DataDir,
		}), nil
	case config.PlatformSlack:
		return slack.New(slack.Config{
			Account:  a.Name,
			BotToken: a.Slack.BotToken,
			AppToken: a.Slack.AppToken,
		}), nil
	case config.PlatformTwitch:
		ids := make([]string, 0, len(a.Channels))
		for _, ch := range a.Channels {
			ids = append(ids, ch.ID)
		}
		return twitch.New(twitch.Config{
			Account:    a.Name,
			Username:   a.Twitch.Username,
			OAuthToken: a.Twitch.OAuthToken,
			Channels:   ids,
			KnownBots:  a.Twitch.KnownBots,
		}), nil
	}
	return nil, fmt.Errorf("unknown platform %q", a.Platform)
}

func openStore(ctx context.Context, cfg config.MemoryConfig) (memory.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := memory.OpenPostgres(ctx, cfg.DSN, cfg.Retention.D())
		if err != nil {
			return nil, fmt.Errorf("open postgres memory: %w", err)
		}
		slog.Info("memory store ready", "driver", "postgres")
		return s, nil
	default:
		s, err := memory.OpenSQLite(cfg.Dir, cfg.Retention.D())
		if err != nil {
			return nil, fmt.Errorf("open sqlite memory: %w", err)
		}
		slog.Info("memory store ready", "driver", "sqlite", "dir", cfg.Dir)
		return s, nil
	}
}

// Run starts every account and blocks until ctx is cancelled or a client
// fails fatally.
func (d *Daemon) Run(ctx context.Context) error {
	telemetry.Init()
	defer d.close()

	for _, a := range d.accounts {
		if err := d.profiles.Load(ctx, a.name); err != nil {
			slog.Warn("profiles not loaded", "account", a.name, "error", err)
		}
	}

	if _, err := d.cron.AddFunc(dailyResetSpec, d.ResetDaily); err != nil {
		return fmt.Errorf("schedule daily reset: %w", err)
	}
	if g := d.config.Greeting; g.Enabled {
		spec, err := g.Spec()
		if err != nil {
			return err
		}
		if _, err := d.cron.AddFunc(spec, func() { d.Greet(g.Message) }); err != nil {
			return fmt.Errorf("schedule greeting: %w", err)
		}
		slog.Info("greeting scheduled", "time", g.Time, "timezone", g.Timezone)
	}
	d.cron.Start()
	defer d.cron.Stop()

	if d.config.HTTPAddr != "" {
		go d.serveHTTP(ctx, d.config.HTTPAddr)
	}
	if d.config.SocketPath != "" {
		go d.serveSocket(ctx, d.config.SocketPath)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range d.accounts {
		g.Go(func() error {
			slog.Info("starting client", "account", a.name, "platform", a.client.Name())
			if err := a.client.Start(gctx, a.orch.HandleMessage); err != nil {
				return fmt.Errorf("%s client: %w", a.name, err)
			}
			return nil
		})
		g.Go(func() error {
			a.orch.RunQuietSweep(gctx)
			return nil
		})
	}
	d.healthy.Store(true)
	slog.Info("murmur daemon running", "accounts", len(d.accounts))

	err := g.Wait()
	d.healthy.Store(false)
	if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("murmur daemon shutting down")
	return nil
}

// ResetDaily clears the cooling set, the duplicate guard and every
// account's daily counters.
func (d *Daemon) ResetDaily() {
	d.pool.Reset()
	d.dup.Reset()
	for _, a := range d.accounts {
		a.orch.ResetDaily()
	}
	d.events.Publish(events.Event{Type: events.TypeReset})
	slog.Info("daily counters reset")
}

// Greet posts text in every AI channel of every account.
func (d *Daemon) Greet(text string) {
	for _, a := range d.accounts {
		n := a.orch.Greet(text)
		slog.Info("greeting queued", "account", a.name, "channels", n)
	}
}

func (d *Daemon) close() {
	for _, a := range d.accounts {
		if err := a.client.Stop(); err != nil {
			slog.Warn("stop client", "account", a.name, "error", err)
		}
	}
	d.sched.Close()
	if err := d.store.Close(); err != nil {
		slog.Warn("close memory store", "error", err)
	}
}
