package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nous-labs/murmur/internal/chance"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastConfig() Config {
	return Config{Enabled: true, TaskTimeout: time.Second}
}

func TestFIFOPerChannelUnderConcurrentEnqueue(t *testing.T) {
	s := New(context.Background(), fastConfig(), chance.NewSeeded(1))
	defer s.Close()

	const perChannel = 25
	channels := []string{"alpha", "beta", "gamma"}

	var mu sync.Mutex
	got := make(map[string][]int)
	var done sync.WaitGroup
	done.Add(perChannel * len(channels))

	var producers sync.WaitGroup
	for _, ch := range channels {
		producers.Add(1)
		go func(ch string) {
			defer producers.Done()
			for i := 0; i < perChannel; i++ {
				i := i
				err := s.Enqueue(Task{Channel: ch, Run: func(ctx context.Context) error {
					defer done.Done()
					mu.Lock()
					got[ch] = append(got[ch], i)
					mu.Unlock()
					return nil
				}})
				assert.NoError(t, err)
			}
		}(ch)
	}
	producers.Wait()
	done.Wait()

	for _, ch := range channels {
		want := make([]int, perChannel)
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, got[ch], "channel %s", ch)
	}
	assert.Eventually(t, func() bool { return s.Channels() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSingleTaskInFlightPerChannel(t *testing.T) {
	s := New(context.Background(), fastConfig(), chance.NewSeeded(1))
	defer s.Close()

	var inFlight, maxSeen atomic.Int32
	var done sync.WaitGroup
	for i := 0; i < 10; i++ {
		done.Add(1)
		require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(ctx context.Context) error {
			defer done.Done()
			n := inFlight.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}}))
	}
	done.Wait()
	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestChannelsRunConcurrently(t *testing.T) {
	s := New(context.Background(), fastConfig(), chance.NewSeeded(1))
	defer s.Close()

	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	finished := make(chan string, 2)

	for _, ch := range []string{"one", "two"} {
		ch := ch
		require.NoError(t, s.Enqueue(Task{Channel: ch, Run: func(ctx context.Context) error {
			started.Done()
			<-release
			finished <- ch
			return nil
		}}))
	}

	// both workers reach their task before either is released
	waitOrFail(t, &started)
	close(release)
	assert.ElementsMatch(t, []string{"one", "two"}, []string{<-finished, <-finished})
}

func TestLenCountsInFlightAndQueueDrains(t *testing.T) {
	s := New(context.Background(), fastConfig(), chance.NewSeeded(1))
	defer s.Close()

	release := make(chan struct{})
	require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(ctx context.Context) error {
		<-release
		return nil
	}}))
	require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(ctx context.Context) error { return nil }}))

	assert.Equal(t, 2, s.Len("c"))
	assert.Equal(t, 0, s.Len("other"))
	close(release)
	assert.Eventually(t, func() bool { return s.Len("c") == 0 && s.Channels() == 0 }, time.Second, 5*time.Millisecond)
}

func TestDisabledRunsImmediately(t *testing.T) {
	cfg := fastConfig()
	cfg.Enabled = false
	cfg.PreDelayMin, cfg.PreDelayMax = time.Hour, time.Hour
	s := New(context.Background(), cfg, chance.NewSeeded(1))
	defer s.Close()

	ran := false
	require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(ctx context.Context) error {
		ran = true
		return nil
	}}))
	assert.True(t, ran)
	assert.Equal(t, 0, s.Channels())
}

func TestTimeoutAndFailureDoNotStallQueue(t *testing.T) {
	cfg := fastConfig()
	cfg.TaskTimeout = 20 * time.Millisecond
	s := New(context.Background(), cfg, chance.NewSeeded(1))
	defer s.Close()

	var order []string
	var mu sync.Mutex
	record := func(v string) {
		mu.Lock()
		order = append(order, v)
		mu.Unlock()
	}
	done := make(chan struct{})

	require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(ctx context.Context) error {
		<-ctx.Done()
		record("timed out")
		return ctx.Err()
	}}))
	require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(ctx context.Context) error {
		record("failed")
		return errors.New("provider down")
	}}))
	require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(ctx context.Context) error {
		panic("boom")
	}}))
	require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(ctx context.Context) error {
		record("delivered")
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stalled")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"timed out", "failed", "delivered"}, order)
}

func TestTaskIgnoringContextIsAbandoned(t *testing.T) {
	cfg := fastConfig()
	cfg.TaskTimeout = 20 * time.Millisecond
	s := New(context.Background(), cfg, chance.NewSeeded(1))
	defer s.Close()

	stuck := make(chan struct{})
	defer close(stuck)
	next := make(chan struct{})

	require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(context.Context) error {
		<-stuck
		return nil
	}}))
	require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(context.Context) error {
		close(next)
		return nil
	}}))

	select {
	case <-next:
	case <-time.After(time.Second):
		t.Fatalf("next task still waiting behind a stuck one; Len=%d", s.Len("c"))
	}
}

func TestPacingDelaysApplied(t *testing.T) {
	cfg := fastConfig()
	cfg.PreDelayMin, cfg.PreDelayMax = 30*time.Millisecond, 30*time.Millisecond
	cfg.PostDelayMin, cfg.PostDelayMax = 20*time.Millisecond, 20*time.Millisecond
	s := New(context.Background(), cfg, chance.NewSeeded(1))
	defer s.Close()

	var stamps []time.Time
	var mu sync.Mutex
	var done sync.WaitGroup
	start := time.Now()
	for i := 0; i < 2; i++ {
		done.Add(1)
		require.NoError(t, s.Enqueue(Task{Channel: "c", Run: func(ctx context.Context) error {
			defer done.Done()
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
			return nil
		}}))
	}
	done.Wait()

	require.Len(t, stamps, 2)
	assert.GreaterOrEqual(t, stamps[0].Sub(start), 30*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 50*time.Millisecond)
}

func TestCloseDropsPendingAndRejects(t *testing.T) {
	cfg := fastConfig()
	cfg.PreDelayMin, cfg.PreDelayMax = time.Hour, time.Hour
	s := New(context.Background(), cfg, chance.NewSeeded(1))

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Enqueue(Task{Channel: fmt.Sprintf("c%d", i%2), Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}
	s.Close()
	assert.Equal(t, int32(0), ran.Load())
	assert.Equal(t, 0, s.Channels())
	assert.ErrorIs(t, s.Enqueue(Task{Channel: "c0", Run: func(ctx context.Context) error { return nil }}), ErrClosed)
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
	}
}
