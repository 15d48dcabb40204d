package transfers

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor/executortest"
	"github.com/denysvitali/megacmd-runtime-go/pkg/session"
)

const header = "TYPE|TAG|SOURCEPATH|DESTINYPATH|PROGRESS|STATE\n"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// queue serves a settable transfers listing and records control calls
type queue struct {
	mu       sync.Mutex
	output   string
	controls []executortest.Call
}

func (q *queue) set(lines ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.output = header
	for _, l := range lines {
		q.output += l + "\n"
	}
}

func (q *queue) handle(_ context.Context, call executortest.Call) (*executor.Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(call.Args) > 0 && (call.Args[0] == "-c" || call.Args[0] == "-p" || call.Args[0] == "-r") {
		q.controls = append(q.controls, call)
		return executortest.OK("")
	}
	return executortest.OK(q.output)
}

func newMonitor(t *testing.T) (*Monitor, *queue, *executortest.Runner) {
	t.Helper()
	q := &queue{output: header}
	runner := executortest.New(q.handle)
	m := New(runner, session.ReadyGate("u@example.com"), time.Hour, time.Second, quietLogger())
	return m, q, runner
}

func TestVanishedTransferCompletesThenRetires(t *testing.T) {
	m, q, _ := newMonitor(t)
	ctx := context.Background()

	q.set("⇓|7|/movie.mkv|/tmp/movie.mkv|50.00% of 100.00 MB|ACTIVE")
	require.NoError(t, m.Poll(ctx))
	rec, ok := m.Get("7")
	require.True(t, ok)
	assert.Equal(t, models.TransferActive, rec.State)

	q.set()
	require.NoError(t, m.Poll(ctx))
	rec, ok = m.Get("7")
	require.True(t, ok)
	assert.Equal(t, models.TransferCompleted, rec.State)
	assert.Equal(t, rec.BytesTotal, rec.BytesDone)

	require.NoError(t, m.Poll(ctx))
	_, ok = m.Get("7")
	assert.False(t, ok)
	assert.Empty(t, m.Snapshot())
}

func TestRecordsAreNotDuplicated(t *testing.T) {
	m, q, _ := newMonitor(t)
	ctx := context.Background()

	q.set(
		"⇓|1|/a|/tmp/a|10.00% of 10 KB|ACTIVE",
		"⇑|2|/tmp/b|/docs|0/2048|QUEUED",
	)
	require.NoError(t, m.Poll(ctx))
	q.set(
		"⇓|1|/a|/tmp/a|60.00% of 10 KB|ACTIVE",
		"⇑|2|/tmp/b|/docs|1024/2048|ACTIVE",
	)
	require.NoError(t, m.Poll(ctx))

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "1", snap[0].ID)
	assert.Equal(t, int64(6144), snap[0].BytesDone)
	assert.Equal(t, models.TransferActive, snap[1].State)
	assert.Equal(t, int64(1024), snap[1].BytesDone)
}

func TestTerminalRecordShownOneCycle(t *testing.T) {
	m, q, _ := newMonitor(t)
	ctx := context.Background()

	q.set("⇓|3|/a|/tmp/a|40.00% of 10 B|ACTIVE")
	require.NoError(t, m.Poll(ctx))

	q.set("⇓|3|/a|/tmp/a|40.00% of 10 B|FAILED")
	require.NoError(t, m.Poll(ctx))
	rec, ok := m.Get("3")
	require.True(t, ok)
	assert.Equal(t, models.TransferFailed, rec.State)

	// still listed by the tool, but already retired
	require.NoError(t, m.Poll(ctx))
	_, ok = m.Get("3")
	assert.False(t, ok)
	require.NoError(t, m.Poll(ctx))
	assert.Empty(t, m.Snapshot())

	// the id can come back once the tool stops listing it
	q.set()
	require.NoError(t, m.Poll(ctx))
	q.set("⇓|3|/c|/tmp/c|0.00% of 10 B|QUEUED")
	require.NoError(t, m.Poll(ctx))
	rec, ok = m.Get("3")
	require.True(t, ok)
	assert.Equal(t, "/c", rec.SourcePath)
}

func TestTerminalStateIsSticky(t *testing.T) {
	m, q, _ := newMonitor(t)
	ctx := context.Background()

	q.set("⇓|4|/a|/tmp/a|-|CANCELLED")
	require.NoError(t, m.Poll(ctx))
	rec, _ := m.Get("4")
	assert.Equal(t, models.TransferCancelled, rec.State)

	snap := m.Reconcile([]models.TransferRecord{{ID: "4", State: models.TransferActive}})
	assert.Empty(t, snap)
}

func TestIllegalTransitionKeepsState(t *testing.T) {
	m, _, _ := newMonitor(t)

	m.Reconcile([]models.TransferRecord{{ID: "5", State: models.TransferActive, BytesTotal: 10}})
	snap := m.Reconcile([]models.TransferRecord{{ID: "5", State: models.TransferQueued, BytesTotal: 10, BytesDone: 4}})
	require.Len(t, snap, 1)
	assert.Equal(t, models.TransferActive, snap[0].State)
	assert.Equal(t, int64(4), snap[0].BytesDone)
}

func TestPollFailureKeepsLastKnown(t *testing.T) {
	m, q, runner := newMonitor(t)
	ctx := context.Background()

	q.set("⇓|1|/a|/tmp/a|10.00% of 10 KB|ACTIVE")
	require.NoError(t, m.Poll(ctx))

	runner.SetHandler(func(context.Context, executortest.Call) (*executor.Result, error) {
		return nil, models.NewOpError(models.ErrTimeout, "transfers", "timed out")
	})
	err := m.Poll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeout)

	rec, ok := m.Get("1")
	require.True(t, ok)
	assert.Equal(t, models.TransferActive, rec.State)
}

func TestPollInFlightIsSuppressed(t *testing.T) {
	m, _, runner := newMonitor(t)

	release := make(chan struct{})
	started := make(chan struct{})
	runner.SetHandler(func(ctx context.Context, call executortest.Call) (*executor.Result, error) {
		close(started)
		return executortest.Block(ctx, release, call.Command)
	})

	done := make(chan error, 1)
	go func() { done <- m.Poll(context.Background()) }()
	<-started

	assert.ErrorIs(t, m.Poll(context.Background()), ErrPollInFlight)
	assert.Equal(t, 1, runner.Count("transfers"))

	close(release)
	require.NoError(t, <-done)
}

func TestPollRequiresSession(t *testing.T) {
	q := &queue{output: header}
	runner := executortest.New(q.handle)
	m := New(runner, session.NewGate(), time.Hour, time.Second, quietLogger())

	err := m.Poll(context.Background())
	assert.ErrorIs(t, err, models.ErrNotReady)
	assert.Zero(t, runner.Count("transfers"))
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	m, q, _ := newMonitor(t)

	ch, unsubscribe := m.Subscribe(4)
	assert.Equal(t, 1, m.SubscriberCount())

	q.set("⇑|9|/tmp/x|/docs|0/10|QUEUED")
	require.NoError(t, m.Poll(context.Background()))

	select {
	case snap := <-ch:
		require.Len(t, snap, 1)
		assert.Equal(t, "9", snap[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	unsubscribe()
	unsubscribe()
	assert.Zero(t, m.SubscriberCount())
	_, open := <-ch
	assert.False(t, open)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	m, q, _ := newMonitor(t)
	_, unsubscribe := m.Subscribe(1)
	defer unsubscribe()

	q.set("⇑|9|/tmp/x|/docs|0/10|QUEUED")
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Poll(context.Background()))
	}
}

func TestControlSendsActionAndRefreshes(t *testing.T) {
	m, q, runner := newMonitor(t)
	ctx := context.Background()

	q.set("⇓|7|/a|/tmp/a|10.00% of 10 B|ACTIVE")
	require.NoError(t, m.Pause(ctx, "7"))
	require.NoError(t, m.Resume(ctx, "7"))
	require.NoError(t, m.Cancel(ctx, "7"))

	q.mu.Lock()
	controls := append([]executortest.Call(nil), q.controls...)
	q.mu.Unlock()
	require.Len(t, controls, 3)
	assert.Equal(t, "transfers -p 7", controls[0].String())
	assert.Equal(t, "transfers -r 7", controls[1].String())
	assert.Equal(t, "transfers -c 7", controls[2].String())

	// every control is followed by a poll
	assert.Equal(t, 6, runner.Count("transfers"))
	_, ok := m.Get("7")
	assert.True(t, ok)

	assert.ErrorIs(t, m.Cancel(ctx, ""), models.ErrInvalidRequest)
}

func TestStartStop(t *testing.T) {
	q := &queue{}
	q.set("⇑|9|/tmp/x|/docs|0/10|QUEUED")
	runner := executortest.New(q.handle)
	m := New(runner, session.ReadyGate("u@example.com"), 10*time.Millisecond, time.Second, quietLogger())

	m.Start(context.Background())
	m.Start(context.Background())
	assert.Eventually(t, func() bool {
		_, ok := m.Get("9")
		return ok
	}, time.Second, 5*time.Millisecond)
	m.Stop()
	m.Stop()

	n := runner.Count("transfers")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, runner.Count("transfers"))
}

func TestStopCancelsInFlightPoll(t *testing.T) {
	started := make(chan struct{}, 1)
	runner := executortest.New(func(ctx context.Context, _ executortest.Call) (*executor.Result, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, &models.OpError{Kind: models.ErrCancelled, Op: "transfers", Err: ctx.Err()}
	})
	m := New(runner, session.ReadyGate("u@example.com"), 5*time.Millisecond, time.Minute, quietLogger())

	m.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return while a poll was blocked")
	}
	assert.Empty(t, m.Snapshot())
}
