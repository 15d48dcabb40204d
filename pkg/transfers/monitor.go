// Package transfers reconciles the tool's transfer queue into a
// de-duplicated set of TransferRecords that callers can read or subscribe to.
package transfers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
	"github.com/denysvitali/megacmd-runtime-go/pkg/megacmd"
	"github.com/denysvitali/megacmd-runtime-go/pkg/metrics"
)

// ErrPollInFlight is returned when a poll is requested while another runs
var ErrPollInFlight = errors.New("transfer poll already in flight")

// Readiness is satisfied by session.Gate
type Readiness interface {
	Err() error
}

type tracked struct {
	rec models.TransferRecord
	// terminalAt is the cycle in which the record was first seen terminal
	terminalAt uint64
}

// Monitor polls transfer state on a fixed interval
type Monitor struct {
	runner   executor.Runner
	ready    Readiness
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
	tracer   trace.Tracer

	polling atomic.Bool

	mu      sync.RWMutex
	cycle   uint64
	records map[string]*tracked
	order   []string
	// retired ids were removed after their terminal cycle but may still be
	// listed by the tool; they are ignored until they disappear
	retired map[string]struct{}
	subs    map[chan []models.TransferRecord]struct{}

	lifecycle sync.Mutex
	stopCh    chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a monitor. It does not poll until Start or Poll is called.
func New(runner executor.Runner, ready Readiness, interval, timeout time.Duration, logger *logrus.Logger) *Monitor {
	return &Monitor{
		runner:   runner,
		ready:    ready,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		tracer:   otel.Tracer("megacmd-runtime"),
		records:  make(map[string]*tracked),
		retired:  make(map[string]struct{}),
		subs:     make(map[chan []models.TransferRecord]struct{}),
	}
}

// Start begins polling in the background until Stop is called or ctx ends
func (m *Monitor) Start(ctx context.Context) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.stopCh != nil {
		return
	}
	m.stopCh = make(chan struct{})
	stop := m.stopCh
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.pollLoop(ctx, stop)
	m.logger.WithField("interval", m.interval).Info("Transfer monitor started")
}

// Stop halts polling, cancels in-flight polls and waits for them to return
func (m *Monitor) Stop() {
	m.lifecycle.Lock()
	if m.stopCh == nil {
		m.lifecycle.Unlock()
		return
	}
	close(m.stopCh)
	cancel := m.cancel
	m.stopCh, m.cancel = nil, nil
	m.lifecycle.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("Transfer monitor stopped")
}

func (m *Monitor) pollLoop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			// Each tick polls independently; a tick that lands while the
			// previous poll still runs is dropped by Poll itself.
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				if err := m.Poll(ctx); err != nil && !errors.Is(err, ErrPollInFlight) {
					m.logger.WithError(err).Debug("Transfer poll failed")
				}
			}()
		}
	}
}

// Poll runs one reconciliation cycle. It returns ErrPollInFlight without
// doing anything when another poll is running.
func (m *Monitor) Poll(ctx context.Context) error {
	if !m.polling.CompareAndSwap(false, true) {
		metrics.RecordPoll("skipped")
		return ErrPollInFlight
	}
	defer m.polling.Store(false)

	if m.ready != nil {
		if err := m.ready.Err(); err != nil {
			return err
		}
	}

	ctx, span := m.tracer.Start(ctx, "transfers.poll")
	defer span.End()

	inv := megacmd.Transfers()
	res, err := m.runner.Run(ctx, inv.Command, inv.Args, m.timeout)
	if err == nil {
		if opErr := megacmd.ResultError(inv, res); opErr != nil {
			err = opErr
		}
	}
	if err != nil {
		span.RecordError(err)
		metrics.RecordPoll("error")
		return err
	}

	parsed := megacmd.ParseTransfers(res.Stdout)
	metrics.RecordSkippedLines("transfers", parsed.Skipped)
	if parsed.Skipped > 0 {
		m.logger.WithFields(logrus.Fields{
			"skipped": parsed.Skipped,
			"lines":   parsed.SkippedLines,
		}).Warn("Skipped unparsable transfer lines")
	}

	snapshot := m.Reconcile(parsed.Records)
	span.SetAttributes(attribute.Int("transfers", len(snapshot)))
	metrics.RecordPoll("ok")
	return nil
}

// Reconcile diffs one poll's observations against the held set and returns
// the resulting snapshot. Records that vanish while live are marked
// Completed; terminal records are kept for exactly one more cycle.
func (m *Monitor) Reconcile(observed []models.TransferRecord) []models.TransferRecord {
	m.mu.Lock()
	m.cycle++
	cycle := m.cycle

	seen := make(map[string]bool, len(observed))
	for _, o := range observed {
		seen[o.ID] = true
	}

	// drop records that have already been shown terminal for a full cycle
	kept := m.order[:0]
	for _, id := range m.order {
		t := m.records[id]
		if t.terminalAt != 0 && t.terminalAt < cycle {
			delete(m.records, id)
			m.retired[id] = struct{}{}
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept

	for _, o := range observed {
		if _, ok := m.retired[o.ID]; ok {
			continue
		}
		t, ok := m.records[o.ID]
		if !ok {
			t = &tracked{rec: o}
			m.records[o.ID] = t
			m.order = append(m.order, o.ID)
			if o.State.Terminal() {
				t.terminalAt = cycle
			}
			continue
		}
		if t.rec.State.Terminal() {
			continue
		}
		next := o
		if !t.rec.State.CanTransition(o.State) {
			m.logger.WithFields(logrus.Fields{
				"transfer_id": o.ID,
				"from":        t.rec.State,
				"to":          o.State,
			}).Debug("Ignoring illegal transfer state change")
			next.State = t.rec.State
		}
		t.rec = next
		if next.State.Terminal() {
			t.terminalAt = cycle
		}
	}

	for _, id := range m.order {
		t := m.records[id]
		if seen[id] || t.rec.State.Terminal() {
			continue
		}
		t.rec.State = models.TransferCompleted
		if t.rec.BytesTotal > 0 {
			t.rec.BytesDone = t.rec.BytesTotal
		}
		t.terminalAt = cycle
	}

	for id := range m.retired {
		if !seen[id] {
			delete(m.retired, id)
		}
	}

	snapshot := m.snapshotLocked()
	subs := make([]chan []models.TransferRecord, 0, len(m.subs))
	for ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	m.publish(subs, snapshot)
	recordCounts(snapshot)
	return snapshot
}

func (m *Monitor) snapshotLocked() []models.TransferRecord {
	out := make([]models.TransferRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id].rec)
	}
	return out
}

// Snapshot returns the last reconciled set in first-seen order
func (m *Monitor) Snapshot() []models.TransferRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Get returns one record by id
func (m *Monitor) Get(id string) (models.TransferRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.records[id]
	if !ok {
		return models.TransferRecord{}, false
	}
	return t.rec, true
}

func recordCounts(snapshot []models.TransferRecord) {
	counts := make(map[string]int)
	for _, r := range snapshot {
		counts[string(r.State)]++
	}
	metrics.SetTransferCounts(counts)
}
