package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/app"
	"github.com/denysvitali/megacmd-runtime-go/pkg/transfers"
)

// transferUI renders one progress bar per transfer. Without a terminal it
// prints a line whenever a transfer changes state instead.
type transferUI struct {
	progress   *mpb.Progress
	isTerminal bool
	bars       map[string]*transferBar
	states     map[string]models.TransferState
}

type transferBar struct {
	bar   *mpb.Bar
	state atomic.Value // models.TransferState
}

func newTransferUI(ctx context.Context) *transferUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		p = mpb.NewWithContext(ctx,
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(60),
		)
	} else {
		p = mpb.NewWithContext(ctx, mpb.WithOutput(io.Discard))
	}

	return &transferUI{
		progress:   p,
		isTerminal: isTerminal,
		bars:       make(map[string]*transferBar),
		states:     make(map[string]models.TransferState),
	}
}

func arrow(d models.Direction) string {
	if d == models.DirectionUp {
		return "⇑"
	}
	return "⇓"
}

func (u *transferUI) update(records []models.TransferRecord) {
	for _, r := range records {
		if !u.isTerminal {
			if u.states[r.ID] != r.State {
				u.states[r.ID] = r.State
				fmt.Printf("%s %s %-9s %5.1f%% %s -> %s\n", arrow(r.Direction), r.ID, r.State, r.Percent(), r.SourcePath, r.DestPath)
			}
			continue
		}

		tb, ok := u.bars[r.ID]
		if !ok {
			if r.State.Terminal() {
				continue
			}
			tb = u.addBar(r)
		}
		tb.state.Store(r.State)

		if r.BytesTotal > 0 {
			tb.bar.SetTotal(r.BytesTotal, false)
		}
		tb.bar.SetCurrent(r.BytesDone)

		switch r.State {
		case models.TransferCompleted:
			tb.bar.SetTotal(-1, true)
			delete(u.bars, r.ID)
		case models.TransferFailed, models.TransferCancelled:
			tb.bar.Abort(false)
			delete(u.bars, r.ID)
		}
	}
}

func (u *transferUI) addBar(r models.TransferRecord) *transferBar {
	total := r.BytesTotal
	if total <= 0 {
		total = 1
	}
	name := path.Base(r.SourcePath)
	tb := &transferBar{}
	tb.state.Store(r.State)

	tb.bar = u.progress.New(total,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("%s %s %s", arrow(r.Direction), r.ID, name), decor.WCSyncSpaceR),
			decor.Any(func(decor.Statistics) string {
				return string(tb.state.Load().(models.TransferState))
			}, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
		),
	)
	u.bars[r.ID] = tb
	return tb
}

func (u *transferUI) close() {
	for id, tb := range u.bars {
		tb.bar.Abort(false)
		delete(u.bars, id)
	}
	u.progress.Wait()
}

func pending(records []models.TransferRecord) int {
	n := 0
	for _, r := range records {
		if !r.State.Terminal() {
			n++
		}
	}
	return n
}

// watchTransfers polls the queue and renders it until every transfer has
// finished, or until ctx ends when follow is set.
func watchTransfers(ctx context.Context, rt *app.App, interval time.Duration, follow bool) error {
	snapshots, unsubscribe := rt.Monitor.Subscribe(4)
	defer unsubscribe()

	ui := newTransferUI(ctx)
	defer ui.close()

	poll := func() {
		if err := rt.Monitor.Poll(ctx); err != nil && !errors.Is(err, transfers.ErrPollInFlight) {
			GetLogger().WithError(err).Warn("Transfer poll failed")
		}
	}
	poll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case records, ok := <-snapshots:
			if !ok {
				return nil
			}
			ui.update(records)
			if !follow && pending(records) == 0 {
				if len(records) == 0 {
					fmt.Fprintln(os.Stderr, "No transfers")
				}
				return nil
			}
		case <-ticker.C:
			poll()
		}
	}
}
