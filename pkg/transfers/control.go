package transfers

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/megacmd"
)

// Cancel asks the tool to cancel a transfer
func (m *Monitor) Cancel(ctx context.Context, id string) error {
	return m.control(ctx, megacmd.TransferCancel, id)
}

// Pause asks the tool to pause a transfer
func (m *Monitor) Pause(ctx context.Context, id string) error {
	return m.control(ctx, megacmd.TransferPause, id)
}

// Resume asks the tool to resume a paused transfer
func (m *Monitor) Resume(ctx context.Context, id string) error {
	return m.control(ctx, megacmd.TransferResume, id)
}

func (m *Monitor) control(ctx context.Context, action megacmd.TransferAction, id string) error {
	if m.ready != nil {
		if err := m.ready.Err(); err != nil {
			return err
		}
	}
	if id == "" {
		return models.NewOpError(models.ErrInvalidRequest, "transfers", "transfer id is required")
	}

	inv := megacmd.ControlTransfer(action, id)
	res, err := m.runner.Run(ctx, inv.Command, inv.Args, m.timeout)
	if err != nil {
		return err
	}
	if opErr := megacmd.ResultError(inv, res, id); opErr != nil {
		return opErr
	}
	m.logger.WithFields(logrus.Fields{"transfer_id": id, "action": string(action)}).Info("Transfer control sent")

	// refresh the view now rather than waiting for the next tick
	if err := m.Poll(ctx); err != nil && !errors.Is(err, ErrPollInFlight) {
		m.logger.WithError(err).Debug("Post-control poll failed")
	}
	return nil
}
