package selection

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

// Submitter runs an operation request. dispatcher.Dispatcher satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req models.OperationRequest) (*models.OperationOutcome, error)
}

// BuildRequest turns the resolved selection into a single multi-path
// request. Paths unknown to the resolver are pruned first.
func (c *Coordinator) BuildRequest(r Resolver, apply models.ApplySelectionRequest) (models.OperationRequest, []string, error) {
	kind, err := models.ParseOperationKind(string(apply.Kind))
	if err != nil {
		return models.OperationRequest{}, nil, models.NewOpError(models.ErrInvalidRequest, "selection", err.Error())
	}
	switch kind {
	case models.OpUpload, models.OpRename, models.OpMkdir:
		// these take local paths, a single source or paths that do not exist yet
		return models.OperationRequest{}, nil, models.NewOpError(models.ErrInvalidRequest, "selection",
			fmt.Sprintf("%s cannot be applied to a selection", kind))
	}

	kept, dropped := c.Resolve(r)
	if len(kept) == 0 {
		return models.OperationRequest{}, dropped, models.NewOpError(models.ErrInvalidRequest, "selection",
			"no marked path is known to the directory cache")
	}
	return models.OperationRequest{
		Kind:        kind,
		Sources:     kept,
		Destination: apply.Destination,
		LocalPath:   apply.LocalPath,
	}, dropped, nil
}

// Apply resolves the selection, submits one request covering every
// surviving path. With Clear set, paths that succeeded are unmarked so a
// retry only covers the failures.
func (c *Coordinator) Apply(ctx context.Context, r Resolver, s Submitter, apply models.ApplySelectionRequest, logger *logrus.Logger) (*models.OperationOutcome, error) {
	req, dropped, err := c.BuildRequest(r, apply)
	if len(dropped) > 0 {
		logger.WithFields(logrus.Fields{
			"dropped": dropped,
			"kind":    apply.Kind,
		}).Info("Dropped stale paths from selection")
	}
	if err != nil {
		return nil, err
	}

	outcome, err := s.Submit(ctx, req)
	if outcome != nil && apply.Clear {
		c.Unmark(outcome.Succeeded...)
	}
	return outcome, err
}
