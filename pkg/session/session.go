// Package session models the logged-in precondition that every remote
// component requires before its first use.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
	"github.com/denysvitali/megacmd-runtime-go/pkg/megacmd"
)

// Gate is closed until MarkReady is called once
type Gate struct {
	mu      sync.RWMutex
	account string
	ready   chan struct{}
	once    sync.Once
}

// NewGate returns a closed gate
func NewGate() *Gate {
	return &Gate{ready: make(chan struct{})}
}

// ReadyGate returns a gate that is already open for account
func ReadyGate(account string) *Gate {
	g := NewGate()
	g.MarkReady(account)
	return g
}

// MarkReady opens the gate. Later calls are ignored.
func (g *Gate) MarkReady(account string) {
	g.once.Do(func() {
		g.mu.Lock()
		g.account = account
		g.mu.Unlock()
		close(g.ready)
	})
}

// IsReady reports whether the gate is open
func (g *Gate) IsReady() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// Account returns the account the gate was opened for
func (g *Gate) Account() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.account
}

// Err returns nil when open and a NotReady error otherwise
func (g *Gate) Err() error {
	if g == nil || g.IsReady() {
		return nil
	}
	return &models.OpError{Kind: models.ErrNotReady, Diagnostic: "login has not been confirmed"}
}

// Wait blocks until the gate opens or ctx is done
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return &models.OpError{Kind: models.ErrCancelled, Err: ctx.Err()}
	}
}

// CheckLogin runs whoami and returns the logged in account
func CheckLogin(ctx context.Context, runner executor.Runner, timeout time.Duration, logger *logrus.Logger) (string, error) {
	inv := megacmd.WhoAmI()
	res, err := runner.Run(ctx, inv.Command, inv.Args, timeout)
	if err != nil {
		return "", err
	}
	if opErr := megacmd.ResultError(inv, res); opErr != nil {
		logger.WithField("diagnostic", opErr.Diagnostic).Info("Not logged in")
		return "", opErr
	}
	account, ok := megacmd.ParseWhoAmI(res.Stdout)
	if !ok {
		return "", &models.OpError{Kind: models.ErrPermissionDenied, Op: inv.Command, Diagnostic: res.Stdout}
	}
	logger.WithField("account", account).Info("Logged in")
	return account, nil
}

// Open checks the login and opens gate on success
func Open(ctx context.Context, gate *Gate, runner executor.Runner, timeout time.Duration, logger *logrus.Logger) error {
	account, err := CheckLogin(ctx, runner, timeout, logger)
	if err != nil {
		return err
	}
	gate.MarkReady(account)
	return nil
}
