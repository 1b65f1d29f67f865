package impact

import (
	"context"
	"errors"
	"sync"
)

// GateState is what the confirmation dialog currently allows.
type GateState string

const (
	GateClosed              GateState = "closed"
	GateBlocked             GateState = "blocked"
	GatePendingConfirmation GateState = "pending_confirmation"
	GateReady               GateState = "ready"
	GateCommitting          GateState = "committing"
)

var (
	ErrGateBlocked          = errors.New("critical stock impact blocks commit")
	ErrConfirmationRequired = errors.New("stock impact must be acknowledged before commit")
	ErrCommitInFlight       = errors.New("commit already in progress")
	ErrGateClosed           = errors.New("confirmation gate is closed")
)

// Gate is the commit gate for one preview. It is safe for concurrent use.
type Gate struct {
	mu           sync.Mutex
	preview      *Preview
	open         bool
	acknowledged bool
	committing   bool
}

// NewGate returns a closed gate; Open shows a preview on it.
func NewGate() *Gate {
	return &Gate{}
}

// Open shows a preview. The acknowledgement always resets so a stale confirmation
// cannot authorize a newer set of impacts.
func (g *Gate) Open(p *Preview) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.preview = p
	g.open = true
	g.acknowledged = false
	g.committing = false
}

// Close dismisses the gate. It is ignored while a commit is in flight.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.committing {
		return
	}
	g.open = false
}

// Acknowledge sets the confirmation checkbox. Has no effect while closed or committing.
func (g *Gate) Acknowledge(checked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open || g.committing {
		return
	}
	g.acknowledged = checked
}

// Preview returns the preview shown on the gate, nil before the first Open.
func (g *Gate) Preview() *Preview {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.preview
}

func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

func (g *Gate) stateLocked() GateState {
	switch {
	case !g.open:
		return GateClosed
	case g.committing:
		return GateCommitting
	case g.preview != nil && g.preview.HasCritical():
		return GateBlocked
	case g.preview == nil || len(g.preview.Impacts) == 0 || g.acknowledged:
		return GateReady
	default:
		return GatePendingConfirmation
	}
}

// CanConfirm reports whether the confirm action is enabled.
func (g *Gate) CanConfirm() bool {
	return g.State() == GateReady
}

// Commit runs fn when the gate is ready. On success the gate closes; on failure
// or panic the controls are re-enabled and the previous state is kept.
func (g *Gate) Commit(ctx context.Context, fn func(ctx context.Context) error) error {
	g.mu.Lock()
	switch g.stateLocked() {
	case GateClosed:
		g.mu.Unlock()
		return ErrGateClosed
	case GateCommitting:
		g.mu.Unlock()
		return ErrCommitInFlight
	case GateBlocked:
		g.mu.Unlock()
		return ErrGateBlocked
	case GatePendingConfirmation:
		g.mu.Unlock()
		return ErrConfirmationRequired
	}
	g.committing = true
	g.mu.Unlock()

	committed := false
	defer func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.committing = false
		if committed {
			g.open = false
		}
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}
