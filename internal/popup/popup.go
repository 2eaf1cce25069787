// Package popup holds the confirmation dialog state for a pending suggestion.
package popup

import (
	"context"
	"sync"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
)

// Adder persists a suggestion. store.Client satisfies it.
type Adder interface {
	Add(ctx context.Context, f model.Fields) error
}

// State is a snapshot of the controller.
type State struct {
	Visible bool              `json:"visible"`
	Pending *model.Suggestion `json:"pending,omitempty"`
}

// Controller owns the single pending-suggestion slot. The slot is set if
// and only if the popup is visible.
type Controller struct {
	mu      sync.Mutex
	pending *model.Suggestion
}

// New returns a hidden controller.
func New() *Controller {
	return &Controller{}
}

// Show makes s the pending suggestion and shows the popup. A suggestion
// already pending is replaced.
func (c *Controller) Show(s model.Suggestion) {
	c.mu.Lock()
	replaced := c.pending != nil
	c.pending = &s
	c.mu.Unlock()
	appLog.Debug("popup shown", "name", s.Name, "replaced", replaced)
}

// Dismiss hides the popup and drops the pending suggestion.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// Confirm persists the pending suggestion. It reports whether an add call
// was issued. On success the popup is hidden; on failure it stays visible
// with the suggestion retained so the user can retry.
func (c *Controller) Confirm(ctx context.Context, adder Adder) (bool, error) {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return false, nil
	}
	s := *c.pending
	c.mu.Unlock()

	if err := adder.Add(ctx, s); err != nil {
		appLog.Error("popup confirm: add failed", err, "name", s.Name)
		return true, err
	}

	c.mu.Lock()
	// Only clear if nothing newer replaced the suggestion while adding.
	if c.pending != nil && *c.pending == s {
		c.pending = nil
	}
	c.mu.Unlock()
	return true, nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return State{}
	}
	s := *c.pending
	return State{Visible: true, Pending: &s}
}
