// Package widget is the schedule widget's logic, independent of any UI
// binding. Each handler takes structured input and returns an Effect that
// describes what the UI should do.
package widget

import (
	"context"
	"errors"
	"strings"
	"sync"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
	"schedwidget/internal/popup"
	"schedwidget/internal/render"
	"schedwidget/internal/suggest"
)

// ErrValidation is wrapped into Effect.Err for a blocked manual add.
var ErrValidation = errors.New("please fill in all required fields")

// Store is the backend surface the widget needs. store.Client satisfies it.
type Store interface {
	List(ctx context.Context) ([]model.Item, error)
	Add(ctx context.Context, f model.Fields) error
	Remove(ctx context.Context, id string) error
}

// Confirmer answers a yes/no prompt.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// DeletePrompt is the question asked before a delete.
const DeletePrompt = "Are you sure you want to delete this schedule item?"

// Effect describes the UI consequences of a handler.
type Effect struct {
	// Alert is a blocking message for the user.
	Alert string `json:"alert,omitempty"`
	// DisplayHTML is the escaped response text, set by HandleResponse.
	DisplayHTML *string `json:"display_html,omitempty"`
	// ListChanged means the visible list was replaced.
	ListChanged bool `json:"list_changed"`
	// ResetForm means the manual entry form should be cleared.
	ResetForm bool `json:"reset_form"`
	// Requested reports whether a backend call was issued.
	Requested bool        `json:"requested"`
	Popup     popup.State `json:"popup"`
	Err       error       `json:"-"`
	// RefreshErr is set when a change went through but the follow-up list
	// fetch failed. Err stays nil and the visible list is stale.
	RefreshErr error `json:"-"`
}

// Widget owns the visible list snapshot and the popup controller.
type Widget struct {
	store Store
	popup *popup.Controller

	mu    sync.RWMutex
	items []model.Item
}

// New creates a widget with an empty list and a hidden popup.
func New(store Store) *Widget {
	return &Widget{
		store: store,
		popup: popup.New(),
		items: []model.Item{},
	}
}

// Popup exposes the controller.
func (w *Widget) Popup() *popup.Controller { return w.popup }

// Snapshot returns a copy of the visible list.
func (w *Widget) Snapshot() []model.Item {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.Item, len(w.items))
	copy(out, w.items)
	return out
}

// ListHTML renders the visible list.
func (w *Widget) ListHTML() (string, error) {
	return render.ListHTML(w.Snapshot())
}

// ReplaceList swaps the visible list for items. The list is never merged.
func (w *Widget) ReplaceList(items []model.Item) {
	cp := make([]model.Item, len(items))
	copy(cp, items)
	w.mu.Lock()
	w.items = cp
	w.mu.Unlock()
}

// Refresh fetches the list and replaces the snapshot. On failure the
// current list is kept.
func (w *Widget) Refresh(ctx context.Context) Effect {
	items, err := w.store.List(ctx)
	if err != nil {
		appLog.Error("error fetching schedule items", err)
		return w.effect(Effect{Requested: true, Err: err})
	}
	w.ReplaceList(items)
	return w.effect(Effect{Requested: true, ListChanged: true})
}

// HandleResponse scans assistant text for a schedule hint. A hint shows
// the popup; the returned display text has it removed and is escaped.
func (w *Widget) HandleResponse(text string) Effect {
	res := suggest.Extract(text)
	if res.Suggestion != nil {
		w.popup.Show(*res.Suggestion)
	}
	display := render.ResponseHTML(res.DisplayText)
	return w.effect(Effect{DisplayHTML: &display})
}

// RaiseReminder shows the popup for an item whose start time has arrived.
func (w *Widget) RaiseReminder(it model.Item) {
	w.popup.Show(it.Fields())
}

// ConfirmSuggestion adds the pending suggestion and refreshes the list.
// With nothing pending no call is made.
func (w *Widget) ConfirmSuggestion(ctx context.Context) Effect {
	called, err := w.popup.Confirm(ctx, w.store)
	if !called {
		return w.effect(Effect{})
	}
	if err != nil {
		return w.effect(Effect{Requested: true, Err: err})
	}
	return w.refreshAfterChange(ctx)
}

// refreshAfterChange refreshes the list after a successful add or delete.
// A fetch failure does not undo the change, so it lands in RefreshErr.
func (w *Widget) refreshAfterChange(ctx context.Context) Effect {
	eff := w.Refresh(ctx)
	eff.Requested = true
	eff.RefreshErr, eff.Err = eff.Err, nil
	return eff
}

// DismissSuggestion hides the popup and clears the pending suggestion.
func (w *Widget) DismissSuggestion() Effect {
	w.popup.Dismiss()
	return w.effect(Effect{})
}

// SubmitForm adds a manually entered item. Blank name, date or time block
// the call and produce an alert.
func (w *Widget) SubmitForm(ctx context.Context, f model.Fields) Effect {
	if missing := f.Missing(); len(missing) > 0 {
		appLog.Debug("manual add blocked", "missing", strings.Join(missing, ","))
		return w.effect(Effect{Alert: ErrValidation.Error(), Err: ErrValidation})
	}
	if err := w.store.Add(ctx, f); err != nil {
		appLog.Error("error adding schedule item", err, "name", f.Name)
		return w.effect(Effect{Requested: true, Err: err})
	}
	eff := w.refreshAfterChange(ctx)
	eff.ResetForm = true
	return eff
}

// Delete removes an item after the confirmer agrees. Declining leaves the
// state untouched and issues no request.
func (w *Widget) Delete(ctx context.Context, id string, c Confirmer) Effect {
	if c == nil || !c.Confirm(DeletePrompt) {
		return w.effect(Effect{})
	}
	if err := w.store.Remove(ctx, id); err != nil {
		appLog.Error("error deleting schedule item", err, "id", id)
		return w.effect(Effect{Requested: true, Err: err})
	}
	return w.refreshAfterChange(ctx)
}

func (w *Widget) effect(e Effect) Effect {
	e.Popup = w.popup.State()
	return e
}
