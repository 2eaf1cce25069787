// Package notify delivers reminder notices.
//
// Every sink exposes a Permission capability mirroring the browser's
// Notification.permission: callers skip delivery unless it is granted.
package notify

import (
	"context"
	"errors"
	"time"

	appLog "schedwidget/internal/log"
)

// Permission is the delivery capability of a sink.
type Permission string

const (
	// PermissionDefault means the capability is unsupported or was never granted.
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps a reported value; unknown values are PermissionDefault.
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted, PermissionDenied:
		return Permission(s)
	default:
		return PermissionDefault
	}
}

// Notification is one reminder notice.
type Notification struct {
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	ItemID string    `json:"item_id,omitempty"`
	Window string    `json:"window,omitempty"`
	At     time.Time `json:"at"`
}

// Notifier is a notification sink.
type Notifier interface {
	Permission() Permission
	Notify(ctx context.Context, n Notification) error
}

// Log writes notices to the application log. It is always granted.
type Log struct{}

func (Log) Permission() Permission { return PermissionGranted }

func (Log) Notify(_ context.Context, n Notification) error {
	appLog.Info("reminder", "title", n.Title, "body", n.Body, "item_id", n.ItemID, "window", n.Window)
	return nil
}

// Multi fans a notice out to every granted sink.
type Multi []Notifier

// Permission is granted when at least one sink is granted.
func (m Multi) Permission() Permission {
	out := PermissionDefault
	for _, n := range m {
		switch n.Permission() {
		case PermissionGranted:
			return PermissionGranted
		case PermissionDenied:
			out = PermissionDenied
		}
	}
	return out
}

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if s.Permission() != PermissionGranted {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
