package notify

import (
	"context"
	"sync"
)

const defaultWebQueue = 64

// Web queues notices for the widget page, which drains them and shows
// browser notifications. Its permission is whatever the page last reported.
type Web struct {
	mu    sync.Mutex
	perm  Permission
	queue []Notification
	max   int
}

// NewWeb returns a Web sink holding at most max undelivered notices.
func NewWeb(max int) *Web {
	if max <= 0 {
		max = defaultWebQueue
	}
	return &Web{perm: PermissionDefault, max: max}
}

func (w *Web) Permission() Permission {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.perm
}

// SetPermission records the page's Notification.permission.
func (w *Web) SetPermission(p Permission) {
	w.mu.Lock()
	w.perm = p
	if p != PermissionGranted {
		w.queue = nil
	}
	w.mu.Unlock()
}

func (w *Web) Notify(_ context.Context, n Notification) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.perm != PermissionGranted {
		return nil
	}
	w.queue = append(w.queue, n)
	if over := len(w.queue) - w.max; over > 0 {
		w.queue = append([]Notification(nil), w.queue[over:]...)
	}
	return nil
}

// Drain returns and clears the queued notices.
func (w *Web) Drain() []Notification {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.queue
	w.queue = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}
