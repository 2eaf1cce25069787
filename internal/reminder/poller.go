// Package reminder runs the periodic schedule check that raises
// notifications and the start-time popup.
//
// One cron entry drives every tick; there is a single threshold table. A
// tick that is still running when the next one is due causes the next to be
// skipped, so at most one tick (and one fetched snapshot) is in flight.
// Notices are at-least-once: an item whose remaining time falls in a window
// on several consecutive ticks is announced on each of them.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
	"schedwidget/internal/notify"
)

// DefaultSchedule is the default poll interval as a cron spec.
const DefaultSchedule = "@every 10s"

// Lister fetches the full item list.
type Lister interface {
	List(ctx context.Context) ([]model.Item, error)
}

// Sink receives the per-tick results. widget.Widget satisfies it.
type Sink interface {
	ReplaceList(items []model.Item)
	RaiseReminder(it model.Item)
}

// Config controls the poller.
type Config struct {
	// Schedule is a cron spec, e.g. "@every 10s" or "*/1 * * * *".
	Schedule string
	// Windows is the threshold table; nil means DefaultWindows.
	Windows []Window
	// Location is used to interpret item date/time. nil means time.Local.
	Location *time.Location
	// TickTimeout bounds one tick's fetch and deliveries.
	TickTimeout time.Duration
}

func (c *Config) normalize() error {
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.Windows == nil {
		c.Windows = DefaultWindows()
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = 30 * time.Second
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", c.Schedule, err)
	}
	return ValidateWindows(c.Windows)
}

// Poller is the single reminder scheduler.
type Poller struct {
	lister   Lister
	sink     Sink
	notifier notify.Notifier
	metrics  *Metrics
	now      func() time.Time

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	entry   cron.EntryID
	running bool
	runCtx  context.Context
	// stop is closed by Stop; watching is closed once the ctx watcher exits.
	stop     chan struct{}
	watching chan struct{}
}

// New validates cfg and returns a stopped poller. notifier may be nil, in
// which case only popups are raised.
func New(lister Lister, sink Sink, notifier notify.Notifier, cfg Config, metrics *Metrics) (*Poller, error) {
	if lister == nil {
		return nil, errors.New("reminder: lister is nil")
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Poller{
		lister:   lister,
		sink:     sink,
		notifier: notifier,
		metrics:  metrics,
		now:      time.Now,
		cfg:      cfg,
	}, nil
}

// Start schedules ticks until ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("reminder: already running")
	}

	p.c = cron.New(
		cron.WithLocation(p.cfg.Location),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	p.runCtx = ctx
	id, err := p.c.AddFunc(p.cfg.Schedule, p.runTick)
	if err != nil {
		return fmt.Errorf("reminder: add schedule: %w", err)
	}
	p.entry = id
	p.c.Start()
	p.running = true

	appLog.Info("reminder poller started", "schedule", p.cfg.Schedule, "windows", len(p.cfg.Windows), "timezone", p.cfg.Location.String())

	p.stop = make(chan struct{})
	p.watching = make(chan struct{})
	go func(stop, watching chan struct{}) {
		defer close(watching)
		select {
		case <-ctx.Done():
			p.Stop()
		case <-stop:
		}
	}(p.stop, p.watching)
	return nil
}

// Stop halts scheduling and waits for a running tick to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	c := p.c
	wasRunning := p.running
	p.running = false
	p.c = nil
	if wasRunning && p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.mu.Unlock()

	if !wasRunning || c == nil {
		return
	}
	<-c.Stop().Done()
	appLog.Info("reminder poller stopped")
}

// Reconfigure swaps the schedule and threshold table. A running poller is
// rescheduled in place.
func (p *Poller) Reconfigure(schedule string, windows []Window) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.cfg
	next.Schedule = schedule
	next.Windows = windows
	if err := next.normalize(); err != nil {
		return err
	}

	if p.running && p.c != nil && next.Schedule != p.cfg.Schedule {
		id, err := p.c.AddFunc(next.Schedule, p.runTick)
		if err != nil {
			return fmt.Errorf("reminder: add schedule: %w", err)
		}
		p.c.Remove(p.entry)
		p.entry = id
	}
	p.cfg = next
	appLog.Info("reminder poller reconfigured", "schedule", next.Schedule, "windows", len(next.Windows))
	return nil
}

// cronLogger routes cron's own messages (recovered panics, skipped runs)
// to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}

func (p *Poller) config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfg := p.cfg
	cfg.Windows = append([]Window(nil), p.cfg.Windows...)
	return cfg
}

func (p *Poller) runTick() {
	p.mu.Lock()
	parent := p.runCtx
	p.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	if err := p.Tick(parent); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Debug("reminder tick failed", "err", err.Error())
	}
}

// Tick runs one check: fetch, evaluate, notify or raise the popup, then
// hand the fetched list to the sink for re-rendering. A fetch error is
// returned after logging; notification errors never fail the tick.
func (p *Poller) Tick(ctx context.Context) error {
	cfg := p.config()
	ctx, cancel := context.WithTimeout(ctx, cfg.TickTimeout)
	defer cancel()

	p.metrics.ticks.Inc()

	items, err := p.lister.List(ctx)
	if err != nil {
		p.metrics.fetchFailures.Inc()
		appLog.Error("reminder fetch failed", err)
		return err
	}
	p.metrics.items.Set(float64(len(items)))

	now := p.now()
	hits, skipped := Evaluate(items, cfg.Windows, now, cfg.Location)
	for _, it := range skipped {
		appLog.Debug("reminder: unparseable start", "id", it.ID, "date", it.Date, "time", it.Time)
	}

	for _, h := range hits {
		p.deliver(ctx, h)
	}

	if p.sink != nil {
		p.sink.ReplaceList(items)
	}
	return nil
}

func (p *Poller) deliver(ctx context.Context, h Hit) {
	label := h.Window.Label
	if h.Window.Action == ActionPopup {
		if p.sink != nil {
			p.sink.RaiseReminder(h.Item)
		}
		p.metrics.notices.WithLabelValues(label, "popup").Inc()
		appLog.Info("reminder popup raised", "id", h.Item.ID, "name", h.Item.Name)
		return
	}

	if p.notifier == nil || p.notifier.Permission() != notify.PermissionGranted {
		p.metrics.notices.WithLabelValues(label, "skipped").Inc()
		return
	}

	n := notify.Notification{
		Title:  "Upcoming: " + h.Item.Name,
		Body:   fmt.Sprintf("%s starts in %s (%s %s)", h.Item.Name, label, h.Item.Date, h.Item.Time),
		ItemID: h.Item.ID,
		Window: label,
		At:     h.Start,
	}
	if err := p.notifier.Notify(ctx, n); err != nil {
		p.metrics.notices.WithLabelValues(label, "failed").Inc()
		appLog.Error("reminder notify failed", err, "id", h.Item.ID, "window", label)
		return
	}
	p.metrics.notices.WithLabelValues(label, "sent").Inc()
}
