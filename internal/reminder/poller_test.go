package reminder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
	"schedwidget/internal/notify"
)

var utc = time.UTC

// itemAt builds an item whose start is now+diff, on a minute boundary.
func itemAt(id string, start time.Time) model.Item {
	return model.Item{
		ID:   id,
		Name: "item " + id,
		Date: start.Format(model.DateLayout),
		Time: start.Format(model.TimeLayout),
	}
}

func TestWindowBoundaries(t *testing.T) {
	t.Parallel()

	ws := DefaultWindows()
	label := func(diff time.Duration) []string {
		var out []string
		for _, w := range ws {
			if w.Contains(diff) {
				out = append(out, w.Label)
			}
		}
		return out
	}

	tests := []struct {
		diff time.Duration
		want []string
	}{
		{900000 * time.Millisecond, []string{"15 minutes"}},
		{840000 * time.Millisecond, nil},
		{880000 * time.Millisecond, nil},
		{880001 * time.Millisecond, []string{"15 minutes"}},
		{900001 * time.Millisecond, nil},
		{5 * time.Minute, []string{"5 minutes"}},
		{4 * time.Minute, nil},
		{4*time.Minute + time.Millisecond, []string{"5 minutes"}},
		{time.Minute, []string{"1 minute"}},
		{55 * time.Second, nil},
		{56 * time.Second, []string{"1 minute"}},
		{5 * time.Second, []string{"now"}},
		{0, []string{"now"}},
		{-5 * time.Second, []string{"now"}},
		{-5*time.Second - time.Millisecond, nil},
		{30 * time.Minute, nil},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, label(tt.diff), "diff=%s", tt.diff)
	}
}

func TestValidateWindows(t *testing.T) {
	require.NoError(t, ValidateWindows(DefaultWindows()))
	require.Error(t, ValidateWindows([]Window{{Label: "x", Min: 2, Max: 1, Action: ActionNotify}}))
	require.Error(t, ValidateWindows([]Window{{Label: "x", Action: "beep"}}))
}

func TestEvaluateSkipsUnparseable(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 15, 0, 0, utc)
	items := []model.Item{
		itemAt("a", now.Add(15*time.Minute)),
		{ID: "b", Date: "tomorrow", Time: "09:30"},
		itemAt("c", now),
	}
	hits, skipped := Evaluate(items, DefaultWindows(), now, utc)
	require.Len(t, skipped, 1)
	require.Equal(t, "b", skipped[0].ID)
	require.Len(t, hits, 2)
	require.Equal(t, "c", hits[0].Item.ID)
	require.Equal(t, "now", hits[0].Window.Label)
	require.Equal(t, "a", hits[1].Item.ID)
	require.Equal(t, "15 minutes", hits[1].Window.Label)
}

type listerFunc func(ctx context.Context) ([]model.Item, error)

func (f listerFunc) List(ctx context.Context) ([]model.Item, error) { return f(ctx) }

type fakeSink struct {
	lists  [][]model.Item
	raised []model.Item
}

func (s *fakeSink) ReplaceList(items []model.Item) { s.lists = append(s.lists, items) }
func (s *fakeSink) RaiseReminder(it model.Item)    { s.raised = append(s.raised, it) }

type fakeNotifier struct {
	perm notify.Permission
	got  []notify.Notification
	err  error
}

func (f *fakeNotifier) Permission() notify.Permission { return f.perm }
func (f *fakeNotifier) Notify(_ context.Context, n notify.Notification) error {
	f.got = append(f.got, n)
	return f.err
}

func newTestPoller(t *testing.T, items []model.Item, n notify.Notifier, now time.Time) (*Poller, *fakeSink, *Metrics) {
	t.Helper()
	sink := &fakeSink{}
	m := NewMetrics(prometheus.NewRegistry())
	p, err := New(listerFunc(func(context.Context) ([]model.Item, error) { return items, nil }), sink, n, Config{Location: utc}, m)
	require.NoError(t, err)
	p.now = func() time.Time { return now }
	return p, sink, m
}

func TestTickNotifiesAndRaisesPopup(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, utc)
	items := []model.Item{
		itemAt("15", now.Add(15*time.Minute)),
		itemAt("5", now.Add(5*time.Minute)),
		itemAt("1", now.Add(time.Minute)),
		itemAt("0", now),
		itemAt("far", now.Add(3*time.Hour)),
	}
	n := &fakeNotifier{perm: notify.PermissionGranted}
	p, sink, m := newTestPoller(t, items, n, now)

	require.NoError(t, p.Tick(context.Background()))

	require.Len(t, n.got, 3)
	require.Equal(t, "1 minute", n.got[0].Window)
	require.Equal(t, "5 minutes", n.got[1].Window)
	require.Equal(t, "15 minutes", n.got[2].Window)
	require.Equal(t, "Upcoming: item 15", n.got[2].Title)

	require.Len(t, sink.raised, 1)
	require.Equal(t, "0", sink.raised[0].ID)
	require.Len(t, sink.lists, 1)
	require.Equal(t, items, sink.lists[0])

	require.Equal(t, float64(1), testutil.ToFloat64(m.ticks))
	require.Equal(t, float64(1), testutil.ToFloat64(m.notices.WithLabelValues("15 minutes", "sent")))
	require.Equal(t, float64(5), testutil.ToFloat64(m.items))
}

func TestTickRefiresOnEveryPoll(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, utc)
	items := []model.Item{itemAt("15", now.Add(15*time.Minute))}
	n := &fakeNotifier{perm: notify.PermissionGranted}
	p, _, _ := newTestPoller(t, items, n, now)

	require.NoError(t, p.Tick(context.Background()))
	p.now = func() time.Time { return now.Add(10 * time.Second) }
	require.NoError(t, p.Tick(context.Background()))
	require.Len(t, n.got, 2)
}

func TestTickWithoutPermissionIsSilent(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, utc)
	items := []model.Item{itemAt("15", now.Add(15*time.Minute)), itemAt("0", now)}

	for _, perm := range []notify.Permission{notify.PermissionDenied, notify.PermissionDefault} {
		n := &fakeNotifier{perm: perm}
		p, sink, m := newTestPoller(t, items, n, now)
		require.NoError(t, p.Tick(context.Background()))
		require.Empty(t, n.got)
		require.Len(t, sink.raised, 1, "popup does not need notification permission")
		require.Len(t, sink.lists, 1)
		require.Equal(t, float64(1), testutil.ToFloat64(m.notices.WithLabelValues("15 minutes", "skipped")))
	}

	p, sink, _ := newTestPoller(t, items, nil, now)
	require.NoError(t, p.Tick(context.Background()))
	require.Len(t, sink.lists, 1)
}

func TestTickNotifyErrorDoesNotFail(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, utc)
	n := &fakeNotifier{perm: notify.PermissionGranted, err: errors.New("send failed")}
	p, sink, m := newTestPoller(t, []model.Item{itemAt("5", now.Add(5*time.Minute))}, n, now)

	require.NoError(t, p.Tick(context.Background()))
	require.Len(t, sink.lists, 1)
	require.Equal(t, float64(1), testutil.ToFloat64(m.notices.WithLabelValues("5 minutes", "failed")))
}

func TestTickFetchFailure(t *testing.T) {
	sink := &fakeSink{}
	m := NewMetrics(nil)
	boom := errors.New("offline")
	p, err := New(listerFunc(func(context.Context) ([]model.Item, error) { return nil, boom }), sink, nil, Config{}, m)
	require.NoError(t, err)

	require.ErrorIs(t, p.Tick(context.Background()), boom)
	require.Empty(t, sink.lists)
	require.Equal(t, float64(1), testutil.ToFloat64(m.fetchFailures))
}

func TestNewRejectsBadConfig(t *testing.T) {
	l := listerFunc(func(context.Context) ([]model.Item, error) { return nil, nil })
	_, err := New(l, nil, nil, Config{Schedule: "every now and then"}, nil)
	require.Error(t, err)
	_, err = New(nil, nil, nil, Config{}, nil)
	require.Error(t, err)
}

func TestStartStopAndReconfigure(t *testing.T) {
	l := listerFunc(func(context.Context) ([]model.Item, error) { return nil, nil })
	p, err := New(l, nil, nil, Config{Schedule: "@every 1h"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	require.Error(t, p.Start(ctx))

	require.NoError(t, p.Reconfigure("@every 30m", nil))
	require.Equal(t, "@every 30m", p.config().Schedule)
	require.Len(t, p.config().Windows, len(DefaultWindows()))
	require.Error(t, p.Reconfigure("bogus", nil))
	require.Equal(t, "@every 30m", p.config().Schedule)

	p.Stop()
	p.Stop()
}

func TestStopReleasesContextWatcher(t *testing.T) {
	l := listerFunc(func(context.Context) ([]model.Item, error) { return nil, nil })
	p, err := New(l, nil, nil, Config{Schedule: "@every 1h"}, nil)
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	p.mu.Lock()
	watching := p.watching
	p.mu.Unlock()

	p.Stop()
	select {
	case <-watching:
	case <-time.After(time.Second):
		t.Fatal("context watcher still running after Stop")
	}

	// A second run gets its own watcher, released by ctx cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	p.mu.Lock()
	watching = p.watching
	p.mu.Unlock()
	cancel()
	select {
	case <-watching:
	case <-time.After(time.Second):
		t.Fatal("context watcher still running after cancel")
	}
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return !p.running
	}, time.Second, 10*time.Millisecond)
}

func TestCronPanicsGoToAppLog(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf, false)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr, true) })

	job := cron.NewChain(cron.Recover(cronLogger{})).Then(cron.FuncJob(func() {
		panic("tick exploded")
	}))
	require.NotPanics(t, job.Run)
	require.Contains(t, buf.String(), "cron: panic")
	require.Contains(t, buf.String(), "tick exploded")
}
