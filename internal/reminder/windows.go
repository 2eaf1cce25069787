package reminder

import (
	"fmt"
	"sort"
	"time"

	"schedwidget/internal/model"
)

// Action is what a window triggers.
type Action string

const (
	// ActionNotify raises a passive notification. The window is
	// (Min, Max]: lower edge exclusive, upper edge inclusive.
	ActionNotify Action = "notify"
	// ActionPopup raises the confirmation popup. The window is [Min, Max].
	ActionPopup Action = "popup"
)

// Window is one row of the threshold table, relative to an item's start
// (positive = before start).
type Window struct {
	Label  string        `yaml:"label" json:"label"`
	Min    time.Duration `yaml:"min" json:"min"`
	Max    time.Duration `yaml:"max" json:"max"`
	Action Action        `yaml:"action" json:"action"`
}

// Contains reports whether diff (start - now) falls in the window.
func (w Window) Contains(diff time.Duration) bool {
	if w.Action == ActionPopup {
		return diff >= w.Min && diff <= w.Max
	}
	return diff > w.Min && diff <= w.Max
}

// DefaultWindows is the standard table: 15, 5 and 1 minute notices and a
// popup within five seconds either side of the start.
func DefaultWindows() []Window {
	return []Window{
		{Label: "15 minutes", Min: 14*time.Minute + 40*time.Second, Max: 15 * time.Minute, Action: ActionNotify},
		{Label: "5 minutes", Min: 4 * time.Minute, Max: 5 * time.Minute, Action: ActionNotify},
		{Label: "1 minute", Min: 55 * time.Second, Max: time.Minute, Action: ActionNotify},
		{Label: "now", Min: -5 * time.Second, Max: 5 * time.Second, Action: ActionPopup},
	}
}

// ValidateWindows checks a configured table.
func ValidateWindows(ws []Window) error {
	for i, w := range ws {
		if w.Action != ActionNotify && w.Action != ActionPopup {
			return fmt.Errorf("window %d (%q): unknown action %q", i, w.Label, w.Action)
		}
		if w.Max < w.Min {
			return fmt.Errorf("window %d (%q): max %s is below min %s", i, w.Label, w.Max, w.Min)
		}
	}
	return nil
}

// Hit is one item falling into one window during a tick.
type Hit struct {
	Item   model.Item
	Window Window
	Start  time.Time
	Diff   time.Duration
}

// Evaluate matches items against the table at now. Items whose date or
// time do not parse are returned in skipped. Hits are ordered by start.
func Evaluate(items []model.Item, windows []Window, now time.Time, loc *time.Location) (hits []Hit, skipped []model.Item) {
	for _, it := range items {
		start, err := it.Start(loc)
		if err != nil {
			skipped = append(skipped, it)
			continue
		}
		diff := start.Sub(now)
		for _, w := range windows {
			if w.Contains(diff) {
				hits = append(hits, Hit{Item: it, Window: w, Start: start, Diff: diff})
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Start.Before(hits[j].Start) })
	return hits, skipped
}
