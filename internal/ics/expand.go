package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Location is the zone the resulting date/time fields are written in.
	// If nil, time.Local is used.
	Location *time.Location

	// RangeStart / RangeEnd bound the occurrences (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single event's expansion.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the add-call bodies produced by Expand.
type ExpandResult struct {
	Fields []model.Fields
	// Truncated lists UIDs that hit MaxOccurrencesPerEvent.
	Truncated []string
}

// Expand turns events into schedule fields within the range, one per
// occurrence. All-day occurrences get time "00:00".
func Expand(events []Event, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	type occ struct {
		start time.Time
		f     model.Fields
	}
	var all []occ

	for _, ev := range events {
		starts, hitCap := occurrences(ev, cfg)
		if hitCap {
			result.Truncated = append(result.Truncated, ev.UID)
			appLog.Warn("expand: truncated occurrences", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		for _, s := range starts {
			all = append(all, occ{start: s, f: toFields(ev, s, cfg.Location)})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].start.Before(all[j].start) })
	result.Fields = make([]model.Fields, 0, len(all))
	for _, o := range all {
		result.Fields = append(result.Fields, o.f)
	}
	return result, nil
}

func occurrences(ev Event, cfg ExpandConfig) ([]time.Time, bool) {
	if ev.RawRRule == "" {
		if ev.Start.Before(cfg.RangeStart) || ev.Start.After(cfg.RangeEnd) {
			return nil, false
		}
		return []time.Time{ev.Start}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	times := set.Between(cfg.RangeStart.In(ev.Start.Location()), cfg.RangeEnd.In(ev.Start.Location()), true)
	if len(times) > cfg.MaxOccurrencesPerEvent {
		return times[:cfg.MaxOccurrencesPerEvent], true
	}
	return times, false
}

func toFields(ev Event, start time.Time, loc *time.Location) model.Fields {
	f := model.Fields{
		Name:        ev.Summary,
		Description: ev.Description,
	}
	if ev.AllDay {
		// All-day dates are floating; keep the calendar date as written.
		f.Date = start.Format(model.DateLayout)
		f.Time = "00:00"
		return f
	}
	local := start.In(loc)
	f.Date = local.Format(model.DateLayout)
	f.Time = local.Format(model.TimeLayout)
	return f
}
