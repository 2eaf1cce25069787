// Package ics converts between schedule items and iCalendar data.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
)

// DefaultDuration is the length given to exported events; items carry
// only a start time.
const DefaultDuration = 30 * time.Minute

const productID = "-//schedwidget//schedule export//EN"

// Export renders items as a VCALENDAR. Items whose date/time do not parse
// are left out and counted in skipped.
func Export(items []model.Item, loc *time.Location, now time.Time) (body string, skipped int) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, it := range items {
		start, err := it.Start(loc)
		if err != nil {
			skipped++
			appLog.Debug("ics export: skipping item", "id", it.ID, "date", it.Date, "time", it.Time)
			continue
		}
		ev := cal.AddEvent(uid(it))
		ev.SetDtStampTime(now.UTC())
		ev.SetStartAt(start)
		ev.SetEndAt(start.Add(DefaultDuration))
		ev.SetSummary(it.Name)
		if it.Description != "" {
			ev.SetDescription(it.Description)
		}
	}
	return cal.Serialize(), skipped
}

func uid(it model.Item) string {
	return it.ID + "@schedwidget"
}
