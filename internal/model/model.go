package model

import (
	"strings"
	"time"
)

const (
	// DateLayout is the YYYY-MM-DD form used by the backend.
	DateLayout = "2006-01-02"
	// TimeLayout is the HH:MM form used by the backend.
	TimeLayout = "15:04"
)

// Item represents a persisted schedule entry as returned by the backend.
// The ID is server-assigned; the client never invents one.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
}

// Fields is the body of an add call. A Suggestion is exactly this shape.
type Fields struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
}

// Suggestion is a candidate item parsed from free text, not yet persisted.
type Suggestion = Fields

// Start combines the item's date and time into an instant in loc.
func (it Item) Start(loc *time.Location) (time.Time, error) {
	return StartOf(it.Date, it.Time, loc)
}

// Fields returns the item without its server identity.
func (it Item) Fields() Fields {
	return Fields{Name: it.Name, Date: it.Date, Time: it.Time, Description: it.Description}
}

// StartOf parses a date/time pair as a local timestamp.
func StartOf(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout,
		strings.TrimSpace(date)+" "+strings.TrimSpace(clock), loc)
}

// Missing reports which of the required manual-entry fields are blank.
func (f Fields) Missing() []string {
	var out []string
	if f.Name == "" {
		out = append(out, "name")
	}
	if f.Date == "" {
		out = append(out, "date")
	}
	if f.Time == "" {
		out = append(out, "time")
	}
	return out
}

// LegacyItem is the alternate item shape served by GET /schedule?password=.
// It carries "title" where the primary API uses "name".
type LegacyItem struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description,omitempty"`
}

// LegacyResponse wraps the legacy item list.
type LegacyResponse struct {
	Items []LegacyItem `json:"items"`
}

// Item converts the legacy shape to the primary one.
func (li LegacyItem) Item() Item {
	return Item{ID: li.ID, Name: li.Title, Date: li.Date, Time: li.Time, Description: li.Description}
}
