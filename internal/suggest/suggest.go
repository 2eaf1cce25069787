// Package suggest detects schedule hints embedded in assistant responses.
//
// A hint has the form
//
//	schedule/<name>/<date>/<time>/<description>
//
// The first three fields are the shortest runs up to the next "/"; the
// description takes the rest of the line.
package suggest

import (
	"regexp"

	"schedwidget/internal/model"
)

// lineChar is any character except a line terminator (\n, \r, U+2028,
// U+2029), so no field crosses a line.
const lineChar = `[^\r\n\x{2028}\x{2029}]`

var hintPattern = regexp.MustCompile(
	`schedule/(` + lineChar + `*?)/(` + lineChar + `*?)/(` + lineChar + `*?)/(` + lineChar + `*)`)

// Result is the outcome of Extract.
type Result struct {
	// Suggestion is nil when the text carries no hint.
	Suggestion *model.Suggestion
	// DisplayText is the input with the first hint removed.
	DisplayText string
}

// Extract finds the first hint in text. Captured fields are returned
// verbatim: no trimming, validation or escaping is applied.
func Extract(text string) Result {
	m := hintPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return Result{DisplayText: text}
	}
	s := &model.Suggestion{
		Name:        text[m[2]:m[3]],
		Date:        text[m[4]:m[5]],
		Time:        text[m[6]:m[7]],
		Description: text[m[8]:m[9]],
	}
	return Result{
		Suggestion:  s,
		DisplayText: text[:m[0]] + text[m[1]:],
	}
}

// Format renders fields back into hint form, e.g. for prompting an assistant.
func Format(f model.Fields) string {
	return "schedule/" + f.Name + "/" + f.Date + "/" + f.Time + "/" + f.Description
}
