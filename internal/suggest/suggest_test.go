package suggest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"schedwidget/internal/model"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    *model.Suggestion
		display string
	}{
		{
			name:    "documented example",
			in:      "Sure, schedule/Dentist/2024-05-01/09:30/Annual checkup done.",
			want:    &model.Suggestion{Name: "Dentist", Date: "2024-05-01", Time: "09:30", Description: "Annual checkup done."},
			display: "Sure, ",
		},
		{
			name:    "slash inside description is kept",
			in:      "schedule/Call/2024-06-02/10:00/bring notes a/b",
			want:    &model.Suggestion{Name: "Call", Date: "2024-06-02", Time: "10:00", Description: "bring notes a/b"},
			display: "",
		},
		{
			name:    "description stops at newline",
			in:      "ok schedule/Gym/2024-06-03/07:00/legs\nSee you.",
			want:    &model.Suggestion{Name: "Gym", Date: "2024-06-03", Time: "07:00", Description: "legs"},
			display: "ok \nSee you.",
		},
		{
			name:    "description stops at CRLF",
			in:      "Sure, schedule/Dentist/2024-05-01/09:30/Annual checkup\r\nSee you",
			want:    &model.Suggestion{Name: "Dentist", Date: "2024-05-01", Time: "09:30", Description: "Annual checkup"},
			display: "Sure, \r\nSee you",
		},
		{
			name:    "description stops at line separator",
			in:      "schedule/Gym/2024-06-03/07:00/legs\u2028later",
			want:    &model.Suggestion{Name: "Gym", Date: "2024-06-03", Time: "07:00", Description: "legs"},
			display: "\u2028later",
		},
		{
			name:    "fields do not span lines",
			in:      "schedule/a\r/b/c/d",
			want:    nil,
			display: "schedule/a\r/b/c/d",
		},
		{
			name:    "fields are not trimmed",
			in:      "schedule/ Team Meeting /tomorrow/14:30/ Weekly update ",
			want:    &model.Suggestion{Name: " Team Meeting ", Date: "tomorrow", Time: "14:30", Description: " Weekly update "},
			display: "",
		},
		{
			name:    "markup passes through verbatim",
			in:      "schedule/<b>x</b>/d/t/<script>",
			want:    &model.Suggestion{Name: "<b>x<", Date: "b>", Time: "d", Description: "t/<script>"},
			display: "",
		},
		{
			name:    "no hint",
			in:      "Nothing to schedule here.",
			display: "Nothing to schedule here.",
		},
		{
			name:    "too few fields",
			in:      "schedule/a/b/c",
			display: "schedule/a/b/c",
		},
		{
			name:    "empty",
			in:      "",
			display: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Extract(tt.in)
			require.Equal(t, tt.want, got.Suggestion)
			require.Equal(t, tt.display, got.DisplayText)
		})
	}
}

func TestExtractOnlyFirstHint(t *testing.T) {
	in := "schedule/A/1/2/x\nschedule/B/3/4/y"
	got := Extract(in)
	require.NotNil(t, got.Suggestion)
	require.Equal(t, "A", got.Suggestion.Name)
	require.Equal(t, "\nschedule/B/3/4/y", got.DisplayText)
}

func TestFormatRoundTrip(t *testing.T) {
	f := model.Fields{Name: "Dentist", Date: "2024-03-15", Time: "09:00", Description: "Regular checkup"}
	got := Extract(Format(f))
	require.NotNil(t, got.Suggestion)
	require.Equal(t, f, *got.Suggestion)
	require.Empty(t, got.DisplayText)
}
