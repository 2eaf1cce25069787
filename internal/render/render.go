// Package render produces the HTML fragments the widget page injects.
// Every item and suggestion field is escaped; none is trusted as markup.
package render

import (
	"bytes"
	"html/template"
	"strings"

	"schedwidget/internal/model"
)

var listTmpl = template.Must(template.New("list").Parse(`{{range .}}<div class="schedule-item" data-id="{{.ID}}">
<h4>{{.Name}}</h4>
<p><strong>Date:</strong> {{.Date}}</p>
<p><strong>Time:</strong> {{.Time}}</p>
<p>{{.Description}}</p>
<button class="delete-btn" data-id="{{.ID}}">Delete</button>
</div>
{{end}}`))

// ListHTML renders the schedule-list contents.
func ListHTML(items []model.Item) (string, error) {
	var b bytes.Buffer
	if err := listTmpl.Execute(&b, items); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ResponseHTML renders assistant display text with line breaks preserved.
func ResponseHTML(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = template.HTMLEscapeString(l)
	}
	return strings.Join(lines, "<br>")
}
