package render

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"schedwidget/internal/model"
)

func TestListHTMLEscapesFields(t *testing.T) {
	items := []model.Item{
		{ID: "1", Name: "Dentist", Date: "2024-05-01", Time: "09:30", Description: "checkup"},
		{ID: `2"><script>`, Name: "<img src=x onerror=alert(1)>", Date: "2024-05-02", Time: "10:00", Description: "a & b"},
	}

	out, err := ListHTML(items)
	require.NoError(t, err)
	require.NotContains(t, out, "<script>")
	require.NotContains(t, out, "<img")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	sel := doc.Find(".schedule-item")
	require.Equal(t, 2, sel.Length())
	require.Equal(t, "<img src=x onerror=alert(1)>", sel.Eq(1).Find("h4").Text())
	require.Equal(t, "a & b", sel.Eq(1).Find("p").Last().Text())

	id, ok := sel.Eq(1).Find("button.delete-btn").Attr("data-id")
	require.True(t, ok)
	require.Equal(t, `2"><script>`, id)
}

func TestListHTMLEmpty(t *testing.T) {
	out, err := ListHTML(nil)
	require.NoError(t, err)
	require.Empty(t, strings.TrimSpace(out))
}

func TestResponseHTML(t *testing.T) {
	require.Equal(t, "Sure, &lt;b&gt;ok&lt;/b&gt;<br>next", ResponseHTML("Sure, <b>ok</b>\nnext"))
	require.Equal(t, "", ResponseHTML(""))
}
