package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func render(t *testing.T, c templ.Component) *html.Node {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	doc, err := html.Parse(&buf)
	require.NoError(t, err)
	return doc
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func message(t *testing.T, c templ.Component) string {
	t.Helper()
	node := findByID(render(t, c), MessageID)
	require.NotNil(t, node, "message paragraph missing")
	return textOf(node)
}

func TestPages(t *testing.T) {
	tests := []struct {
		name      string
		component templ.Component
		want      string
	}{
		{"home", Home(), "This is the home page"},
		{"teacher", Teacher("Mat"), "The teacher is: Mat"},
		{"students", Students([]string{"dipan", "david", "fabio"}), "The students are: Dipan David Fabio"},
		{"no students", Students(nil), "The students are: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, message(t, tt.component))
		})
	}
}

func TestTeacher_EscapesName(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Teacher(`<script>alert("x")</script>`).Render(context.Background(), &buf))

	assert.NotContains(t, buf.String(), "<script>")
	assert.Equal(t, `The teacher is: <script>alert("x")</script>`,
		message(t, Teacher(`<script>alert("x")</script>`)))
}

func TestFormatStudents(t *testing.T) {
	assert.Equal(t, "Ada Lovelace Alan", FormatStudents([]string{"ada lovelace", " ", "ALAN"}))
	assert.Equal(t, "", FormatStudents([]string{}))
}

func TestPage_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := Home().Render(ctx, &buf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}
