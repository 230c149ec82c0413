// Package views renders roster's HTML pages as templ components.
//
// Each page is a small layout around a single message paragraph, so the
// text a client sees is exactly the sentence the handler composed.
package views

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MessageID is the id of the paragraph holding each page's message.
const MessageID = "message"

// Home renders the landing page.
func Home() templ.Component {
	return page("Home", "This is the home page")
}

// Teacher renders the teacher page.
func Teacher(name string) templ.Component {
	return page("Teacher", "The teacher is: "+name)
}

// Students renders the class list with each name title-cased and separated
// by a single space.
func Students(names []string) templ.Component {
	return page("Students", "The students are: "+FormatStudents(names))
}

// FormatStudents title-cases and joins names for display.
func FormatStudents(names []string) string {
	caser := cases.Title(language.English)
	formatted := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		formatted = append(formatted, caser.String(name))
	}
	return strings.Join(formatted, " ")
}

func page(title, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\"><head><meta charset=\"utf-8\"><title>")
		b.WriteString(templ.EscapeString(title + " | roster"))
		b.WriteString("</title></head><body><nav>")
		b.WriteString(`<a href="/">Home</a> <a href="/teacher">Teacher</a> <a href="/students">Students</a>`)
		b.WriteString("</nav><main><p id=\"" + MessageID + "\">")
		b.WriteString(templ.EscapeString(message))
		b.WriteString("</p></main></body></html>")

		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}
