package render

import (
	"github.com/charmbracelet/glamour/v2"
	"github.com/pkg/errors"

	"github.com/psp-schools/psp/core/analytics"
)

const (
	DefaultWidth = 80
	DefaultStyle = "dracula"
	PlainStyle   = "notty" // no ANSI sequences, for pipes and files
)

// Terminal renders a report document for display in a terminal.
// Width <= 0 uses DefaultWidth, an empty style uses DefaultStyle.
func Terminal(doc analytics.ReportDocument, width int, style string) (string, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if style == "" {
		style = DefaultStyle
	}

	md, err := Markdown(doc)
	if err != nil {
		return "", err
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return "", errors.Wrap(err, "creating terminal renderer")
	}
	out, err := r.Render(string(md))
	if err != nil {
		return "", errors.Wrapf(err, "rendering report %s", doc.Header.ID)
	}
	return out, nil
}
