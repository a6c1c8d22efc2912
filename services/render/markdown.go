package render

import (
	"bytes"
	"embed"
	"strconv"
	"text/template"
	"time"

	"github.com/pkg/errors"

	"github.com/psp-schools/psp/core/analytics"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var reportTmpl = template.Must(
	template.New("report.md.tmpl").
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"datetime":       formatDateTime,
			"statusSymbol":   statusSymbol,
			"prioritySymbol": prioritySymbol,
			"bookRatio":      bookRatio,
		}).
		ParseFS(templatesFS, "templates/report.md.tmpl"),
)

// MarkdownContentType is the media type of Markdown reports.
const MarkdownContentType = "text/markdown; charset=utf-8"

// Markdown renders a report document as a Markdown file.
func Markdown(doc analytics.ReportDocument) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, doc); err != nil {
		return nil, errors.Wrapf(err, "rendering report %s", doc.Header.ID)
	}
	return buf.Bytes(), nil
}

// MarkdownFilename is the download name of a school's report.
func MarkdownFilename(doc analytics.ReportDocument) string {
	return "school-report-" + strconv.FormatInt(doc.Header.SchoolID, 10) + ".md"
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 MST")
}

func statusSymbol(s analytics.ResourceStatus) string {
	if s == analytics.ResourceOK {
		return "✓"
	}
	return "⚠"
}

func prioritySymbol(p analytics.Priority) string {
	switch p {
	case analytics.PriorityCritical:
		return "🔴"
	case analytics.PriorityWarning:
		return "🟡"
	default:
		return "🟢"
	}
}

func bookRatio(r string) string {
	if r == analytics.NoBooks {
		return r
	}
	return r + ":1"
}
