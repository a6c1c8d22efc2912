package analytics

import (
	"strconv"
	"time"

	"github.com/psp-schools/psp/core"
)

const (
	ReportTitle  = "School Performance Report"
	ReportFooter = "This report was generated by the PSP (Primary School Performance) System using data-driven analysis."

	// NoBooks is the ratio shown for a group without any books.
	NoBooks = "No books"
)

type ResourceStatus string

const (
	ResourceOK      ResourceStatus = "ok"
	ResourceWarning ResourceStatus = "warning"
)

type (
	ReportHeader struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		SchoolID    int64     `json:"school_id"`
		SchoolName  string    `json:"school_name"`
		GeneratedAt time.Time `json:"generated_at"`
	}

	SummaryItem struct {
		Label string `json:"label"`
		Value string `json:"value"`
	}

	ResourceLine struct {
		Status   ResourceStatus `json:"status"`
		Subject  string         `json:"subject"`
		Grade    string         `json:"grade"`
		Students int            `json:"students"`
		Books    int            `json:"books"`
		Ratio    string         `json:"ratio"` // "x.x" or NoBooks
	}

	// ReportDocument is the renderer-agnostic content of a school report, in display order.
	ReportDocument struct {
		Header           ReportHeader     `json:"header"`
		Summary          []SummaryItem    `json:"summary"`
		ResourceAnalysis []ResourceLine   `json:"resource_analysis"`
		Recommendations  []Recommendation `json:"recommendations"`
		Score            int              `json:"score"`
		Footer           string           `json:"footer"`
	}
)

// AssembleReport lays out already computed values into a ReportDocument. It only formats.
func AssembleReport(
	header ReportHeader,
	f SchoolFeatures,
	groups []ResourceGroup,
	recs []Recommendation,
	score int,
) ReportDocument {
	if header.Title == "" {
		header.Title = ReportTitle
	}
	header.SchoolID = f.SchoolID
	header.SchoolName = f.SchoolName

	ratio := "N/A"
	if v, ok := f.TeacherStudentRatio.Value(); ok {
		ratio = "1:" + core.FormatFixed(v, 1)
	}

	doc := ReportDocument{
		Header: header,
		Summary: []SummaryItem{
			{Label: "Total Students", Value: strconv.Itoa(f.TotalStudents)},
			{Label: "Total Teachers", Value: strconv.Itoa(f.TotalTeachers)},
			{Label: "Teacher-Student Ratio", Value: ratio},
			{Label: "Total Computers/Devices", Value: strconv.Itoa(f.TotalComputers)},
			{Label: "Average Weekly Student Absences", Value: core.FormatFixed(f.AvgWeeklyAbsentStudents, 1)},
			{Label: "Average Weekly Teacher Absences", Value: core.FormatFixed(f.AvgWeeklyAbsentTeachers, 1)},
		},
		ResourceAnalysis: make([]ResourceLine, 0, len(groups)),
		Recommendations:  append(make([]Recommendation, 0, len(recs)), recs...),
		Score:            score,
		Footer:           ReportFooter,
	}

	for _, g := range groups {
		line := ResourceLine{
			Status:   ResourceWarning,
			Subject:  subjectLabel(g.SubjectName),
			Grade:    gradeLabel(g.Grade),
			Students: g.TotalStudents,
			Books:    g.TotalBooks,
			Ratio:    NoBooks,
		}
		if g.TotalBooks > 0 {
			bookRatio := g.BookRatio()
			line.Ratio = core.FormatFixed(bookRatio, 1)
			if bookRatio <= TargetBookRatio {
				line.Status = ResourceOK
			}
		}
		doc.ResourceAnalysis = append(doc.ResourceAnalysis, line)
	}
	return doc
}
