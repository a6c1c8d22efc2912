package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// AllSchools selects every school in aggregations that accept a school id.
const AllSchools int64 = 0

// EntityKind is the kind of person an attendance record or roster is about.
type EntityKind string

const (
	KindStudent EntityKind = "student"
	KindTeacher EntityKind = "teacher"
)

func (k EntityKind) Valid() bool {
	return k == KindStudent || k == KindTeacher
}

// Attendance statuses. Records may carry other values (eg. "late", "excused"); only these two
// are counted, case-insensitively.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// AttendanceRecord is one entity's attendance on one date. Immutable once recorded.
type AttendanceRecord struct {
	EntityID     int64      `json:"entity_id"`
	Kind         EntityKind `json:"kind"`
	SchoolID     int64      `json:"school_id"`
	Date         time.Time  `json:"date"`
	Status       string     `json:"status"`
	LateMinutes  int        `json:"late_minutes"`
	EarlyMinutes int        `json:"early_minutes"`
	Excused      bool       `json:"excused"`

	// roster columns, joined in by the repository
	EntityName string `json:"entity_name,omitempty"`
	Grade      int    `json:"grade,omitempty"`
	Class      string `json:"class,omitempty"`
}

func (rec AttendanceRecord) IsPresent() bool { return strings.EqualFold(rec.Status, StatusPresent) }
func (rec AttendanceRecord) IsAbsent() bool  { return strings.EqualFold(rec.Status, StatusAbsent) }

// ResourceRecord is a subject/grade allocation snapshot of a school.
type ResourceRecord struct {
	SchoolID     int64  `json:"school_id"`
	SubjectName  string `json:"subject_name"`
	Grade        int    `json:"grade"`
	NumStudents  int    `json:"num_students"`
	NumBooks     int    `json:"num_books"`
	NumComputers int    `json:"num_computers"`
}

type RosterCount struct {
	SchoolID int64      `json:"school_id"`
	Kind     EntityKind `json:"kind"`
	Total    int        `json:"total"`
}

type SchoolIdentity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// Name returns the display name, or "School #<id>" when the school has none.
func (s SchoolIdentity) Name() string {
	if name := strings.TrimSpace(s.DisplayName); name != "" {
		return name
	}
	return "School #" + strconv.FormatInt(s.ID, 10)
}

// Ratio is a quotient that is undefined when its denominator is zero.
// The zero value is undefined.
type Ratio struct {
	value   float64
	defined bool
}

func NewRatio(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{value: num / den, defined: true}
}

func (r Ratio) Value() (float64, bool) { return r.value, r.defined }
func (r Ratio) Defined() bool          { return r.defined }

// Above reports whether the ratio is defined and strictly greater than limit.
func (r Ratio) Above(limit float64) bool { return r.defined && r.value > limit }

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Ratio{value: v, defined: true}
	return nil
}

// SchoolFeatures is the derived, ratio-based view of a school's aggregates.
// Built fresh per request; never stored.
type SchoolFeatures struct {
	SchoolID                int64   `json:"school_id"`
	SchoolName              string  `json:"school_name"`
	TotalStudents           int     `json:"total_students"`
	TotalTeachers           int     `json:"total_teachers"`
	TotalBooks              int     `json:"total_books"`
	TotalComputers          int     `json:"total_computers"`
	TeacherStudentRatio     Ratio   `json:"teacher_student_ratio"`
	StudentAttendanceRate   float64 `json:"student_attendance_rate"`
	TeacherAttendanceRate   float64 `json:"teacher_attendance_rate"`
	BooksPerStudent         float64 `json:"books_per_student"`
	ComputersPerStudent     float64 `json:"computers_per_student"`
	AvgWeeklyAbsentStudents float64 `json:"avg_weekly_absent_students"`
	AvgWeeklyAbsentTeachers float64 `json:"avg_weekly_absent_teachers"`
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityWarning  Priority = "warning"
	PriorityGood     Priority = "good"
)

type Recommendation struct {
	Priority    Priority `json:"priority"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Action      string   `json:"action"`
}

// Window is a trailing lookback window ending on AsOf. Days == 0 is unbounded.
type Window struct {
	Days int
	AsOf time.Time
}

// Unbounded returns a window covering the entire history.
func Unbounded() Window { return Window{} }

// LastDays returns a window of the trailing `days` days up to `asOf`.
func LastDays(days int, asOf time.Time) Window { return Window{Days: days, AsOf: asOf} }

// Since returns the first date in the window (zero if unbounded).
func (w Window) Since() time.Time {
	if w.Days <= 0 {
		return time.Time{}
	}
	return dateOnly(w.AsOf).AddDate(0, 0, -w.Days)
}

func (w Window) Contains(t time.Time) bool {
	if w.Days <= 0 {
		return true
	}
	return !dateOnly(t).Before(w.Since())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// isoWeek returns the ISO year-week key of t, eg. "2026-W07".
func isoWeek(t time.Time) string {
	y, w := t.ISOWeek()
	return strconv.Itoa(y) + "-W" + pad2(w)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// posInf is the book ratio of a group without books.
var posInf = math.Inf(1)
