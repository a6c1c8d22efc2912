package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/psp-schools/psp/core"
)

// Thresholds of the recommendation rules.
const (
	StaffingCriticalRatio = 50 // students per teacher
	StaffingWarningRatio  = 40
	StaffingGoodRatio     = 30
	StaffingTargetRatio   = 40 // used to size the hiring need

	LowBookRatio        = 5 // students per book above which a group is "low"
	TargetBookRatio     = 3 // ideal students per book
	BookShortageCiteMax = 3

	ComputerWarningRatio = 20 // students per computer
	ComputerTargetRatio  = 10

	StudentAbsenceCritical = 15 // average weekly absences
	StudentAbsenceWarning  = 8
	TeacherAbsenceWarning  = 3

	ScoreMax                 = 100
	ScoreRatioLimit          = 40
	ScoreRatioPenalty        = 15
	ScoreStudentAbsenceLimit = 10
	ScoreStudentAbsencePen   = 15
	ScoreLowBookGroupsMin    = 3
	ScoreLowBookPenalty      = 20
	ScoreComputerRatio       = 20 // at least one computer per this many students
	ScoreComputerPenalty     = 10
	ScoreTeacherAbsenceLimit = 2
	ScoreTeacherAbsencePen   = 10
	ScoreGood                = 70
	ScoreWarning             = 50
)

// lowBookGroup is a (subject, grade) whose book ratio is above LowBookRatio.
type lowBookGroup struct {
	subject string
	grade   int
	ratio   float64
	needed  int // books to reach TargetBookRatio, may be negative
}

func (g lowBookGroup) label() string {
	return g.subject + " Grade " + gradeLabel(g.grade)
}

// ruleContext is computed once before any rule runs and is never modified afterwards.
type ruleContext struct {
	lowBookGroups []lowBookGroup // largest ratio first
}

func newRuleContext(groups []ResourceGroup) ruleContext {
	low := make([]lowBookGroup, 0)
	for _, g := range groups {
		ratio := g.BookRatio()
		if ratio > LowBookRatio {
			low = append(low, lowBookGroup{
				subject: subjectLabel(g.SubjectName),
				grade:   g.Grade,
				ratio:   ratio,
				needed:  ceilDiv(g.TotalStudents, TargetBookRatio) - g.TotalBooks,
			})
		}
	}
	sort.SliceStable(low, func(i, j int) bool { return low[i].ratio > low[j].ratio })
	return ruleContext{lowBookGroups: low}
}

// rule may emit one recommendation.
type rule func(f SchoolFeatures, rc ruleContext) (Recommendation, bool)

// rules in evaluation (and output) order. The performance rule must stay last.
var rules = []rule{
	staffingRule,
	bookShortageRule,
	technologyRule,
	studentAttendanceRule,
	teacherAttendanceRule,
	performanceRule,
}

// GenerateRecommendations evaluates every rule against the school's features and resource
// groups. It returns the emitted recommendations, in rule order, and the performance score.
func GenerateRecommendations(f SchoolFeatures, groups []ResourceGroup) ([]Recommendation, int) {
	rc := newRuleContext(groups)
	recs := make([]Recommendation, 0, len(rules))
	for _, r := range rules {
		if rec, ok := r(f, rc); ok {
			recs = append(recs, rec)
		}
	}
	return recs, performanceScore(f, rc)
}

func staffingRule(f SchoolFeatures, _ ruleContext) (Recommendation, bool) {
	ratio, ok := f.TeacherStudentRatio.Value()
	if !ok {
		return Recommendation{}, false
	}
	r := core.FormatFixed(ratio, 0)
	switch {
	case ratio > StaffingCriticalRatio:
		hires := ceilDiv(f.TotalStudents, StaffingTargetRatio) - f.TotalTeachers
		return Recommendation{
			Priority: PriorityCritical,
			Category: "Staffing",
			Title:    "Critical Teacher Shortage",
			Description: fmt.Sprintf("Current ratio of %s students per teacher is severely above recommended limit of %d. Immediate hiring required.",
				r, StaffingTargetRatio),
			Action: fmt.Sprintf("Urgently hire at least %d additional teachers.", hires),
		}, true
	case ratio > StaffingWarningRatio:
		return Recommendation{
			Priority:    PriorityWarning,
			Category:    "Staffing",
			Title:       "High Teacher-Student Ratio",
			Description: fmt.Sprintf("Ratio of %s:1 exceeds optimal %d:1 standard.", r, StaffingTargetRatio),
			Action:      "Consider hiring additional teaching staff to improve individual attention.",
		}, true
	case ratio <= StaffingGoodRatio:
		return Recommendation{
			Priority:    PriorityGood,
			Category:    "Staffing",
			Title:       "Excellent Teacher Ratio",
			Description: fmt.Sprintf("Current %s:1 ratio allows for quality individual attention.", r),
			Action:      "Maintain current staffing levels and focus on teacher development.",
		}, true
	}
	return Recommendation{}, false
}

func bookShortageRule(_ SchoolFeatures, rc ruleContext) (Recommendation, bool) {
	if len(rc.lowBookGroups) == 0 {
		return Recommendation{}, false
	}
	cited := rc.lowBookGroups
	if len(cited) > BookShortageCiteMax {
		cited = cited[:BookShortageCiteMax]
	}
	labels := make([]string, 0, len(cited))
	var needed int
	for _, g := range cited {
		labels = append(labels, g.label())
		if g.needed > 0 {
			needed += g.needed
		}
	}
	return Recommendation{
		Priority:    PriorityCritical,
		Category:    "Resources",
		Title:       "Book Shortage Identified",
		Description: fmt.Sprintf("%d subjects have critically low book-to-student ratios.", len(rc.lowBookGroups)),
		Action: fmt.Sprintf("Priority procurement needed for: %s. Total %d books needed.",
			strings.Join(labels, ", "), needed),
	}, true
}

func technologyRule(f SchoolFeatures, _ ruleContext) (Recommendation, bool) {
	if f.TotalStudents <= 0 {
		return Recommendation{}, false
	}
	computers := f.TotalComputers
	if computers == 0 {
		computers = 1
	}
	ratio := float64(f.TotalStudents) / float64(computers)
	if ratio <= ComputerWarningRatio && f.TotalComputers != 0 {
		return Recommendation{}, false
	}

	desc := "No computers available for student use."
	if f.TotalComputers != 0 {
		desc = fmt.Sprintf("Only %d computers for %d students (%s:1 ratio).",
			f.TotalComputers, f.TotalStudents, core.FormatFixed(ratio, 0))
	}
	return Recommendation{
		Priority:    PriorityWarning,
		Category:    "Technology",
		Title:       "Digital Infrastructure Gap",
		Description: desc,
		Action: fmt.Sprintf("Recommend acquiring %d additional devices for effective ICT integration.",
			ceilDiv(f.TotalStudents, ComputerTargetRatio)-f.TotalComputers),
	}, true
}

func studentAttendanceRule(f SchoolFeatures, _ ruleContext) (Recommendation, bool) {
	avg := core.FormatFixed(f.AvgWeeklyAbsentStudents, 1)
	switch {
	case f.AvgWeeklyAbsentStudents > StudentAbsenceCritical:
		return Recommendation{
			Priority:    PriorityCritical,
			Category:    "Attendance",
			Title:       "High Student Absenteeism",
			Description: fmt.Sprintf("Average of %s student absences per week indicates serious attendance issues.", avg),
			Action:      "Implement attendance tracking system, parental engagement programs, and investigate root causes (transport, health, etc.).",
		}, true
	case f.AvgWeeklyAbsentStudents > StudentAbsenceWarning:
		return Recommendation{
			Priority:    PriorityWarning,
			Category:    "Attendance",
			Title:       "Moderate Student Absence Rate",
			Description: fmt.Sprintf("%s average weekly absences requires attention.", avg),
			Action:      "Establish attendance incentive programs and regular parent communication.",
		}, true
	default:
		return Recommendation{
			Priority:    PriorityGood,
			Category:    "Attendance",
			Title:       "Good Attendance Record",
			Description: fmt.Sprintf("Low absence rate of %s per week indicates good engagement.", avg),
			Action:      "Continue current practices and recognize students with perfect attendance.",
		}, true
	}
}

func teacherAttendanceRule(f SchoolFeatures, _ ruleContext) (Recommendation, bool) {
	if f.AvgWeeklyAbsentTeachers <= TeacherAbsenceWarning {
		return Recommendation{}, false
	}
	return Recommendation{
		Priority: PriorityWarning,
		Category: "Staff Attendance",
		Title:    "Teacher Absence Concerns",
		Description: fmt.Sprintf("Average of %s teacher absences weekly affects learning continuity.",
			core.FormatFixed(f.AvgWeeklyAbsentTeachers, 1)),
		Action: "Review teacher workload, implement substitute teacher pool, and address workplace concerns.",
	}, true
}

func performanceRule(f SchoolFeatures, rc ruleContext) (Recommendation, bool) {
	score := performanceScore(f, rc)
	rec := Recommendation{
		Category: "Performance Prediction",
		Title:    "Predicted Performance Score: " + strconv.Itoa(score) + "%",
	}
	switch {
	case score >= ScoreGood:
		rec.Priority = PriorityGood
		rec.Description = "School is on track for good academic outcomes with current resources."
		rec.Action = "Maintain current standards and focus on continuous improvement."
	case score >= ScoreWarning:
		rec.Priority = PriorityWarning
		rec.Description = "School may face challenges; targeted improvements recommended."
		rec.Action = "Focus on addressing critical and warning issues identified above."
	default:
		rec.Priority = PriorityCritical
		rec.Description = "Significant intervention needed to improve learning outcomes."
		rec.Action = "Focus on addressing critical and warning issues identified above."
	}
	return rec, true
}

// performanceScore deducts fixed penalties from ScoreMax; the result is clamped to [0, ScoreMax].
func performanceScore(f SchoolFeatures, rc ruleContext) int {
	score := ScoreMax
	if f.TeacherStudentRatio.Above(ScoreRatioLimit) {
		score -= ScoreRatioPenalty
	}
	if f.AvgWeeklyAbsentStudents > ScoreStudentAbsenceLimit {
		score -= ScoreStudentAbsencePen
	}
	if len(rc.lowBookGroups) >= ScoreLowBookGroupsMin {
		score -= ScoreLowBookPenalty
	}
	if float64(f.TotalComputers) < float64(f.TotalStudents)/ScoreComputerRatio {
		score -= ScoreComputerPenalty
	}
	if f.AvgWeeklyAbsentTeachers > ScoreTeacherAbsenceLimit {
		score -= ScoreTeacherAbsencePen
	}
	if score < 0 {
		score = 0
	}
	return score
}

// ceilDiv returns ceil(n/d) for non-negative n and positive d.
func ceilDiv(n, d int) int {
	return int(math.Ceil(float64(n) / float64(d)))
}

func subjectLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Unknown"
	}
	return name
}

func gradeLabel(grade int) string {
	if grade == 0 {
		return "-"
	}
	return strconv.Itoa(grade)
}
