package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func features(students, teachers, computers int, studentAbs, teacherAbs float64) SchoolFeatures {
	return SchoolFeatures{
		SchoolID:                1,
		SchoolName:              "Test School",
		TotalStudents:           students,
		TotalTeachers:           teachers,
		TotalComputers:          computers,
		TeacherStudentRatio:     NewRatio(float64(students), float64(teachers)),
		AvgWeeklyAbsentStudents: studentAbs,
		AvgWeeklyAbsentTeachers: teacherAbs,
	}
}

func byCategory(recs []Recommendation, category string) []Recommendation {
	var found []Recommendation
	for _, rec := range recs {
		if rec.Category == category {
			found = append(found, rec)
		}
	}
	return found
}

func TestGenerateRecommendations_healthySchool(t *testing.T) {
	f := features(300, 10, 30, 2, 1)
	groups := []ResourceGroup{{SchoolID: 1, SubjectName: "Math", Grade: 1, TotalStudents: 90, TotalBooks: 45}}

	recs, score := GenerateRecommendations(f, groups)
	assert.Equal(t, 100, score)
	require.Len(t, recs, 3)

	assert.Equal(t, Recommendation{
		Priority:    PriorityGood,
		Category:    "Staffing",
		Title:       "Excellent Teacher Ratio",
		Description: "Current 30:1 ratio allows for quality individual attention.",
		Action:      "Maintain current staffing levels and focus on teacher development.",
	}, recs[0])
	assert.Equal(t, "Good Attendance Record", recs[1].Title)
	assert.Equal(t, "Low absence rate of 2.0 per week indicates good engagement.", recs[1].Description)
	assert.Equal(t, Recommendation{
		Priority:    PriorityGood,
		Category:    "Performance Prediction",
		Title:       "Predicted Performance Score: 100%",
		Description: "School is on track for good academic outcomes with current resources.",
		Action:      "Maintain current standards and focus on continuous improvement.",
	}, recs[2])
}

func TestGenerateRecommendations_strugglingSchool(t *testing.T) {
	f := features(600, 10, 0, 20, 4)
	groups := []ResourceGroup{
		{SchoolID: 1, SubjectName: "Math", Grade: 1, TotalStudents: 100, TotalBooks: 10},
		{SchoolID: 1, SubjectName: "English", Grade: 2, TotalStudents: 100},
		{SchoolID: 1, SubjectName: "Science", Grade: 3, TotalStudents: 60, TotalBooks: 10},
		{SchoolID: 1, SubjectName: "Kiswahili", Grade: 4, TotalStudents: 80, TotalBooks: 10},
		{SchoolID: 1, SubjectName: "Art", Grade: 4, TotalStudents: 20, TotalBooks: 10},
	}

	recs, score := GenerateRecommendations(f, groups)
	assert.Equal(t, 30, score)
	require.Len(t, recs, 6)

	categories := make([]string, 0, len(recs))
	for _, rec := range recs {
		categories = append(categories, rec.Category)
	}
	assert.Equal(t, []string{"Staffing", "Resources", "Technology", "Attendance", "Staff Attendance", "Performance Prediction"}, categories)

	assert.Equal(t, Recommendation{
		Priority:    PriorityCritical,
		Category:    "Staffing",
		Title:       "Critical Teacher Shortage",
		Description: "Current ratio of 60 students per teacher is severely above recommended limit of 40. Immediate hiring required.",
		Action:      "Urgently hire at least 5 additional teachers.",
	}, recs[0])
	assert.Equal(t, Recommendation{
		Priority:    PriorityCritical,
		Category:    "Resources",
		Title:       "Book Shortage Identified",
		Description: "4 subjects have critically low book-to-student ratios.",
		Action:      "Priority procurement needed for: English Grade 2, Math Grade 1, Kiswahili Grade 4. Total 75 books needed.",
	}, recs[1])
	assert.Equal(t, "No computers available for student use.", recs[2].Description)
	assert.Equal(t, "Recommend acquiring 60 additional devices for effective ICT integration.", recs[2].Action)
	assert.Equal(t, PriorityCritical, recs[3].Priority)
	assert.Equal(t, "Average of 20.0 student absences per week indicates serious attendance issues.", recs[3].Description)
	assert.Equal(t, "Average of 4.0 teacher absences weekly affects learning continuity.", recs[4].Description)
	assert.Equal(t, Recommendation{
		Priority:    PriorityCritical,
		Category:    "Performance Prediction",
		Title:       "Predicted Performance Score: 30%",
		Description: "Significant intervention needed to improve learning outcomes.",
		Action:      "Focus on addressing critical and warning issues identified above.",
	}, recs[5])
}

func TestGenerateRecommendations_zeroSchool(t *testing.T) {
	recs, score := GenerateRecommendations(SchoolFeatures{SchoolID: 3, SchoolName: "School #3"}, nil)
	assert.Equal(t, 100, score)
	require.Len(t, recs, 2)
	assert.Equal(t, "Good Attendance Record", recs[0].Title)
	assert.Equal(t, "Low absence rate of 0.0 per week indicates good engagement.", recs[0].Description)
	assert.Equal(t, "Predicted Performance Score: 100%", recs[1].Title)
}

func TestGenerateRecommendations_idempotent(t *testing.T) {
	f := features(250, 5, 3, 9, 2.5)
	groups := []ResourceGroup{
		{SchoolID: 1, SubjectName: "", Grade: 0, TotalStudents: 60, TotalBooks: 6},
		{SchoolID: 1, SubjectName: "Math", Grade: 2, TotalStudents: 60, TotalBooks: 6},
	}
	recs1, score1 := GenerateRecommendations(f, groups)
	recs2, score2 := GenerateRecommendations(f, groups)
	assert.Equal(t, recs1, recs2)
	assert.Equal(t, score1, score2)

	res := byCategory(recs1, "Resources")
	require.Len(t, res, 1)
	assert.Equal(t, "Priority procurement needed for: Unknown Grade -, Math Grade 2. Total 28 books needed.", res[0].Action)
}

func TestStaffingRule(t *testing.T) {
	tests := []struct {
		name      string
		students  int
		teachers  int
		wantTitle string
		wantDesc  string
	}{
		{name: "critical", students: 510, teachers: 10, wantTitle: "Critical Teacher Shortage",
			wantDesc: "Current ratio of 51 students per teacher is severely above recommended limit of 40. Immediate hiring required."},
		{name: "exactly 50", students: 500, teachers: 10, wantTitle: "High Teacher-Student Ratio",
			wantDesc: "Ratio of 50:1 exceeds optimal 40:1 standard."},
		{name: "warning", students: 450, teachers: 10, wantTitle: "High Teacher-Student Ratio",
			wantDesc: "Ratio of 45:1 exceeds optimal 40:1 standard."},
		{name: "between 30 and 40", students: 350, teachers: 10},
		{name: "exactly 40", students: 400, teachers: 10},
		{name: "exactly 30", students: 300, teachers: 10, wantTitle: "Excellent Teacher Ratio",
			wantDesc: "Current 30:1 ratio allows for quality individual attention."},
		{name: "no teachers", students: 300, teachers: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, _ := GenerateRecommendations(features(tt.students, tt.teachers, tt.students, 0, 0), nil)
			staffing := byCategory(recs, "Staffing")
			if tt.wantTitle == "" {
				assert.Empty(t, staffing)
				return
			}
			require.Len(t, staffing, 1)
			assert.Equal(t, tt.wantTitle, staffing[0].Title)
			assert.Equal(t, tt.wantDesc, staffing[0].Description)
		})
	}
}

func TestTechnologyRule(t *testing.T) {
	tests := []struct {
		name       string
		students   int
		computers  int
		wantDesc   string
		wantAction string
	}{
		{name: "no students", students: 0, computers: 0},
		{name: "enough computers", students: 100, computers: 5},
		{name: "few computers", students: 100, computers: 4,
			wantDesc:   "Only 4 computers for 100 students (25:1 ratio).",
			wantAction: "Recommend acquiring 6 additional devices for effective ICT integration."},
		{name: "no computers", students: 95, computers: 0,
			wantDesc:   "No computers available for student use.",
			wantAction: "Recommend acquiring 10 additional devices for effective ICT integration."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, _ := GenerateRecommendations(features(tt.students, 4, tt.computers, 0, 0), nil)
			tech := byCategory(recs, "Technology")
			if tt.wantDesc == "" {
				assert.Empty(t, tech)
				return
			}
			require.Len(t, tech, 1)
			assert.Equal(t, PriorityWarning, tech[0].Priority)
			assert.Equal(t, tt.wantDesc, tech[0].Description)
			assert.Equal(t, tt.wantAction, tech[0].Action)
		})
	}
}

func TestStudentAttendanceRule(t *testing.T) {
	tests := []struct {
		absences float64
		want     Priority
	}{
		{absences: 0, want: PriorityGood},
		{absences: 8, want: PriorityGood},
		{absences: 8.5, want: PriorityWarning},
		{absences: 15, want: PriorityWarning},
		{absences: 15.1, want: PriorityCritical},
	}
	for _, tt := range tests {
		recs, _ := GenerateRecommendations(features(100, 5, 10, tt.absences, 0), nil)
		attendance := byCategory(recs, "Attendance")
		if assert.Len(t, attendance, 1, "absences = %v", tt.absences) {
			assert.Equal(t, tt.want, attendance[0].Priority, "absences = %v", tt.absences)
		}
	}
}

func TestResourcesRule(t *testing.T) {
	tests := []struct {
		name      string
		students  int
		books     int
		wantCount int
	}{
		{name: "no books", students: 40, books: 0, wantCount: 1},
		{name: "above 5", students: 51, books: 10, wantCount: 1},
		{name: "exactly 5", students: 50, books: 10},
		{name: "below 5", students: 30, books: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := []ResourceGroup{{SchoolID: 1, SubjectName: "Math", Grade: 1, TotalStudents: tt.students, TotalBooks: tt.books}}
			recs, _ := GenerateRecommendations(features(100, 5, 10, 0, 0), groups)
			res := byCategory(recs, "Resources")
			if tt.wantCount == 0 {
				assert.Empty(t, res)
				return
			}
			require.Len(t, res, 1)
			assert.Equal(t, PriorityCritical, res[0].Priority)
		})
	}
}

func TestTeacherAttendanceRule(t *testing.T) {
	tests := []struct {
		absences float64
		want     bool
	}{
		{absences: 0, want: false},
		{absences: 2.9, want: false},
		{absences: 3, want: false},
		{absences: 3.1, want: true},
	}
	for _, tt := range tests {
		recs, _ := GenerateRecommendations(features(100, 5, 10, 0, tt.absences), nil)
		staff := byCategory(recs, "Staff Attendance")
		if tt.want {
			assert.Len(t, staff, 1, "absences = %v", tt.absences)
		} else {
			assert.Empty(t, staff, "absences = %v", tt.absences)
		}
	}
}

func TestPerformanceScore(t *testing.T) {
	lowGroups := []ResourceGroup{
		{SubjectName: "A", Grade: 1, TotalStudents: 60, TotalBooks: 1},
		{SubjectName: "B", Grade: 1, TotalStudents: 60, TotalBooks: 1},
		{SubjectName: "C", Grade: 1, TotalStudents: 60, TotalBooks: 1},
	}
	tests := []struct {
		name   string
		f      SchoolFeatures
		groups []ResourceGroup
		want   int
	}{
		{name: "no deductions", f: features(100, 5, 5, 10, 2), want: 100},
		{name: "undefined ratio", f: features(100, 0, 5, 0, 0), want: 100},
		{name: "ratio", f: features(410, 10, 100, 0, 0), want: 85},
		{name: "student absences", f: features(100, 5, 5, 10.5, 0), want: 85},
		{name: "two low book groups", f: features(100, 5, 5, 0, 0), groups: lowGroups[:2], want: 100},
		{name: "three low book groups", f: features(100, 5, 5, 0, 0), groups: lowGroups, want: 80},
		{name: "three groups at ratio 5", f: features(100, 5, 5, 0, 0), groups: []ResourceGroup{
			{SubjectName: "A", Grade: 1, TotalStudents: 50, TotalBooks: 10},
			{SubjectName: "B", Grade: 1, TotalStudents: 50, TotalBooks: 10},
			{SubjectName: "C", Grade: 1, TotalStudents: 50, TotalBooks: 10},
		}, want: 100},
		{name: "computers", f: features(100, 5, 4, 0, 0), want: 90},
		{name: "teacher absences", f: features(100, 5, 5, 0, 2.1), want: 90},
		{name: "everything", f: features(1000, 10, 0, 11, 3), groups: lowGroups, want: 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, score := GenerateRecommendations(tt.f, tt.groups)
			assert.Equal(t, tt.want, score)
			assert.GreaterOrEqual(t, score, 0)
			assert.LessOrEqual(t, score, ScoreMax)
		})
	}
}

func TestPerformanceRule(t *testing.T) {
	tests := []struct {
		name string
		f    SchoolFeatures
		want Priority
	}{
		{name: "70 is good", f: features(410, 10, 100, 11, 0), want: PriorityGood},
		{name: "65 is warning", f: features(100, 5, 4, 11, 3), want: PriorityWarning},
		{name: "below 50", f: features(1000, 10, 0, 11, 3), want: PriorityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, _ := GenerateRecommendations(tt.f, nil)
			perf := byCategory(recs, "Performance Prediction")
			require.Len(t, perf, 1)
			assert.Equal(t, tt.want, perf[0].Priority)
			assert.Equal(t, perf[0], recs[len(recs)-1])
		})
	}
}
