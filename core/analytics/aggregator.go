package analytics

import (
	"sort"
	"time"
)

const (
	// DashboardWindowDays is the default lookback of the dashboard rates.
	DashboardWindowDays = 30

	ChronicMinAbsences = 3
	ChronicListLimit   = 15
)

type (
	DailyCount struct {
		Date    time.Time `json:"date"`
		Present int       `json:"present"`
		Absent  int       `json:"absent"`
	}

	WeeklyCount struct {
		Week   string `json:"week"` // ISO week, eg. 2026-W07
		Absent int    `json:"absent"`
	}

	AttendanceCounts struct {
		Present int `json:"present"`
		Total   int `json:"total"`
	}

	AttendanceAggregate struct {
		AttendanceCounts
		ByDate []DailyCount  `json:"by_date"`
		ByWeek []WeeklyCount `json:"by_week"`
	}

	// ResourceGroup is the sum of a school's resource records for one (subject, grade).
	ResourceGroup struct {
		SchoolID       int64  `json:"school_id"`
		SchoolName     string `json:"school_name,omitempty"`
		SubjectName    string `json:"subject_name"`
		Grade          int    `json:"grade"`
		TotalStudents  int    `json:"total_students"`
		TotalBooks     int    `json:"total_books"`
		TotalComputers int    `json:"total_computers"`
	}

	ResourceTotals struct {
		SchoolID       int64 `json:"school_id"`
		TotalStudents  int   `json:"total_students"`
		TotalBooks     int   `json:"total_books"`
		TotalComputers int   `json:"total_computers"`
	}

	WeekdayLateness struct {
		Weekday    int `json:"weekday"` // 0 = Monday
		TotalLate  int `json:"total_late"`
		TotalEarly int `json:"total_early"`
	}

	ChronicAbsentee struct {
		EntityID    int64  `json:"entity_id"`
		Name        string `json:"name"`
		Grade       int    `json:"grade"`
		Class       string `json:"class"`
		SchoolID    int64  `json:"school_id"`
		SchoolName  string `json:"school_name,omitempty"`
		AbsentDays  int    `json:"absent_days"`
		ExcusedDays int    `json:"excused_days"`
	}
)

func (c AttendanceCounts) Absent() int {
	if c.Total < c.Present {
		return 0
	}
	return c.Total - c.Present
}

// BookRatio returns students per book, +Inf when the group has no books.
func (g ResourceGroup) BookRatio() float64 {
	if g.TotalBooks <= 0 {
		return posInf
	}
	return float64(g.TotalStudents) / float64(g.TotalBooks)
}

func matchSchool(schoolID, id int64) bool {
	return schoolID == AllSchools || schoolID == id
}

// AggregateAttendance counts present records against all records of `kind` in the window,
// bucketed per day (present/absent) and per ISO week (absences).
func AggregateAttendance(records []AttendanceRecord, kind EntityKind, schoolID int64, window Window) AttendanceAggregate {
	agg := AttendanceAggregate{
		ByDate: make([]DailyCount, 0),
		ByWeek: make([]WeeklyCount, 0),
	}
	days := make(map[time.Time]*DailyCount)
	weeks := make(map[string]*WeeklyCount)

	for _, rec := range records {
		if rec.Kind != kind || !matchSchool(schoolID, rec.SchoolID) || !window.Contains(rec.Date) {
			continue
		}
		agg.Total++

		date := dateOnly(rec.Date)
		day, ok := days[date]
		if !ok {
			day = &DailyCount{Date: date}
			days[date] = day
		}
		wk := isoWeek(date)
		week, ok := weeks[wk]
		if !ok {
			week = &WeeklyCount{Week: wk}
			weeks[wk] = week
		}

		switch {
		case rec.IsPresent():
			agg.Present++
			day.Present++
		case rec.IsAbsent():
			day.Absent++
			week.Absent++
		}
	}

	for _, day := range days {
		agg.ByDate = append(agg.ByDate, *day)
	}
	sort.Slice(agg.ByDate, func(i, j int) bool { return agg.ByDate[i].Date.Before(agg.ByDate[j].Date) })
	for _, week := range weeks {
		agg.ByWeek = append(agg.ByWeek, *week)
	}
	sort.Slice(agg.ByWeek, func(i, j int) bool { return agg.ByWeek[i].Week < agg.ByWeek[j].Week })
	return agg
}

type groupKey struct {
	schoolID int64
	subject  string
	grade    int
}

// AggregateResources sums resource records per (school, subject, grade),
// ordered by school, subject then grade.
func AggregateResources(records []ResourceRecord, schoolID int64) []ResourceGroup {
	index := make(map[groupKey]int)
	groups := make([]ResourceGroup, 0)
	for _, rec := range records {
		if !matchSchool(schoolID, rec.SchoolID) {
			continue
		}
		key := groupKey{schoolID: rec.SchoolID, subject: rec.SubjectName, grade: rec.Grade}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ResourceGroup{SchoolID: rec.SchoolID, SubjectName: rec.SubjectName, Grade: rec.Grade})
		}
		groups[i].TotalStudents += rec.NumStudents
		groups[i].TotalBooks += rec.NumBooks
		groups[i].TotalComputers += rec.NumComputers
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.SchoolID != b.SchoolID {
			return a.SchoolID < b.SchoolID
		}
		if a.SubjectName != b.SubjectName {
			return a.SubjectName < b.SubjectName
		}
		return a.Grade < b.Grade
	})
	return groups
}

// AggregateResourceTotals sums resource records per school. When a specific school is queried
// the result always holds exactly one (possibly zero-valued) row.
func AggregateResourceTotals(records []ResourceRecord, schoolID int64) []ResourceTotals {
	index := make(map[int64]int)
	totals := make([]ResourceTotals, 0)
	if schoolID != AllSchools {
		index[schoolID] = 0
		totals = append(totals, ResourceTotals{SchoolID: schoolID})
	}
	for _, rec := range records {
		if !matchSchool(schoolID, rec.SchoolID) {
			continue
		}
		i, ok := index[rec.SchoolID]
		if !ok {
			i = len(totals)
			index[rec.SchoolID] = i
			totals = append(totals, ResourceTotals{SchoolID: rec.SchoolID})
		}
		totals[i].TotalStudents += rec.NumStudents
		totals[i].TotalBooks += rec.NumBooks
		totals[i].TotalComputers += rec.NumComputers
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].SchoolID < totals[j].SchoolID })
	return totals
}

// AggregateLateness sums late & early minutes of student records per weekday (0 = Monday).
func AggregateLateness(records []AttendanceRecord, schoolID int64, window Window) [7]WeekdayLateness {
	var heatmap [7]WeekdayLateness
	for i := range heatmap {
		heatmap[i].Weekday = i
	}
	for _, rec := range records {
		if rec.Kind != KindStudent || !matchSchool(schoolID, rec.SchoolID) || !window.Contains(rec.Date) {
			continue
		}
		wd := (int(rec.Date.Weekday()) + 6) % 7
		heatmap[wd].TotalLate += rec.LateMinutes
		heatmap[wd].TotalEarly += rec.EarlyMinutes
	}
	return heatmap
}

// CountChronicAbsentees lists students with at least minAbsences absences in the window,
// most absences first (lower grades first on ties), capped at ChronicListLimit entries.
func CountChronicAbsentees(records []AttendanceRecord, window Window, minAbsences int) []ChronicAbsentee {
	if minAbsences <= 0 {
		minAbsences = ChronicMinAbsences
	}

	index := make(map[int64]int)
	all := make([]ChronicAbsentee, 0)
	for _, rec := range records {
		if rec.Kind != KindStudent || !rec.IsAbsent() || !window.Contains(rec.Date) {
			continue
		}
		i, ok := index[rec.EntityID]
		if !ok {
			i = len(all)
			index[rec.EntityID] = i
			all = append(all, ChronicAbsentee{
				EntityID: rec.EntityID,
				Name:     rec.EntityName,
				Grade:    rec.Grade,
				Class:    rec.Class,
				SchoolID: rec.SchoolID,
			})
		}
		all[i].AbsentDays++
		if rec.Excused {
			all[i].ExcusedDays++
		}
	}

	chronic := make([]ChronicAbsentee, 0, len(all))
	for _, a := range all {
		if a.AbsentDays >= minAbsences {
			chronic = append(chronic, a)
		}
	}
	sort.SliceStable(chronic, func(i, j int) bool {
		if chronic[i].AbsentDays != chronic[j].AbsentDays {
			return chronic[i].AbsentDays > chronic[j].AbsentDays
		}
		return chronic[i].Grade < chronic[j].Grade
	})
	if len(chronic) > ChronicListLimit {
		chronic = chronic[:ChronicListLimit]
	}
	return chronic
}
