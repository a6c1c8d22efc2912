package analytics

// Aggregates is everything the feature builder needs about one school.
type Aggregates struct {
	School            SchoolIdentity
	TotalStudents     int
	TotalTeachers     int
	StudentAttendance AttendanceAggregate
	TeacherAttendance AttendanceAggregate
	Resources         ResourceTotals
}

// BuildFeatures derives the feature record of a school. Zero denominators yield 0,
// except the teacher-student ratio which is left undefined.
func BuildFeatures(agg Aggregates) SchoolFeatures {
	f := SchoolFeatures{
		SchoolID:                agg.School.ID,
		SchoolName:              agg.School.Name(),
		TotalStudents:           agg.TotalStudents,
		TotalTeachers:           agg.TotalTeachers,
		TotalBooks:              agg.Resources.TotalBooks,
		TotalComputers:          agg.Resources.TotalComputers,
		TeacherStudentRatio:     NewRatio(float64(agg.TotalStudents), float64(agg.TotalTeachers)),
		StudentAttendanceRate:   rate(agg.StudentAttendance.Present, agg.StudentAttendance.Total),
		TeacherAttendanceRate:   rate(agg.TeacherAttendance.Present, agg.TeacherAttendance.Total),
		AvgWeeklyAbsentStudents: weeklyAverage(agg.StudentAttendance.ByWeek),
		AvgWeeklyAbsentTeachers: weeklyAverage(agg.TeacherAttendance.ByWeek),
	}
	if agg.TotalStudents > 0 {
		f.BooksPerStudent = float64(agg.Resources.TotalBooks) / float64(agg.TotalStudents)
		f.ComputersPerStudent = float64(agg.Resources.TotalComputers) / float64(agg.TotalStudents)
	}
	return f
}

func rate(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// weeklyAverage is the mean absences over the weeks that have any record.
func weeklyAverage(weeks []WeeklyCount) float64 {
	if len(weeks) == 0 {
		return 0
	}
	var sum int
	for _, w := range weeks {
		sum += w.Absent
	}
	return float64(sum) / float64(len(weeks))
}
