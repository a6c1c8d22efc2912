package analytics

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/psp-schools/psp/core"
)

// Repository is the persistence collaborator feeding the analytics.
// schoolID == AllSchools selects every school; a zero `since` means no lower date bound.
type Repository interface {
	FetchAttendance(ctx context.Context, kind EntityKind, schoolID int64, since time.Time) ([]AttendanceRecord, error)
	FetchResources(ctx context.Context, schoolID int64) ([]ResourceRecord, error)
	FetchRosterCount(ctx context.Context, kind EntityKind, schoolID int64) (int, error)
	// FetchSchoolIdentity returns ErrSchoolNotFound when no school has this id.
	FetchSchoolIdentity(ctx context.Context, schoolID int64) (SchoolIdentity, error)

	// all-schools mode
	FetchRosterCounts(ctx context.Context, kind EntityKind) ([]RosterCount, error)
	ListSchools(ctx context.Context) ([]SchoolIdentity, error)
}

type (
	// Report is a generated school report along with the values it was built from.
	Report struct {
		Document  ReportDocument  `json:"document"`
		Features  SchoolFeatures  `json:"features"`
		Resources []ResourceGroup `json:"resources"`
	}

	SchoolRoster struct {
		SchoolID      int64  `json:"school_id"`
		SchoolName    string `json:"school_name"`
		TotalStudents int    `json:"total_students"`
		TotalTeachers int    `json:"total_teachers"`
	}

	ChartData struct {
		Labels []string `json:"labels"`
		Values []int    `json:"values"`
	}

	AttendanceTrend struct {
		Students []DailyCount `json:"students"`
		Teachers []DailyCount `json:"teachers"`
	}

	// AttendanceRates are percentages rounded to one decimal.
	AttendanceRates struct {
		Students float64 `json:"students"`
		Teachers float64 `json:"teachers"`
	}

	AttendanceSummary struct {
		Present int `json:"present"`
		Total   int `json:"total"`
		Absent  int `json:"absent"`
	}

	AttendanceTotals struct {
		Students AttendanceSummary `json:"students"`
		Teachers AttendanceSummary `json:"teachers"`
	}

	// Dashboard holds the all-schools aggregates of a lookback window, unwrapped for charting.
	Dashboard struct {
		LookbackDays        int                `json:"lookback_days"`
		TeacherStudent      []SchoolRoster     `json:"teacher_student"`
		ResourceRatios      []ResourceGroup    `json:"resource_ratios"`
		ChartData           ChartData          `json:"chart_data"`
		AttendanceTrend     AttendanceTrend    `json:"attendance_trend"`
		AttendanceRates     AttendanceRates    `json:"attendance_rates"`
		AttendanceCounts    AttendanceTotals   `json:"attendance_counts"`
		LatenessHeatmap     [7]WeekdayLateness `json:"lateness_heatmap"`
		ChronicAbsentees    []ChronicAbsentee  `json:"chronic_absentees"`
		PerformanceFeatures []SchoolFeatures   `json:"performance_features"`
	}
)

type Service struct {
	repo    Repository
	logger  core.Logger
	nowFunc func() time.Time
	newID   func() string
}

func NewService(repo Repository, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{
		repo:    repo,
		logger:  logger,
		nowFunc: time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// NewServiceMock returns a Service frozen at now, issuing sequential report ids ("report-1", ...).
func NewServiceMock(repo Repository, logger core.Logger, now time.Time) *Service {
	svc := NewService(repo, logger)
	svc.nowFunc = func() time.Time { return now }

	var seq int64
	svc.newID = func() string {
		return "report-" + strconv.FormatInt(atomic.AddInt64(&seq, 1), 10)
	}
	return svc
}

// schoolData is the raw input of one school, collected before any computation starts.
type schoolData struct {
	identity   SchoolIdentity
	students   int
	teachers   int
	resources  []ResourceRecord
	studentAtt []AttendanceRecord
	teacherAtt []AttendanceRecord
}

// collect fetches everything about one school. The identity is resolved first: a missing
// school is terminal. The other reads run concurrently and each writes its own field.
func (svc *Service) collect(ctx context.Context, schoolID int64, window Window) (schoolData, error) {
	var data schoolData

	identity, err := svc.repo.FetchSchoolIdentity(ctx, schoolID)
	if err != nil {
		return data, newReportError(schoolID, StageIdentity, err)
	}
	data.identity = identity

	since := window.Since()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		data.students, err = svc.repo.FetchRosterCount(gctx, KindStudent, schoolID)
		return newReportError(schoolID, StageRoster, errors.Wrap(err, "counting students"))
	})
	g.Go(func() (err error) {
		data.teachers, err = svc.repo.FetchRosterCount(gctx, KindTeacher, schoolID)
		return newReportError(schoolID, StageRoster, errors.Wrap(err, "counting teachers"))
	})
	g.Go(func() (err error) {
		data.resources, err = svc.repo.FetchResources(gctx, schoolID)
		return newReportError(schoolID, StageResources, errors.Wrap(err, "fetching resources"))
	})
	g.Go(func() (err error) {
		data.studentAtt, err = svc.repo.FetchAttendance(gctx, KindStudent, schoolID, since)
		return newReportError(schoolID, StageAttendance, errors.Wrap(err, "fetching student attendance"))
	})
	g.Go(func() (err error) {
		data.teacherAtt, err = svc.repo.FetchAttendance(gctx, KindTeacher, schoolID, since)
		return newReportError(schoolID, StageAttendance, errors.Wrap(err, "fetching teacher attendance"))
	})
	if err := g.Wait(); err != nil {
		return schoolData{}, err
	}
	return data, nil
}

func (data schoolData) aggregates(window Window) Aggregates {
	id := data.identity.ID
	return Aggregates{
		School:            data.identity,
		TotalStudents:     data.students,
		TotalTeachers:     data.teachers,
		StudentAttendance: AggregateAttendance(data.studentAtt, KindStudent, id, window),
		TeacherAttendance: AggregateAttendance(data.teacherAtt, KindTeacher, id, window),
		Resources:         AggregateResourceTotals(data.resources, id)[0],
	}
}

// GenerateReport builds the report of one school over its entire attendance history.
func (svc *Service) GenerateReport(ctx context.Context, schoolID int64) (Report, error) {
	window := Unbounded()
	data, err := svc.collect(ctx, schoolID, window)
	if err != nil {
		return Report{}, err
	}

	features := BuildFeatures(data.aggregates(window))
	groups := AggregateResources(data.resources, schoolID)
	recs, score := GenerateRecommendations(features, groups)
	header := ReportHeader{
		ID:          svc.newID(),
		Title:       ReportTitle,
		GeneratedAt: svc.nowFunc().UTC(),
	}
	doc := AssembleReport(header, features, groups, recs, score)

	svc.logger.Info("report generated", map[string]interface{}{
		"school_id": schoolID,
		"report_id": doc.Header.ID,
		"score":     score,
	})
	return Report{Document: doc, Features: features, Resources: groups}, nil
}

// SchoolFeatures builds the feature record of one school over the trailing lookbackDays.
func (svc *Service) SchoolFeatures(ctx context.Context, schoolID int64, lookbackDays int) (SchoolFeatures, error) {
	window := LastDays(lookbackDays, svc.nowFunc())
	data, err := svc.collect(ctx, schoolID, window)
	if err != nil {
		return SchoolFeatures{}, err
	}
	return BuildFeatures(data.aggregates(window)), nil
}

// Attendance aggregates the attendance of `kind` over the trailing lookbackDays.
func (svc *Service) Attendance(ctx context.Context, kind EntityKind, schoolID int64, lookbackDays int) (AttendanceAggregate, error) {
	window := LastDays(lookbackDays, svc.nowFunc())
	if schoolID != AllSchools {
		if _, err := svc.repo.FetchSchoolIdentity(ctx, schoolID); err != nil {
			if errors.Cause(err) == ErrSchoolNotFound {
				// school only filters the records here
				return AttendanceAggregate{}, core.NewValidationError(err, core.FieldError{Field: "school", Error: ErrUnknownSchoolFilter})
			}
			return AttendanceAggregate{}, newReportError(schoolID, StageIdentity, err)
		}
	}
	records, err := svc.repo.FetchAttendance(ctx, kind, schoolID, window.Since())
	if err != nil {
		return AttendanceAggregate{}, newReportError(schoolID, StageAttendance, err)
	}
	return AggregateAttendance(records, kind, schoolID, window), nil
}

func (svc *Service) ListSchools(ctx context.Context) ([]SchoolIdentity, error) {
	schools, err := svc.repo.ListSchools(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing schools")
	}
	return schools, nil
}

// Dashboard aggregates every school over the trailing lookbackDays.
func (svc *Service) Dashboard(ctx context.Context, lookbackDays int) (Dashboard, error) {
	if lookbackDays <= 0 {
		lookbackDays = DashboardWindowDays
	}
	window := LastDays(lookbackDays, svc.nowFunc())
	since := window.Since()

	var (
		schools                []SchoolIdentity
		studentRoster          []RosterCount
		teacherRoster          []RosterCount
		resources              []ResourceRecord
		studentAtt, teacherAtt []AttendanceRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		schools, err = svc.repo.ListSchools(gctx)
		return errors.Wrap(err, "listing schools")
	})
	g.Go(func() (err error) {
		studentRoster, err = svc.repo.FetchRosterCounts(gctx, KindStudent)
		return errors.Wrap(err, "counting students")
	})
	g.Go(func() (err error) {
		teacherRoster, err = svc.repo.FetchRosterCounts(gctx, KindTeacher)
		return errors.Wrap(err, "counting teachers")
	})
	g.Go(func() (err error) {
		resources, err = svc.repo.FetchResources(gctx, AllSchools)
		return errors.Wrap(err, "fetching resources")
	})
	g.Go(func() (err error) {
		studentAtt, err = svc.repo.FetchAttendance(gctx, KindStudent, AllSchools, since)
		return errors.Wrap(err, "fetching student attendance")
	})
	g.Go(func() (err error) {
		teacherAtt, err = svc.repo.FetchAttendance(gctx, KindTeacher, AllSchools, since)
		return errors.Wrap(err, "fetching teacher attendance")
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, errors.Wrap(err, "loading dashboard")
	}

	return buildDashboard(lookbackDays, window, schools, studentRoster, teacherRoster, resources, studentAtt, teacherAtt), nil
}

func buildDashboard(
	lookbackDays int,
	window Window,
	schools []SchoolIdentity,
	studentRoster, teacherRoster []RosterCount,
	resources []ResourceRecord,
	studentAtt, teacherAtt []AttendanceRecord,
) Dashboard {
	names := make(map[int64]string, len(schools))
	for _, s := range schools {
		names[s.ID] = s.Name()
	}
	nameOf := func(id int64) string {
		if name, ok := names[id]; ok {
			return name
		}
		return SchoolIdentity{ID: id}.Name()
	}
	students := rosterMap(studentRoster)
	teachers := rosterMap(teacherRoster)

	dash := Dashboard{
		LookbackDays:        lookbackDays,
		TeacherStudent:      make([]SchoolRoster, 0, len(schools)),
		ChartData:           ChartData{Labels: make([]string, 0, len(schools)), Values: make([]int, 0, len(schools))},
		PerformanceFeatures: make([]SchoolFeatures, 0, len(schools)),
	}

	// totals & trends
	studentAgg := AggregateAttendance(studentAtt, KindStudent, AllSchools, window)
	teacherAgg := AggregateAttendance(teacherAtt, KindTeacher, AllSchools, window)
	dash.AttendanceTrend = AttendanceTrend{Students: studentAgg.ByDate, Teachers: teacherAgg.ByDate}
	dash.AttendanceRates = AttendanceRates{
		Students: percent(studentAgg.Present, studentAgg.Total),
		Teachers: percent(teacherAgg.Present, teacherAgg.Total),
	}
	dash.AttendanceCounts = AttendanceTotals{
		Students: AttendanceSummary{Present: studentAgg.Present, Total: studentAgg.Total, Absent: studentAgg.Absent()},
		Teachers: AttendanceSummary{Present: teacherAgg.Present, Total: teacherAgg.Total, Absent: teacherAgg.Absent()},
	}
	dash.LatenessHeatmap = AggregateLateness(studentAtt, AllSchools, window)

	dash.ChronicAbsentees = CountChronicAbsentees(studentAtt, window, ChronicMinAbsences)
	for i := range dash.ChronicAbsentees {
		dash.ChronicAbsentees[i].SchoolName = nameOf(dash.ChronicAbsentees[i].SchoolID)
	}

	// grouped by school id, subject & grade; listed by school name
	dash.ResourceRatios = AggregateResources(resources, AllSchools)
	for i := range dash.ResourceRatios {
		dash.ResourceRatios[i].SchoolName = nameOf(dash.ResourceRatios[i].SchoolID)
	}
	sort.SliceStable(dash.ResourceRatios, func(i, j int) bool {
		return dash.ResourceRatios[i].SchoolName < dash.ResourceRatios[j].SchoolName
	})

	// per school
	resTotals := make(map[int64]ResourceTotals)
	for _, t := range AggregateResourceTotals(resources, AllSchools) {
		resTotals[t.SchoolID] = t
	}
	studentBySchool := groupBySchool(studentAtt)
	teacherBySchool := groupBySchool(teacherAtt)

	for _, s := range byName(schools) {
		roster := SchoolRoster{
			SchoolID:      s.ID,
			SchoolName:    s.Name(),
			TotalStudents: students[s.ID],
			TotalTeachers: teachers[s.ID],
		}
		dash.TeacherStudent = append(dash.TeacherStudent, roster)
		dash.ChartData.Labels = append(dash.ChartData.Labels, roster.SchoolName)
		dash.ChartData.Values = append(dash.ChartData.Values, roster.TotalStudents)

		totals := resTotals[s.ID]
		totals.SchoolID = s.ID
		dash.PerformanceFeatures = append(dash.PerformanceFeatures, BuildFeatures(Aggregates{
			School:            s,
			TotalStudents:     roster.TotalStudents,
			TotalTeachers:     roster.TotalTeachers,
			StudentAttendance: AggregateAttendance(studentBySchool[s.ID], KindStudent, s.ID, window),
			TeacherAttendance: AggregateAttendance(teacherBySchool[s.ID], KindTeacher, s.ID, window),
			Resources:         totals,
		}))
	}
	return dash
}

// byName returns a copy of schools ordered by display name, then id.
func byName(schools []SchoolIdentity) []SchoolIdentity {
	sorted := append([]SchoolIdentity(nil), schools...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ni, nj := sorted[i].Name(), sorted[j].Name()
		if ni != nj {
			return ni < nj
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func rosterMap(counts []RosterCount) map[int64]int {
	m := make(map[int64]int, len(counts))
	for _, c := range counts {
		m[c.SchoolID] += c.Total
	}
	return m
}

func groupBySchool(records []AttendanceRecord) map[int64][]AttendanceRecord {
	m := make(map[int64][]AttendanceRecord)
	for _, rec := range records {
		m[rec.SchoolID] = append(m[rec.SchoolID], rec)
	}
	return m
}

// percent returns num/den as a percentage rounded to one decimal, 0 when den is 0.
func percent(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*1000) / 10
}
