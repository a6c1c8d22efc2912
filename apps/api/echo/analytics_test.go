package echoapi

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psp-schools/psp/core"
	"github.com/psp-schools/psp/core/analytics"
	logsvc "github.com/psp-schools/psp/services/logger"
	inmemdb "github.com/psp-schools/psp/storage/database/inmem"
	testutil "github.com/psp-schools/psp/tests"
)

var testNow = time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	path     string
	wantCode int
}

func setup(t *testing.T) (Server, testutil.Seeded) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := inmemdb.NewAnalyticsRepository(db)
	seeded := testutil.Seed(t, repo, testutil.KiberaPrimary())
	return newTestServer(repo), seeded[0]
}

func newTestServer(repo analytics.Repository) Server {
	conf := &core.Config{
		AppName:   "PSP",
		TestMode:  true,
		Analytics: core.AnalyticsConfig{DashboardLookbackDays: 30},
	}
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		AnalyticsSvc:   analytics.NewServiceMock(repo, logger, testNow),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return app
}

func get(app Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func TestServer_home(t *testing.T) {
	app, _ := setup(t)
	rec := get(app, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to PSP API!", rec.Body.String())
}

func Test_analyticsApi_dashboard(t *testing.T) {
	app, school := setup(t)

	rec := get(app, "/v1/analytics/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)

	var dash analytics.Dashboard
	decode(t, rec, &dash)
	assert.Equal(t, 30, dash.LookbackDays)
	assert.Equal(t, analytics.AttendanceRates{Students: 25, Teachers: 100}, dash.AttendanceRates)
	assert.Equal(t, analytics.ChartData{Labels: []string{"Kibera Primary"}, Values: []int{2}}, dash.ChartData)
	require.Len(t, dash.ChronicAbsentees, 1)
	assert.Equal(t, school.StudentIDs[1], dash.ChronicAbsentees[0].EntityID)

	// Feb 18 falls out of a 1 day window ending Feb 20
	rec = get(app, "/v1/analytics/dashboard?lookback=1")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &dash)
	assert.Equal(t, 1, dash.LookbackDays)
	assert.Empty(t, dash.ChronicAbsentees)

	tests := []httpTest{
		{name: "lookback too large", path: "/v1/analytics/dashboard?lookback=400", wantCode: http.StatusBadRequest},
		{name: "negative lookback", path: "/v1/analytics/dashboard?lookback=-1", wantCode: http.StatusBadRequest},
		{name: "non-int lookback", path: "/v1/analytics/dashboard?lookback=lol", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := get(app, tt.path); rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func Test_analyticsApi_dashboard_fieldErrors(t *testing.T) {
	app, _ := setup(t)

	rec := get(app, "/v1/analytics/dashboard?lookback=400")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fldErrs map[string]string
	decode(t, rec, &fldErrs)
	assert.Contains(t, fldErrs, "lookback")
}

func Test_analyticsApi_listSchools(t *testing.T) {
	app, school := setup(t)

	rec := get(app, "/v1/analytics/schools")
	require.Equal(t, http.StatusOK, rec.Code)

	var schools []analytics.SchoolIdentity
	decode(t, rec, &schools)
	require.Len(t, schools, 1)
	assert.Equal(t, school.ID, schools[0].ID)
	assert.Equal(t, "Kibera Primary", schools[0].Name())
}

func Test_analyticsApi_features(t *testing.T) {
	app, school := setup(t)
	id := strconv.FormatInt(school.ID, 10)

	rec := get(app, "/v1/analytics/schools/"+id+"/features?lookback=7")
	require.Equal(t, http.StatusOK, rec.Code)

	var f analytics.SchoolFeatures
	decode(t, rec, &f)
	assert.Equal(t, school.ID, f.SchoolID)
	assert.Equal(t, 2, f.TotalStudents)
	assert.Equal(t, 1, f.TotalTeachers)
	assert.Equal(t, 0.25, f.StudentAttendanceRate)
	ratio, ok := f.TeacherStudentRatio.Value()
	assert.True(t, ok)
	assert.Equal(t, 2.0, ratio)

	tests := []httpTest{
		{name: "unknown school", path: "/v1/analytics/schools/999/features", wantCode: http.StatusNotFound},
		{name: "invalid id", path: "/v1/analytics/schools/0/features", wantCode: http.StatusBadRequest},
		{name: "non-int id", path: "/v1/analytics/schools/lol/features", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := get(app, tt.path); rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func Test_analyticsApi_attendance(t *testing.T) {
	app, school := setup(t)
	id := strconv.FormatInt(school.ID, 10)

	rec := get(app, "/v1/analytics/attendance?kind=Student&school="+id)
	require.Equal(t, http.StatusOK, rec.Code)

	var agg analytics.AttendanceAggregate
	decode(t, rec, &agg)
	assert.Equal(t, 1, agg.Present)
	assert.Equal(t, 4, agg.Total)
	assert.Len(t, agg.ByDate, 3)
	assert.Equal(t, []analytics.WeeklyCount{{Week: "2026-W08", Absent: 3}}, agg.ByWeek)

	rec = get(app, "/v1/analytics/attendance?kind=teacher")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &agg)
	assert.Equal(t, 1, agg.Present)
	assert.Equal(t, 1, agg.Total)

	tests := []httpTest{
		{name: "missing kind", path: "/v1/analytics/attendance", wantCode: http.StatusBadRequest},
		{name: "unknown kind", path: "/v1/analytics/attendance?kind=parent", wantCode: http.StatusBadRequest},
		{name: "unknown school", path: "/v1/analytics/attendance?kind=student&school=999", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := get(app, tt.path); rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func Test_analyticsApi_attendance_unknownSchool(t *testing.T) {
	app, _ := setup(t)

	rec := get(app, "/v1/analytics/attendance?kind=student&school=999")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fldErrs map[string]string
	decode(t, rec, &fldErrs)
	assert.Equal(t, map[string]string{"school": analytics.ErrUnknownSchoolFilter}, fldErrs)
}

// closedRepo fails like a repository whose database pool has been closed.
type closedRepo struct {
	analytics.Repository
}

func (closedRepo) ListSchools(context.Context) ([]analytics.SchoolIdentity, error) {
	return nil, errors.Wrap(core.NewShutdownError("sql: database is closed"), "selecting schools")
}

func TestServer_shutdownOnClosedDatabase(t *testing.T) {
	app := newTestServer(closedRepo{})

	rec := get(app, "/v1/analytics/schools")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body httpErr
	decode(t, rec, &body)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), body.Error)

	select {
	case sig := <-app.ShutdownSignal():
		assert.Equal(t, syscall.SIGTERM, sig)
	case <-time.After(time.Second):
		t.Fatal("ShutdownSignal() received nothing")
	}
}

func Test_analyticsApi_report(t *testing.T) {
	app, school := setup(t)
	id := strconv.FormatInt(school.ID, 10)

	rec := get(app, "/v1/reports/"+id)
	require.Equal(t, http.StatusOK, rec.Code)

	var rep analytics.Report
	decode(t, rec, &rep)
	doc := rep.Document
	assert.Equal(t, "report-1", doc.Header.ID)
	assert.Equal(t, analytics.ReportTitle, doc.Header.Title)
	assert.Equal(t, "Kibera Primary", doc.Header.SchoolName)
	assert.True(t, doc.Header.GeneratedAt.Equal(testNow))
	assert.Equal(t, 100, doc.Score)
	require.Len(t, doc.Summary, 6)
	assert.Equal(t, analytics.SummaryItem{Label: "Teacher-Student Ratio", Value: "1:2.0"}, doc.Summary[2])
	assert.Equal(t, analytics.SummaryItem{Label: "Average Weekly Student Absences", Value: "3.0"}, doc.Summary[4])
	assert.Equal(t, analytics.ReportFooter, doc.Footer)

	rec = get(app, "/v1/reports/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var herr httpErr
	decode(t, rec, &herr)
	assert.Equal(t, "not found", herr.Error)
}

func Test_analyticsApi_reportMarkdown(t *testing.T) {
	app, school := setup(t)
	id := strconv.FormatInt(school.ID, 10)

	rec := get(app, "/v1/reports/"+id+"/markdown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="school-report-`+id+`.md"`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	assert.Contains(t, body, "# School Performance Report\n")
	assert.Contains(t, body, "**School:** Kibera Primary")
	assert.Contains(t, body, "- ✓ Math | Grade 3 | Students: 2 | Books: 1 | Ratio: 2.0:1\n")
	assert.Contains(t, body, "- Performance Score: 100/100\n")
}
