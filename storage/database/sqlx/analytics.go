package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/psp-schools/psp/core"
	"github.com/psp-schools/psp/core/analytics"
)

type (
	attendanceRow struct {
		EntityID     int64       `db:"entity_id"`
		SchoolID     int64       `db:"school_id"`
		Date         time.Time   `db:"date"`
		Status       string      `db:"status"`
		LateMinutes  null.Int    `db:"late_minutes"`
		EarlyMinutes null.Int    `db:"early_minutes"`
		Excused      null.Bool   `db:"excused"`
		EntityName   null.String `db:"entity_name"`
		Grade        null.Int    `db:"grade"`
		Class        null.String `db:"class"`
	}

	resourceRow struct {
		SchoolID     int64       `db:"school_id"`
		SubjectName  null.String `db:"subject_name"`
		Grade        null.Int    `db:"grade"`
		NumStudents  null.Int    `db:"num_students"`
		NumBooks     null.Int    `db:"num_books"`
		NumComputers null.Int    `db:"num_computers"`
	}

	rosterRow struct {
		SchoolID int64 `db:"school_id"`
		Total    int   `db:"total"`
	}

	schoolRow struct {
		ID   int64       `db:"id"`
		Name null.String `db:"name"`
	}
)

// attendanceQueries select the records of each entity kind with their roster columns.
var attendanceQueries = map[analytics.EntityKind]string{
	analytics.KindStudent: `
		SELECT a.student_id AS entity_id, a.school_id, a.date, a.status, a.late_minutes, a.early_minutes, a.excused,
		       s.name AS entity_name, s.grade, s.student_class AS class
		FROM student_attendance a
		LEFT JOIN students s ON s.id = a.student_id`,
	analytics.KindTeacher: `
		SELECT a.teacher_id AS entity_id, a.school_id, a.date, a.status, a.late_minutes, a.early_minutes, a.excused,
		       t.name AS entity_name, NULL::INT AS grade, NULL::TEXT AS class
		FROM teacher_attendance a
		LEFT JOIN teachers t ON t.id = a.teacher_id`,
}

var rosterTables = map[analytics.EntityKind]string{
	analytics.KindStudent: "students",
	analytics.KindTeacher: "teachers",
}

type analyticsRepository struct {
	exec core.DBExecutor
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(exec core.DBExecutor) *analyticsRepository {
	return &analyticsRepository{exec: exec}
}

func (repo analyticsRepository) FetchAttendance(
	ctx context.Context,
	kind analytics.EntityKind,
	schoolID int64,
	since time.Time,
) ([]analytics.AttendanceRecord, error) {
	base, ok := attendanceQueries[kind]
	if !ok {
		return nil, errors.Errorf("unknown entity kind %q", kind)
	}

	var (
		where []string
		args  []interface{}
	)
	if schoolID != analytics.AllSchools {
		where = append(where, "a.school_id = ?")
		args = append(args, schoolID)
	}
	if !since.IsZero() {
		where = append(where, "a.date >= ?")
		args = append(args, since)
	}
	q := base
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY a.date, a.id"

	var rows []attendanceRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(q), args...); err != nil {
		return nil, wrapDBError(err, "selecting %s attendance", kind)
	}

	records := make([]analytics.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, analytics.AttendanceRecord{
			EntityID:     r.EntityID,
			Kind:         kind,
			SchoolID:     r.SchoolID,
			Date:         r.Date.UTC(),
			Status:       r.Status,
			LateMinutes:  r.LateMinutes.Int,
			EarlyMinutes: r.EarlyMinutes.Int,
			Excused:      r.Excused.Bool,
			EntityName:   r.EntityName.String,
			Grade:        r.Grade.Int,
			Class:        r.Class.String,
		})
	}
	return records, nil
}

func (repo analyticsRepository) FetchResources(ctx context.Context, schoolID int64) ([]analytics.ResourceRecord, error) {
	q := `SELECT school_id, subject_name, grade, num_students, num_books, num_computers FROM resources`
	var args []interface{}
	if schoolID != analytics.AllSchools {
		q += " WHERE school_id = ?"
		args = append(args, schoolID)
	}
	q += " ORDER BY id"

	var rows []resourceRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(q), args...); err != nil {
		return nil, wrapDBError(err, "selecting resources")
	}

	records := make([]analytics.ResourceRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, analytics.ResourceRecord{
			SchoolID:     r.SchoolID,
			SubjectName:  r.SubjectName.String,
			Grade:        r.Grade.Int,
			NumStudents:  r.NumStudents.Int,
			NumBooks:     r.NumBooks.Int,
			NumComputers: r.NumComputers.Int,
		})
	}
	return records, nil
}

func (repo analyticsRepository) FetchRosterCount(ctx context.Context, kind analytics.EntityKind, schoolID int64) (int, error) {
	table, ok := rosterTables[kind]
	if !ok {
		return 0, errors.Errorf("unknown entity kind %q", kind)
	}
	var total int
	q := repo.exec.Rebind("SELECT COUNT(*) FROM " + table + " WHERE school_id = ?")
	if err := repo.exec.GetContext(ctx, &total, q, schoolID); err != nil {
		return 0, wrapDBError(err, "counting %s", table)
	}
	return total, nil
}

func (repo analyticsRepository) FetchRosterCounts(ctx context.Context, kind analytics.EntityKind) ([]analytics.RosterCount, error) {
	table, ok := rosterTables[kind]
	if !ok {
		return nil, errors.Errorf("unknown entity kind %q", kind)
	}
	var rows []rosterRow
	q := "SELECT school_id, COUNT(*) AS total FROM " + table + " GROUP BY school_id ORDER BY school_id"
	if err := repo.exec.SelectContext(ctx, &rows, q); err != nil {
		return nil, wrapDBError(err, "counting %s", table)
	}

	counts := make([]analytics.RosterCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, analytics.RosterCount{SchoolID: r.SchoolID, Kind: kind, Total: r.Total})
	}
	return counts, nil
}

func (repo analyticsRepository) FetchSchoolIdentity(ctx context.Context, schoolID int64) (analytics.SchoolIdentity, error) {
	var row schoolRow
	q := repo.exec.Rebind("SELECT id, name FROM schools WHERE id = ?")
	if err := repo.exec.GetContext(ctx, &row, q, schoolID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return analytics.SchoolIdentity{}, analytics.ErrSchoolNotFound
		}
		return analytics.SchoolIdentity{}, wrapDBError(err, "selecting school")
	}
	return analytics.SchoolIdentity{ID: row.ID, DisplayName: row.Name.String}, nil
}

func (repo analyticsRepository) ListSchools(ctx context.Context) ([]analytics.SchoolIdentity, error) {
	var rows []schoolRow
	if err := repo.exec.SelectContext(ctx, &rows, "SELECT id, name FROM schools ORDER BY id"); err != nil {
		return nil, wrapDBError(err, "selecting schools")
	}
	schools := make([]analytics.SchoolIdentity, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, analytics.SchoolIdentity{ID: r.ID, DisplayName: r.Name.String})
	}
	return schools, nil
}

// errDBClosed is the message database/sql returns once the pool has been closed.
const errDBClosed = "sql: database is closed"

// wrapDBError wraps err with a message. A closed connection or pool is turned into
// a core shutdown error so that the server stops instead of failing every request.
func wrapDBError(err error, format string, args ...interface{}) error {
	if cause := errors.Cause(err); cause == sql.ErrConnDone || cause.Error() == errDBClosed {
		err = core.NewShutdownError(cause.Error())
	}
	return errors.Wrapf(err, format, args...)
}
