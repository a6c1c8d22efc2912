package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/psp-schools/psp/core"
	"github.com/psp-schools/psp/core/analytics"
	"github.com/psp-schools/psp/storage/database"
)

// Seeder is implemented by the in-memory repository and by the SQL seeder below.
type Seeder interface {
	CreateSchool(ctx context.Context, name string) (int64, error)
	CreateStudent(ctx context.Context, schoolID int64, name string, grade int, class string) (int64, error)
	CreateTeacher(ctx context.Context, schoolID int64, name string) (int64, error)
	RecordAttendance(ctx context.Context, rec analytics.AttendanceRecord) error
	AddResource(ctx context.Context, rec analytics.ResourceRecord) error
}

type (
	Student struct {
		Name  string
		Grade int
		Class string
	}

	// Attendance references a student or teacher by its index in the school's roster.
	Attendance struct {
		Kind         analytics.EntityKind
		Index        int
		Date         time.Time
		Status       string
		LateMinutes  int
		EarlyMinutes int
		Excused      bool
	}

	Resource struct {
		Subject   string
		Grade     int
		Students  int
		Books     int
		Computers int
	}

	School struct {
		Name       string
		Students   []Student
		Teachers   []string
		Attendance []Attendance
		Resources  []Resource
	}

	// Seeded holds the ids given to a seeded school and its roster.
	Seeded struct {
		ID         int64
		StudentIDs []int64
		TeacherIDs []int64
	}
)

func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Seed inserts the schools through `seeder`, failing the test on error.
func Seed(t *testing.T, seeder Seeder, schools ...School) []Seeded {
	t.Helper()
	ctx := context.Background()

	seeded := make([]Seeded, 0, len(schools))
	for _, school := range schools {
		id, err := seeder.CreateSchool(ctx, school.Name)
		if err != nil {
			t.Fatalf("Seed() failed: %v", err)
		}
		s := Seeded{ID: id}
		for _, st := range school.Students {
			sid, err := seeder.CreateStudent(ctx, id, st.Name, st.Grade, st.Class)
			if err != nil {
				t.Fatalf("Seed() failed: %v", err)
			}
			s.StudentIDs = append(s.StudentIDs, sid)
		}
		for _, name := range school.Teachers {
			tid, err := seeder.CreateTeacher(ctx, id, name)
			if err != nil {
				t.Fatalf("Seed() failed: %v", err)
			}
			s.TeacherIDs = append(s.TeacherIDs, tid)
		}
		for _, att := range school.Attendance {
			var entityID int64
			if att.Kind == analytics.KindTeacher {
				entityID = s.TeacherIDs[att.Index]
			} else {
				entityID = s.StudentIDs[att.Index]
			}
			rec := analytics.AttendanceRecord{
				EntityID:     entityID,
				Kind:         att.Kind,
				SchoolID:     id,
				Date:         att.Date,
				Status:       att.Status,
				LateMinutes:  att.LateMinutes,
				EarlyMinutes: att.EarlyMinutes,
				Excused:      att.Excused,
			}
			if err := seeder.RecordAttendance(ctx, rec); err != nil {
				t.Fatalf("Seed() failed: %v", err)
			}
		}
		for _, res := range school.Resources {
			rec := analytics.ResourceRecord{
				SchoolID:     id,
				SubjectName:  res.Subject,
				Grade:        res.Grade,
				NumStudents:  res.Students,
				NumBooks:     res.Books,
				NumComputers: res.Computers,
			}
			if err := seeder.AddResource(ctx, rec); err != nil {
				t.Fatalf("Seed() failed: %v", err)
			}
		}
		seeded = append(seeded, s)
	}
	return seeded
}

// KiberaPrimary is a small school with a chronic absentee, a teacher and one resource group.
func KiberaPrimary() School {
	return School{
		Name: "Kibera Primary",
		Students: []Student{
			{Name: "Baraka", Grade: 3, Class: "3A"},
			{Name: "Amina", Grade: 3, Class: "3B"},
		},
		Teachers: []string{"Mr. Otieno"},
		Attendance: []Attendance{
			{Kind: analytics.KindStudent, Index: 0, Date: Day(2026, 2, 16), Status: "present", LateMinutes: 10},
			{Kind: analytics.KindStudent, Index: 1, Date: Day(2026, 2, 16), Status: "absent"},
			{Kind: analytics.KindStudent, Index: 1, Date: Day(2026, 2, 17), Status: "absent", Excused: true},
			{Kind: analytics.KindStudent, Index: 1, Date: Day(2026, 2, 18), Status: "absent"},
			{Kind: analytics.KindTeacher, Index: 0, Date: Day(2026, 2, 16), Status: "present"},
		},
		Resources: []Resource{
			{Subject: "Math", Grade: 3, Students: 2, Books: 1, Computers: 1},
		},
	}
}

// sqlSeeder inserts rows the way the app's SQL schema expects them.
type sqlSeeder struct {
	db *sqlx.DB
}

func NewSQLSeeder(db *sqlx.DB) Seeder {
	return &sqlSeeder{db: db}
}

func (s *sqlSeeder) insert(ctx context.Context, q string, args ...interface{}) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(q+" RETURNING id"), args...)
	return id, err
}

func (s *sqlSeeder) CreateSchool(ctx context.Context, name string) (int64, error) {
	return s.insert(ctx, "INSERT INTO schools (name) VALUES (?)", name)
}

func (s *sqlSeeder) CreateStudent(ctx context.Context, schoolID int64, name string, grade int, class string) (int64, error) {
	return s.insert(ctx, "INSERT INTO students (school_id, name, grade, student_class) VALUES (?, ?, ?, ?)",
		schoolID, name, grade, class)
}

func (s *sqlSeeder) CreateTeacher(ctx context.Context, schoolID int64, name string) (int64, error) {
	return s.insert(ctx, "INSERT INTO teachers (school_id, name) VALUES (?, ?)", schoolID, name)
}

func (s *sqlSeeder) RecordAttendance(ctx context.Context, rec analytics.AttendanceRecord) error {
	table, column := "student_attendance", "student_id"
	if rec.Kind == analytics.KindTeacher {
		table, column = "teacher_attendance", "teacher_id"
	}
	_, err := s.insert(ctx,
		"INSERT INTO "+table+" ("+column+", school_id, date, status, late_minutes, early_minutes, excused) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.EntityID, rec.SchoolID, rec.Date, rec.Status, rec.LateMinutes, rec.EarlyMinutes, rec.Excused)
	return err
}

func (s *sqlSeeder) AddResource(ctx context.Context, rec analytics.ResourceRecord) error {
	_, err := s.insert(ctx,
		"INSERT INTO resources (school_id, subject_name, grade, num_students, num_books, num_computers) VALUES (?, ?, ?, ?, ?, ?)",
		rec.SchoolID, rec.SubjectName, rec.Grade, rec.NumStudents, rec.NumBooks, rec.NumComputers)
	return err
}

// PrepareDB opens the TEST database, migrates it and empties every table.
// The test is skipped when no database is reachable.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if os.Getenv("ENV") == "" {
		_ = os.Setenv("ENV", "TEST")
	}
	conf, err := core.NewConfig()
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := database.Ping(ctx, db, 3); err != nil {
		t.Skipf("database unavailable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if _, err := db.Exec("TRUNCATE schools, students, teachers, student_attendance, teacher_attendance, resources RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}
