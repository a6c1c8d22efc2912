package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/psp-schools/psp/core"
	"github.com/psp-schools/psp/core/analytics"
)

var ErrUnknownEntity = errors.New("unknown student or teacher")

type AnalyticsRepository struct {
	db *DB
}

var _ analytics.Repository = (*AnalyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(db *DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// writes

func (repo *AnalyticsRepository) CreateSchool(_ context.Context, name string) (int64, error) {
	t := repo.db.schools
	t.Lock()
	defer t.Unlock()

	t.pk++
	t.table[t.pk] = &analytics.SchoolIdentity{ID: t.pk, DisplayName: core.CleanString(name)}
	return t.pk, nil
}

func (repo *AnalyticsRepository) schoolExists(id int64) bool {
	repo.db.schools.RLock()
	defer repo.db.schools.RUnlock()
	_, ok := repo.db.schools.table[id]
	return ok
}

func (repo *AnalyticsRepository) createPerson(p person) (int64, error) {
	if !repo.schoolExists(p.SchoolID) {
		return 0, analytics.ErrSchoolNotFound
	}
	t := repo.db.people
	t.Lock()
	defer t.Unlock()

	t.pk++
	p.ID = t.pk
	t.table[p.ID] = &p
	return p.ID, nil
}

func (repo *AnalyticsRepository) CreateStudent(_ context.Context, schoolID int64, name string, grade int, class string) (int64, error) {
	return repo.createPerson(person{Kind: analytics.KindStudent, SchoolID: schoolID, Name: name, Grade: grade, Class: class})
}

func (repo *AnalyticsRepository) CreateTeacher(_ context.Context, schoolID int64, name string) (int64, error) {
	return repo.createPerson(person{Kind: analytics.KindTeacher, SchoolID: schoolID, Name: name})
}

// RecordAttendance stores rec. Its school defaults to the entity's school.
func (repo *AnalyticsRepository) RecordAttendance(_ context.Context, rec analytics.AttendanceRecord) error {
	repo.db.people.RLock()
	p, ok := repo.db.people.table[rec.EntityID]
	repo.db.people.RUnlock()
	if !ok || p.Kind != rec.Kind {
		return ErrUnknownEntity
	}
	if rec.SchoolID == 0 {
		rec.SchoolID = p.SchoolID
	}
	rec.EntityName, rec.Grade, rec.Class = "", 0, "" // joined on read

	t := repo.db.attendance
	t.Lock()
	defer t.Unlock()
	t.rows = append(t.rows, rec)
	return nil
}

func (repo *AnalyticsRepository) AddResource(_ context.Context, rec analytics.ResourceRecord) error {
	if !repo.schoolExists(rec.SchoolID) {
		return analytics.ErrSchoolNotFound
	}
	t := repo.db.resources
	t.Lock()
	defer t.Unlock()
	t.rows = append(t.rows, rec)
	return nil
}

// reads

func matchSchool(schoolID, id int64) bool {
	return schoolID == analytics.AllSchools || schoolID == id
}

func (repo *AnalyticsRepository) FetchAttendance(
	_ context.Context,
	kind analytics.EntityKind,
	schoolID int64,
	since time.Time,
) ([]analytics.AttendanceRecord, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()
	repo.db.people.RLock()
	defer repo.db.people.RUnlock()

	records := make([]analytics.AttendanceRecord, 0)
	for _, rec := range repo.db.attendance.rows {
		if rec.Kind != kind || !matchSchool(schoolID, rec.SchoolID) || rec.Date.Before(since) {
			continue
		}
		if p, ok := repo.db.people.table[rec.EntityID]; ok {
			rec.EntityName, rec.Grade, rec.Class = p.Name, p.Grade, p.Class
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (repo *AnalyticsRepository) FetchResources(_ context.Context, schoolID int64) ([]analytics.ResourceRecord, error) {
	repo.db.resources.RLock()
	defer repo.db.resources.RUnlock()

	records := make([]analytics.ResourceRecord, 0)
	for _, rec := range repo.db.resources.rows {
		if matchSchool(schoolID, rec.SchoolID) {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (repo *AnalyticsRepository) FetchRosterCount(_ context.Context, kind analytics.EntityKind, schoolID int64) (int, error) {
	repo.db.people.RLock()
	defer repo.db.people.RUnlock()

	var total int
	for _, p := range repo.db.people.table {
		if p.Kind == kind && p.SchoolID == schoolID {
			total++
		}
	}
	return total, nil
}

func (repo *AnalyticsRepository) FetchRosterCounts(_ context.Context, kind analytics.EntityKind) ([]analytics.RosterCount, error) {
	repo.db.people.RLock()
	defer repo.db.people.RUnlock()

	bySchool := make(map[int64]int)
	for _, p := range repo.db.people.table {
		if p.Kind == kind {
			bySchool[p.SchoolID]++
		}
	}
	counts := make([]analytics.RosterCount, 0, len(bySchool))
	for id, total := range bySchool {
		counts = append(counts, analytics.RosterCount{SchoolID: id, Kind: kind, Total: total})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].SchoolID < counts[j].SchoolID })
	return counts, nil
}

func (repo *AnalyticsRepository) FetchSchoolIdentity(_ context.Context, schoolID int64) (analytics.SchoolIdentity, error) {
	repo.db.schools.RLock()
	defer repo.db.schools.RUnlock()

	if s, ok := repo.db.schools.table[schoolID]; ok {
		return *s, nil
	}
	return analytics.SchoolIdentity{}, analytics.ErrSchoolNotFound
}

func (repo *AnalyticsRepository) ListSchools(context.Context) ([]analytics.SchoolIdentity, error) {
	repo.db.schools.RLock()
	defer repo.db.schools.RUnlock()

	schools := make([]analytics.SchoolIdentity, 0, len(repo.db.schools.table))
	for _, s := range repo.db.schools.table {
		schools = append(schools, *s)
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].ID < schools[j].ID })
	return schools, nil
}
