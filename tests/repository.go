package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psp-schools/psp/core/analytics"
)

// CheckRepository checks the analytics.Repository contract against an empty store.
func CheckRepository(t *testing.T, repo analytics.Repository, seeder Seeder) {
	ctx := context.Background()
	seeded := Seed(t, seeder, KiberaPrimary(), School{Name: ""})
	kibera, empty := seeded[0], seeded[1]

	t.Run("FetchSchoolIdentity", func(t *testing.T) {
		s, err := repo.FetchSchoolIdentity(ctx, kibera.ID)
		require.NoError(t, err)
		assert.Equal(t, "Kibera Primary", s.Name())

		s, err = repo.FetchSchoolIdentity(ctx, empty.ID)
		require.NoError(t, err)
		assert.Equal(t, analytics.SchoolIdentity{ID: empty.ID}.Name(), s.Name())

		_, err = repo.FetchSchoolIdentity(ctx, empty.ID+100)
		assert.Equal(t, analytics.ErrSchoolNotFound, err)
	})

	t.Run("ListSchools", func(t *testing.T) {
		schools, err := repo.ListSchools(ctx)
		require.NoError(t, err)
		require.Len(t, schools, 2)
		assert.Equal(t, kibera.ID, schools[0].ID)
		assert.Equal(t, empty.ID, schools[1].ID)
	})

	t.Run("FetchRosterCount", func(t *testing.T) {
		students, err := repo.FetchRosterCount(ctx, analytics.KindStudent, kibera.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, students)

		teachers, err := repo.FetchRosterCount(ctx, analytics.KindTeacher, kibera.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, teachers)

		none, err := repo.FetchRosterCount(ctx, analytics.KindStudent, empty.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, none)
	})

	t.Run("FetchRosterCounts", func(t *testing.T) {
		counts, err := repo.FetchRosterCounts(ctx, analytics.KindStudent)
		require.NoError(t, err)
		assert.Equal(t, []analytics.RosterCount{{SchoolID: kibera.ID, Kind: analytics.KindStudent, Total: 2}}, counts)
	})

	t.Run("FetchResources", func(t *testing.T) {
		recs, err := repo.FetchResources(ctx, kibera.ID)
		require.NoError(t, err)
		assert.Equal(t, []analytics.ResourceRecord{
			{SchoolID: kibera.ID, SubjectName: "Math", Grade: 3, NumStudents: 2, NumBooks: 1, NumComputers: 1},
		}, recs)

		recs, err = repo.FetchResources(ctx, empty.ID)
		require.NoError(t, err)
		assert.Empty(t, recs)

		recs, err = repo.FetchResources(ctx, analytics.AllSchools)
		require.NoError(t, err)
		assert.Len(t, recs, 1)
	})

	t.Run("FetchAttendance", func(t *testing.T) {
		recs, err := repo.FetchAttendance(ctx, analytics.KindStudent, kibera.ID, Day(2026, 2, 17))
		require.NoError(t, err)
		require.Len(t, recs, 2)
		for _, rec := range recs {
			assert.Equal(t, kibera.StudentIDs[1], rec.EntityID)
			assert.Equal(t, "Amina", rec.EntityName)
			assert.Equal(t, 3, rec.Grade)
			assert.Equal(t, "3B", rec.Class)
			assert.True(t, rec.IsAbsent())
		}
		assert.True(t, recs[0].Excused)
		assert.True(t, recs[0].Date.Equal(Day(2026, 2, 17)))

		all, err := repo.FetchAttendance(ctx, analytics.KindStudent, analytics.AllSchools, time.Time{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, 10, all[0].LateMinutes)

		teachers, err := repo.FetchAttendance(ctx, analytics.KindTeacher, kibera.ID, Day(2026, 1, 1))
		require.NoError(t, err)
		require.Len(t, teachers, 1)
		assert.Equal(t, "Mr. Otieno", teachers[0].EntityName)
		assert.Equal(t, analytics.KindTeacher, teachers[0].Kind)
	})
}
