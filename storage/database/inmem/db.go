package inmemdb

import (
	"sync"

	"github.com/psp-schools/psp/core/analytics"
)

type (
	DB struct {
		schools    *schoolTable
		people     *personTable
		attendance *attendanceTable
		resources  *resourceTable
	}

	schoolTable struct {
		sync.RWMutex
		pk    int64
		table map[int64]*analytics.SchoolIdentity
	}

	// person is a student or a teacher.
	person struct {
		ID       int64
		Kind     analytics.EntityKind
		SchoolID int64
		Name     string
		Grade    int
		Class    string
	}

	personTable struct {
		sync.RWMutex
		pk    int64
		table map[int64]*person
	}

	attendanceTable struct {
		sync.RWMutex
		rows []analytics.AttendanceRecord
	}

	resourceTable struct {
		sync.RWMutex
		rows []analytics.ResourceRecord
	}
)

func Open() (*DB, error) {
	db := &DB{
		schools:    &schoolTable{table: make(map[int64]*analytics.SchoolIdentity)},
		people:     &personTable{table: make(map[int64]*person)},
		attendance: &attendanceTable{},
		resources:  &resourceTable{},
	}
	return db, nil
}
