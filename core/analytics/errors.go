package analytics

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrSchoolNotFound = errors.New("school not found")
)

// ErrUnknownSchoolFilter is the field message for a school filter naming no school.
const ErrUnknownSchoolFilter = "no school has this id"

// Stages of a report generation, reported by ReportError.
const (
	StageIdentity   = "identity"
	StageRoster     = "roster"
	StageResources  = "resources"
	StageAttendance = "attendance"
)

// ReportError is a failure of the persistence collaborator while building one school's report.
type ReportError struct {
	SchoolID int64
	Stage    string
	Err      error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("school %d: %s: %v", e.SchoolID, e.Stage, e.Err)
}

// Cause lets errors.Cause reach the underlying error.
func (e *ReportError) Cause() error  { return e.Err }
func (e *ReportError) Unwrap() error { return e.Err }

func newReportError(schoolID int64, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &ReportError{SchoolID: schoolID, Stage: stage, Err: err}
}
