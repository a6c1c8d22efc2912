package analytics

import (
	"github.com/go-playground/validator/v10"

	"github.com/psp-schools/psp/core"
)

// DashboardQuery defines the parameters of a dashboard request.
type DashboardQuery struct {
	LookbackDays int `json:"lookback" query:"lookback" validate:"omitempty,min=1,max=366"`
}

// Validate applies defaultDays when no lookback was given.
func (q *DashboardQuery) Validate(validate *validator.Validate, defaultDays int) error {
	if q.LookbackDays == 0 {
		q.LookbackDays = defaultDays
	}
	return validate.Struct(q)
}

// FeaturesQuery defines the parameters of a single school features request.
type FeaturesQuery struct {
	SchoolID     int64 `json:"id" param:"id" validate:"required,min=1"`
	LookbackDays int   `json:"lookback" query:"lookback" validate:"omitempty,min=1,max=366"`
}

func (q *FeaturesQuery) Validate(validate *validator.Validate, defaultDays int) error {
	if q.LookbackDays == 0 {
		q.LookbackDays = defaultDays
	}
	return validate.Struct(q)
}

// AttendanceQuery defines the parameters of an attendance aggregate request.
// A zero SchoolID selects every school.
type AttendanceQuery struct {
	Kind         string `json:"kind" query:"kind" validate:"required,entitykind"`
	SchoolID     int64  `json:"school" query:"school" validate:"omitempty,min=1"`
	LookbackDays int    `json:"lookback" query:"lookback" validate:"omitempty,min=1,max=366"`
}

func (q *AttendanceQuery) Validate(validate *validator.Validate, defaultDays int) error {
	q.Kind = core.CleanString(q.Kind, true /* lower */)
	if q.LookbackDays == 0 {
		q.LookbackDays = defaultDays
	}
	return validate.Struct(q)
}

func (q AttendanceQuery) EntityKind() EntityKind { return EntityKind(q.Kind) }

// ReportQuery defines the parameters of a school report request.
type ReportQuery struct {
	SchoolID int64 `json:"id" param:"id" validate:"required,min=1"`
}
