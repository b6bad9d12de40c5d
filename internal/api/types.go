package api

import (
	"time"

	"github.com/google/uuid"
)

type SlotResponse struct {
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

type SlotsResponse struct {
	DoctorID      uuid.UUID      `json:"doctor_id"`
	Date          string         `json:"date"`
	Slots         []SlotResponse `json:"slots"`
	Blocked       bool           `json:"blocked"`
	BlockedReason string         `json:"blocked_reason,omitempty"`
}

type BlockedResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Blocked  bool      `json:"blocked"`
}

type RuleRequest struct {
	Weekday   *int   `json:"weekday" validate:"required,min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Active    *bool  `json:"active"`
}

type RuleResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Weekday   int       `json:"weekday"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Active    bool      `json:"active"`
}

type PeriodRequest struct {
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Reason    string  `json:"reason"`
}

type PeriodResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartDate string    `json:"start_date"`
	EndDate   *string   `json:"end_date,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Active    bool      `json:"active"`
}

type CreateBookingRequest struct {
	DoctorID        string    `json:"doctor_id" validate:"required,uuid"`
	PatientID       string    `json:"patient_id" validate:"required,uuid"`
	Kind            string    `json:"kind" validate:"required,oneof=appointment surgery"`
	StartAt         time.Time `json:"start_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=1"`
	ServiceID       *string   `json:"service_id" validate:"omitempty,uuid"`
}

type RescheduleRequest struct {
	NewStartAt time.Time `json:"new_start_at" validate:"required"`
}

type BookingResponse struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	Kind            string     `json:"kind"`
	StartAt         time.Time  `json:"start_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	ServiceID       *uuid.UUID `json:"service_id,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
