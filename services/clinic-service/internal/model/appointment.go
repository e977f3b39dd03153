package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
)

type Status string

const (
	StatusPending     Status = "pendiente"
	StatusConfirmed   Status = "confirmada"
	StatusCancelled   Status = "cancelada"
	StatusDone        Status = "realizada"
	StatusMaintenance Status = "mantenimiento"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusDone, StatusMaintenance:
		return true
	}
	return false
}

// Active appointments still expect the patient to show up.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Occupies reports whether the appointment holds its slot. Only cancellation frees it.
func (s Status) Occupies() bool {
	return s != StatusCancelled
}

// ConfirmationSource records the channel a confirmation came through.
type ConfirmationSource string

const (
	SourceWhatsApp  ConfirmationSource = "whatsapp"
	SourceWeb       ConfirmationSource = "web"
	SourceReception ConfirmationSource = "recepcion"
)

func (s ConfirmationSource) Valid() bool {
	return s == SourceWhatsApp || s == SourceWeb || s == SourceReception
}

// Appointment is one row of citas. Nullable columns are pointers.
type Appointment struct {
	ID        int64
	PatientID int64
	DentistID int64
	RoomID    int64
	Date      time.Time
	Time      calendar.Clock
	Reason    string
	Status    Status

	Reschedules       int
	CancelledAt       *time.Time
	CancelledByRole   *Role
	NoShow            bool
	RescheduledAt     *time.Time
	RescheduledByRole *Role
	BatchID           *uuid.UUID

	ConfirmationSource *ConfirmationSource
	Observation        *string
	WhatsAppMessageSID *string
	ReminderSentAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Start is the instant the appointment begins in loc.
func (a Appointment) Start(loc *time.Location) time.Time {
	return calendar.At(a.Date, a.Time, loc)
}

// AppointmentDetail adds the directory data the API and notifications display.
type AppointmentDetail struct {
	Appointment
	PatientName  string
	PatientPhone string
	DentistName  string
	RoomNumber   string
}
