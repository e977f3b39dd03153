package outbox

import (
	"encoding/json"
	"strconv"

	"github.com/oralflow/oralflow/services/clinic-service/internal/calendar"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
)

// Event types published by the clinic service. The Kafka topic equals the type.
const (
	TypeAppointmentCreated     = "citas.appointment.created.v1"
	TypeAppointmentConfirmed   = "citas.appointment.confirmed.v1"
	TypeAppointmentCancelled   = "citas.appointment.cancelled.v1"
	TypeAppointmentRescheduled = "citas.appointment.rescheduled.v1"
	TypeAppointmentCompleted   = "citas.appointment.completed.v1"
	TypeBulkMaintenance        = "citas.bulk.maintenance.v1"
	TypeBulkReactivated        = "citas.bulk.reactivated.v1"
	TypeReminderDue            = "citas.reminder.due.v1"
)

const (
	AggregateAppointment = "cita"
	AggregateBatch       = "lote"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent marshals payload into an event envelope.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}

// AppointmentEvent is NewEvent keyed by an appointment id.
func AppointmentEvent(id int64, eventType string, payload any) (Event, error) {
	return NewEvent(AggregateAppointment, strconv.FormatInt(id, 10), eventType, payload)
}

// AppointmentPayload is the body of every citas.appointment.* and reminder event.
// Motivo on cancellations says who cancelled: paciente, personal or autocancelada.
type AppointmentPayload struct {
	ID           int64  `json:"id_cita"`
	PatientID    int64  `json:"id_paciente"`
	DentistID    int64  `json:"id_odontologo"`
	RoomID       int64  `json:"id_consultorio"`
	Date         string `json:"fecha"`
	Time         string `json:"hora"`
	Status       string `json:"estado"`
	PatientName  string `json:"paciente_nombre"`
	PatientPhone string `json:"paciente_celular"`
	DentistName  string `json:"odontologo_nombre"`
	RoomNumber   string `json:"consultorio_numero"`
	Reason       string `json:"motivo,omitempty"`
}

func NewAppointmentPayload(d model.AppointmentDetail) AppointmentPayload {
	return AppointmentPayload{
		ID:           d.ID,
		PatientID:    d.PatientID,
		DentistID:    d.DentistID,
		RoomID:       d.RoomID,
		Date:         calendar.FormatDate(d.Date),
		Time:         d.Time.String(),
		Status:       string(d.Status),
		PatientName:  d.PatientName,
		PatientPhone: d.PatientPhone,
		DentistName:  d.DentistName,
		RoomNumber:   d.RoomNumber,
	}
}
