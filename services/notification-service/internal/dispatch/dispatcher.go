// Package dispatch turns clinic events into WhatsApp messages and records every attempt.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/oralflow/oralflow/libs/kafkax"
	"github.com/oralflow/oralflow/services/notification-service/internal/phone"
	"github.com/oralflow/oralflow/services/notification-service/internal/storage"
	"github.com/oralflow/oralflow/services/notification-service/internal/templates"
	"github.com/oralflow/oralflow/services/notification-service/internal/whatsapp"
)

const channelWhatsApp = "whatsapp"

// Appointment mirrors the appointment payload the clinic service publishes.
type Appointment struct {
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

// Batch mirrors the bulk maintenance payload.
type Batch struct {
	BatchID      string        `json:"batch_id"`
	Scope        string        `json:"alcance"`
	ScopeID      string        `json:"alcance_id,omitempty"`
	Total        int64         `json:"total"`
	Appointments []Appointment `json:"citas"`
}

type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
}

type Dispatcher struct {
	sender whatsapp.Sender
	store  Recorder
	region string
	logger *slog.Logger
}

func New(sender whatsapp.Sender, store Recorder, region string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, store: store, region: region, logger: logger}
}

// Topics lists the event types the dispatcher has messages for.
func Topics() []string {
	return []string{
		templates.AppointmentConfirmed,
		templates.AppointmentCancelled,
		templates.ReminderDue,
		templates.BulkMaintenance,
	}
}

// Handle sends the messages for one event. Delivery failures are recorded and
// swallowed; only storage errors are returned so the event is retried.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	if !templates.Supported(meta.EventType) {
		d.logger.Info("event ignored", "event_type", meta.EventType, "event_id", meta.EventID)
		return nil
	}

	var targets []Appointment
	if meta.EventType == templates.BulkMaintenance {
		var b Batch
		if err := json.Unmarshal(msg.Value, &b); err != nil {
			d.logger.Error("invalid batch payload", "err", err, "event_id", meta.EventID)
			return nil
		}
		targets = b.Appointments
	} else {
		var a Appointment
		if err := json.Unmarshal(msg.Value, &a); err != nil {
			d.logger.Error("invalid appointment payload", "err", err, "event_id", meta.EventID)
			return nil
		}
		targets = []Appointment{a}
	}

	for _, a := range targets {
		if err := d.deliver(ctx, meta, a); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, meta kafkax.EventMeta, a Appointment) error {
	n := storage.Notification{
		EventID:       meta.EventID,
		EventType:     meta.EventType,
		AppointmentID: a.ID,
		Channel:       channelWhatsApp,
		Recipient:     a.PatientPhone,
		ProviderID:    d.sender.ProviderID(),
	}

	to, err := phone.Normalize(a.PatientPhone, d.region)
	if err != nil {
		n.Status = storage.StatusSkipped
		n.Error = err.Error()
		d.logger.Warn("patient phone unusable", "id_cita", a.ID, "err", err)
		return d.store.Insert(ctx, n)
	}
	n.Recipient = to

	body, err := templates.Render(meta.EventType, templates.Data{
		PatientName: a.PatientName,
		DentistName: a.DentistName,
		Date:        displayDate(a.Date),
		Time:        a.Time,
		Room:        a.RoomNumber,
		Reason:      a.Reason,
	})
	if err != nil {
		n.Status = storage.StatusFailed
		n.Error = err.Error()
		d.logger.Error("render failed", "id_cita", a.ID, "err", err)
		return d.store.Insert(ctx, n)
	}
	n.Body = body

	messageID, err := d.sender.Send(ctx, to, body)
	if err != nil {
		n.Status = storage.StatusFailed
		n.Error = err.Error()
		d.logger.Error("whatsapp send failed", "id_cita", a.ID, "err", err)
	} else {
		n.Status = storage.StatusSent
		n.ProviderMessageID = messageID
	}
	if err := d.store.Insert(ctx, n); err != nil {
		d.logger.Error("failed to persist notification", "id_cita", a.ID, "err", err)
		return err
	}
	d.logger.Info("notification processed", "id_cita", a.ID, "event_type", meta.EventType, "status", n.Status)
	return nil
}

// displayDate renders YYYY-MM-DD as DD/MM/YYYY and leaves anything else alone.
func displayDate(raw string) string {
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return raw
	}
	return t.Format("02/01/2006")
}
