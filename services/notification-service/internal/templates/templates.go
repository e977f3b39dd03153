// Package templates holds the WhatsApp message texts sent for each clinic event.
package templates

import (
	"fmt"
	"strings"
	"text/template"
)

// Event types the dispatcher turns into messages.
const (
	AppointmentConfirmed = "citas.appointment.confirmed.v1"
	AppointmentCancelled = "citas.appointment.cancelled.v1"
	ReminderDue          = "citas.reminder.due.v1"
	BulkMaintenance      = "citas.bulk.maintenance.v1"
)

// Data is what a message can mention.
type Data struct {
	PatientName string
	DentistName string
	Date        string
	Time        string
	Room        string
	Reason      string
}

var texts = map[string]string{
	AppointmentConfirmed: `Hola {{.PatientName}}, tu cita con {{.DentistName}} el {{.Date}} a las {{.Time}} ` +
		`en el consultorio {{.Room}} está confirmada.`,
	AppointmentCancelled: `Hola {{.PatientName}}, tu cita con {{.DentistName}} del {{.Date}} a las {{.Time}} fue cancelada` +
		`{{if eq .Reason "autocancelada"}} porque no se confirmó a tiempo{{end}}. Puedes agendar una nueva cuando lo necesites.`,
	ReminderDue: `Hola {{.PatientName}}, te recordamos tu cita con {{.DentistName}} el {{.Date}} a las {{.Time}} ` +
		`en el consultorio {{.Room}}. Responde para confirmarla.`,
	BulkMaintenance: `Hola {{.PatientName}}, por mantenimiento tu cita del {{.Date}} a las {{.Time}} queda en pausa. ` +
		`Te contactaremos para reprogramarla.`,
}

var parsed = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(texts))
	for name, text := range texts {
		out[name] = template.Must(template.New(name).Option("missingkey=error").Parse(text))
	}
	return out
}()

// Supported reports whether eventType has a message.
func Supported(eventType string) bool {
	_, ok := parsed[eventType]
	return ok
}

// Render produces the message for eventType.
func Render(eventType string, d Data) (string, error) {
	t, ok := parsed[eventType]
	if !ok {
		return "", fmt.Errorf("no template for %s", eventType)
	}
	if strings.TrimSpace(d.PatientName) == "" || d.PatientName == "—" {
		d.PatientName = "paciente"
	}
	var b strings.Builder
	if err := t.Execute(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}
