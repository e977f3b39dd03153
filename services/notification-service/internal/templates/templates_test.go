package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReminder(t *testing.T) {
	body, err := Render(ReminderDue, Data{
		PatientName: "Ana",
		DentistName: "Dr. Pérez",
		Date:        "20/10/2026",
		Time:        "09:00",
		Room:        "2",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola Ana, te recordamos tu cita con Dr. Pérez el 20/10/2026 a las 09:00 en el consultorio 2. Responde para confirmarla.", body)
}

func TestRenderCancelledMentionsAutocancel(t *testing.T) {
	body, err := Render(AppointmentCancelled, Data{PatientName: "Ana", Reason: "autocancelada"})
	require.NoError(t, err)
	assert.Contains(t, body, "no se confirmó a tiempo")

	body, err = Render(AppointmentCancelled, Data{PatientName: "Ana", Reason: "paciente"})
	require.NoError(t, err)
	assert.NotContains(t, body, "no se confirmó a tiempo")
}

func TestRenderFallsBackOnMissingName(t *testing.T) {
	body, err := Render(BulkMaintenance, Data{PatientName: "—"})
	require.NoError(t, err)
	assert.Contains(t, body, "Hola paciente,")
}

func TestRenderUnknownEvent(t *testing.T) {
	assert.False(t, Supported("citas.appointment.created.v1"))
	_, err := Render("citas.appointment.created.v1", Data{})
	assert.Error(t, err)
}
