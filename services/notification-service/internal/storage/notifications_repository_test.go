package storage

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("evt-1", "citas.reminder.due.v1", int64(7), "whatsapp", "+593991234567", "hola",
			StatusSent, "whatsapp-webhook", "SM1", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewRepository(mock).Insert(context.Background(), Notification{
		EventID:           "evt-1",
		EventType:         "citas.reminder.due.v1",
		AppointmentID:     7,
		Channel:           "whatsapp",
		Recipient:         "+593991234567",
		Body:              "hola",
		Status:            StatusSent,
		ProviderID:        "whatsapp-webhook",
		ProviderMessageID: "SM1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
