package storage

import (
	"context"

	"github.com/oralflow/oralflow/libs/db"
)

const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Notification is one delivery attempt for one appointment.
type Notification struct {
	EventID           string
	EventType         string
	AppointmentID     int64
	Channel           string
	Recipient         string
	Body              string
	Status            string
	ProviderID        string
	ProviderMessageID string
	Error             string
}

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO notifications
			(event_id, event_type, id_cita, channel, recipient, body, status, provider_id, provider_message_id, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''))
	`, n.EventID, n.EventType, n.AppointmentID, n.Channel, n.Recipient, n.Body, n.Status,
		n.ProviderID, n.ProviderMessageID, n.Error)
	return err
}
