package inbox

import (
	"context"

	"github.com/oralflow/oralflow/libs/db"
)

// Repository records consumed event ids so redelivered events are handled once.
type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Record returns false when eventID was already recorded.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if _, dup := db.UniqueViolation(err); dup {
		return false, nil
	}
	return false, err
}

// Forget removes eventID so a failed event can be processed again on redelivery.
func (r *Repository) Forget(ctx context.Context, eventID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM inbox_events WHERE event_id = $1`, eventID)
	return err
}
