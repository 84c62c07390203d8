package storage

import (
	"context"
	"encoding/json"

	"tracker-api/domain"
)

// PublishChange sends a change event to the events queue so downstream
// consumers can react without polling the tables.
func (s *Storage) PublishChange(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.events.EnqueueMessage(ctx, string(data), nil)
	return err
}
