package domain

import "time"

// Update is a free-text status note attached to one entity in the hierarchy.
// Updates are immutable once created and survive deletion of their entity.
type Update struct {
	ID           string     `json:"id"`
	Message      string     `json:"message"`
	AuthorUserID string     `json:"authorUserId"`
	EntityType   EntityType `json:"entityType"`
	EntityID     string     `json:"entityId"`
	CreatedAt    time.Time  `json:"createdAt"`
}
