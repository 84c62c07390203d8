package domain

import "encoding/json"

// Collection names one of the persisted entity collections.
type Collection string

const (
	ColProjects Collection = "projects"
	ColTasks    Collection = "tasks"
	ColSubTasks Collection = "subtasks"
	ColUpdates  Collection = "updates"
)

// MutationOp is the kind of write a mutation carries.
type MutationOp string

const (
	OpCreate MutationOp = "create"
	OpUpdate MutationOp = "update"
	OpDelete MutationOp = "delete"
)

// Mutation describes one persistence side effect of a store operation.
// Exactly one payload pointer is set for create and update operations;
// delete operations carry only the entity id. A cascade delete produces one
// mutation per removed entity, children first, so the remote store is never
// asked to keep a child whose parent is already gone.
type Mutation struct {
	Op         MutationOp
	Collection Collection
	EntityID   string
	Project    *Project
	Task       *Task
	SubTask    *SubTask
	Update     *Update
}

// Event is the change notification published for downstream consumers after
// a mutation is persisted.
type Event struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entityId"`
	EntityType string          `json:"entityType"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	Time       int64           `json:"time"`
}
