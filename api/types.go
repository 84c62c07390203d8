package api

import (
	"context"

	"tracker-api/domain"
	"tracker-api/store"
	"tracker-api/sync"
)

// Store is the slice of the in-memory store the handlers need.
type Store interface {
	Projects() []domain.Project
	Tasks() []domain.Task
	SubTasks() []domain.SubTask
	Updates() []domain.Update
	Users() []domain.User

	AddProject(p domain.Project) (domain.Project, error)
	UpdateProject(p domain.Project) error
	DeleteProject(id string) error
	AddTask(t domain.Task) (domain.Task, error)
	UpdateTask(t domain.Task) error
	DeleteTask(id string) error
	AddSubTask(st domain.SubTask) (domain.SubTask, error)
	UpdateSubTask(st domain.SubTask) error
	DeleteSubTask(id string) error
	AddUpdate(u domain.Update) (domain.Update, error)

	UpdatesForEntity(et domain.EntityType, id string) []domain.Update
	RelatedUpdates(et domain.EntityType, id string) []store.RelatedUpdate
}

// Refresher reloads the store from remote storage and reports sync health.
type Refresher interface {
	Refresh(ctx context.Context) error
	Stats() sync.Stats
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of duplicate update submissions.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when processing fails.
	Remove(ctx context.Context, userID, key string) error
}
