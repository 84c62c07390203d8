package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tracker-api/domain"
)

// Persister receives the persistence side effects of store mutations. The
// store never blocks on it; implementations hand the batch off to their own
// workers and report failures on their own channel.
type Persister interface {
	Persist(muts []domain.Mutation)
}

// Store is the single source of truth for the four entity collections. All
// reads and writes go through it; mutations apply in memory first and are
// then forwarded to the persister.
type Store struct {
	mu       sync.RWMutex
	projects map[string]domain.Project
	tasks    map[string]domain.Task
	subTasks map[string]domain.SubTask
	updates  map[string]domain.Update
	users    []domain.User

	// orphans records the ancestry of cascade-deleted tasks and subtasks.
	// Updates are never purged on cascade, so an update attached to a deleted
	// descendant must stay visible in the rollup of its surviving ancestors.
	orphans map[string]lineage

	persister Persister
	now       func() time.Time
	newID     func() string
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithPersister attaches the synchronization layer that persists mutations.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithClock overrides the timestamp source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc overrides id generation. Intended for tests.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates an empty store. The store is constructed once at startup and
// passed to every consumer; there is no ambient global instance.
func New(opts ...Option) *Store {
	s := &Store{
		projects: make(map[string]domain.Project),
		tasks:    make(map[string]domain.Task),
		subTasks: make(map[string]domain.SubTask),
		updates:  make(map[string]domain.Update),
		orphans:  make(map[string]lineage),
		now:      nextStamp,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is a full copy of every collection, as produced by a remote
// refresh and consumed by ReplaceAll.
type Snapshot struct {
	Projects []domain.Project
	Tasks    []domain.Task
	SubTasks []domain.SubTask
	Updates  []domain.Update
	Users    []domain.User
}

// ReplaceAll swaps in a freshly fetched remote state wholesale. It is the
// only write path that bypasses the persister: the data already lives in the
// remote store.
func (s *Store) ReplaceAll(snap Snapshot) {
	projects := make(map[string]domain.Project, len(snap.Projects))
	for _, p := range snap.Projects {
		projects[p.ID] = p
	}
	tasks := make(map[string]domain.Task, len(snap.Tasks))
	for _, t := range snap.Tasks {
		tasks[t.ID] = t
	}
	subTasks := make(map[string]domain.SubTask, len(snap.SubTasks))
	for _, st := range snap.SubTasks {
		subTasks[st.ID] = st
	}
	updates := make(map[string]domain.Update, len(snap.Updates))
	for _, u := range snap.Updates {
		updates[u.ID] = u
	}
	users := append([]domain.User(nil), snap.Users...)

	s.mu.Lock()
	s.projects = projects
	s.tasks = tasks
	s.subTasks = subTasks
	s.updates = updates
	s.users = users
	s.orphans = make(map[string]lineage)
	s.mu.Unlock()
}

// Projects returns a copy of the project collection ordered by creation time.
func (s *Store) Projects() []domain.Project {
	s.mu.RLock()
	out := make([]domain.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return entityLess(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out
}

// Tasks returns a copy of the task collection ordered by creation time.
func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return entityLess(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out
}

// SubTasks returns a copy of the subtask collection ordered by creation time.
func (s *Store) SubTasks() []domain.SubTask {
	s.mu.RLock()
	out := make([]domain.SubTask, 0, len(s.subTasks))
	for _, st := range s.subTasks {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return entityLess(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out
}

// Updates returns a copy of the update collection in chronological order.
func (s *Store) Updates() []domain.Update {
	s.mu.RLock()
	out := make([]domain.Update, 0, len(s.updates))
	for _, u := range s.updates {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sortUpdates(out)
	return out
}

// Users is a passthrough view of the externally synced user collection.
func (s *Store) Users() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.User(nil), s.users...)
}

// Project looks up a single project by id.
func (s *Store) Project(id string) (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok
}

// Task looks up a single task by id.
func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// SubTask looks up a single subtask by id.
func (s *Store) SubTask(id string) (domain.SubTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.subTasks[id]
	return st, ok
}

func (s *Store) persist(muts []domain.Mutation) {
	if s.persister == nil || len(muts) == 0 {
		return
	}
	s.persister.Persist(muts)
}

func entityLess(ci time.Time, idi string, cj time.Time, idj string) bool {
	if !ci.Equal(cj) {
		return ci.Before(cj)
	}
	return idi < idj
}

func sortUpdates(updates []domain.Update) {
	sort.Slice(updates, func(i, j int) bool {
		return entityLess(updates[i].CreatedAt, updates[i].ID, updates[j].CreatedAt, updates[j].ID)
	})
}
