package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tracker-api/domain"
	"tracker-api/store"
)

// Remote is the persistence service contract the syncer requires: fetch-all
// per collection plus insert/update/delete per mutable entity kind.
type Remote interface {
	FetchProjects(ctx context.Context) ([]domain.Project, error)
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	FetchSubTasks(ctx context.Context) ([]domain.SubTask, error)
	FetchUpdates(ctx context.Context) ([]domain.Update, error)
	FetchUsers(ctx context.Context) ([]domain.User, error)

	InsertProject(ctx context.Context, p domain.Project) error
	UpdateProject(ctx context.Context, p domain.Project) error
	DeleteProject(ctx context.Context, id string) error
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error
	InsertSubTask(ctx context.Context, st domain.SubTask) error
	UpdateSubTask(ctx context.Context, st domain.SubTask) error
	DeleteSubTask(ctx context.Context, id string) error
	InsertUpdate(ctx context.Context, u domain.Update) error
}

// Publisher emits change events for downstream consumers. It is optional;
// a nil publisher disables the feed.
type Publisher interface {
	PublishChange(ctx context.Context, ev domain.Event) error
}

// Replacer is the slice of the store the syncer needs for a full refresh.
type Replacer interface {
	ReplaceAll(store.Snapshot)
}

// Config tunes the persistence worker pool.
type Config struct {
	Workers        int
	Buffer         int
	CallTimeout    time.Duration
	RefreshTimeout time.Duration
	HandoffTimeout time.Duration
	RetryInitial   time.Duration
	RetryMax       time.Duration
	MaxAttempts    int
	// OnError receives every permanently failed persistence call.
	OnError func(*SyncError)
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 2 * time.Minute
	}
	if c.HandoffTimeout < 0 {
		c.HandoffTimeout = 0
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 250 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
}

type job struct {
	muts    []domain.Mutation
	attempt int
}

const recentErrorCap = 32

// Syncer bridges the in-memory store and the remote persistence service.
// Mutations are handed to a worker pool and never block the caller; refresh
// replaces the whole store state or leaves it untouched.
type Syncer struct {
	cfg    Config
	remote Remote
	events Publisher
	logger *log.Logger
	target Replacer

	jobs    chan job
	stopCh  chan struct{}
	wg      sync.WaitGroup
	retryWG sync.WaitGroup

	delivered atomic.Uint64
	failed    atomic.Uint64
	inflight  atomic.Int64
	started   time.Time

	mu     sync.Mutex
	recent []SyncError
	closed bool
}

// New creates a Syncer. Workers do not run until Start is called.
func New(remote Remote, events Publisher, logger *log.Logger, cfg Config) *Syncer {
	if remote == nil {
		panic("sync.New: remote is required")
	}
	if logger == nil {
		logger = log.New()
	}
	cfg.applyDefaults()
	return &Syncer{
		cfg:     cfg,
		remote:  remote,
		events:  events,
		logger:  logger,
		jobs:    make(chan job, cfg.Buffer),
		stopCh:  make(chan struct{}),
		started: time.Now().UTC(),
	}
}

// Start binds the refresh target and spawns the worker pool.
func (s *Syncer) Start(target Replacer) {
	s.target = target
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.logger.Infof("sync workers started, workers: %d, buffer: %d, timeout: %v", s.cfg.Workers, s.cfg.Buffer, s.cfg.CallTimeout)
}

// Shutdown stops the pool after draining buffered jobs. Pending retries are
// abandoned; the remote state is reconciled by the next refresh.
func (s *Syncer) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)
	close(s.jobs)
	s.wg.Wait()
	s.retryWG.Wait()
}

// Refresh fetches the full remote state and swaps it into the store. The
// swap is all-or-nothing: any partial failure returns an aggregate SyncError
// and the prior in-memory state is retained.
func (s *Syncer) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RefreshTimeout)
	defer cancel()

	var (
		snap store.Snapshot
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(name string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		mu.Unlock()
	}

	wg.Add(5)
	go func() {
		defer wg.Done()
		projects, err := s.remote.FetchProjects(ctx)
		if err != nil {
			fail("projects", err)
			return
		}
		snap.Projects = projects
	}()
	go func() {
		defer wg.Done()
		tasks, err := s.remote.FetchTasks(ctx)
		if err != nil {
			fail("tasks", err)
			return
		}
		snap.Tasks = tasks
	}()
	go func() {
		defer wg.Done()
		subTasks, err := s.remote.FetchSubTasks(ctx)
		if err != nil {
			fail("subtasks", err)
			return
		}
		snap.SubTasks = subTasks
	}()
	go func() {
		defer wg.Done()
		updates, err := s.remote.FetchUpdates(ctx)
		if err != nil {
			fail("updates", err)
			return
		}
		snap.Updates = updates
	}()
	go func() {
		defer wg.Done()
		users, err := s.remote.FetchUsers(ctx)
		if err != nil {
			fail("users", err)
			return
		}
		snap.Users = users
	}()
	wg.Wait()

	if len(errs) > 0 {
		serr := &SyncError{Op: "refresh", Err: errors.Join(errs...)}
		s.record(serr)
		return serr
	}
	if s.target != nil {
		s.target.ReplaceAll(snap)
	}
	return nil
}

// Persist implements store.Persister. The batch is handed to the pool
// without blocking the mutation path; when the buffer is saturated the batch
// is processed on its own goroutine instead of being dropped.
func (s *Syncer) Persist(muts []domain.Mutation) {
	if len(muts) == 0 {
		return
	}
	j := job{muts: muts}
	s.inflight.Add(1)

	select {
	case s.jobs <- j:
		return
	default:
	}

	if s.cfg.HandoffTimeout > 0 {
		timer := time.NewTimer(s.cfg.HandoffTimeout)
		defer timer.Stop()
		select {
		case s.jobs <- j:
			return
		case <-timer.C:
		case <-s.stopCh:
			s.inflight.Add(-1)
			return
		}
	}

	s.logger.Warn("persist buffer saturated; dispatching inline")
	go s.process(j)
}

func (s *Syncer) worker() {
	defer s.wg.Done()
	for j := range s.jobs {
		s.process(j)
	}
}

// process applies the batch in issue order. A failing mutation is retried
// with backoff together with everything after it, so a cascade's
// child-before-parent delete order survives partial failure.
func (s *Syncer) process(j job) {
	for i, m := range j.muts {
		err := s.apply(m)
		if err == nil {
			s.delivered.Add(1)
			s.publish(m)
			continue
		}
		if j.attempt+1 < s.cfg.MaxAttempts {
			s.scheduleRetry(job{muts: j.muts[i:], attempt: j.attempt + 1})
			return
		}
		serr := &SyncError{Op: string(m.Op), Collection: m.Collection, EntityID: m.EntityID, Err: err}
		s.failed.Add(uint64(len(j.muts) - i))
		s.record(serr)
		s.logger.WithError(err).Errorf("persist failed permanently, op: %s, collection: %s, id: %s, dropped: %d", m.Op, m.Collection, m.EntityID, len(j.muts)-i)
		s.inflight.Add(-1)
		return
	}
	s.inflight.Add(-1)
}

func (s *Syncer) scheduleRetry(j job) {
	delay := exponentialBackoff(j.attempt, s.cfg.RetryInitial, s.cfg.RetryMax)
	s.retryWG.Add(1)
	go func() {
		defer s.retryWG.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.process(j)
		case <-s.stopCh:
			s.inflight.Add(-1)
		}
	}()
}

func (s *Syncer) apply(m domain.Mutation) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
	defer cancel()

	switch m.Collection {
	case domain.ColProjects:
		switch m.Op {
		case domain.OpCreate:
			return s.remote.InsertProject(ctx, *m.Project)
		case domain.OpUpdate:
			return s.remote.UpdateProject(ctx, *m.Project)
		case domain.OpDelete:
			return s.remote.DeleteProject(ctx, m.EntityID)
		}
	case domain.ColTasks:
		switch m.Op {
		case domain.OpCreate:
			return s.remote.InsertTask(ctx, *m.Task)
		case domain.OpUpdate:
			return s.remote.UpdateTask(ctx, *m.Task)
		case domain.OpDelete:
			return s.remote.DeleteTask(ctx, m.EntityID)
		}
	case domain.ColSubTasks:
		switch m.Op {
		case domain.OpCreate:
			return s.remote.InsertSubTask(ctx, *m.SubTask)
		case domain.OpUpdate:
			return s.remote.UpdateSubTask(ctx, *m.SubTask)
		case domain.OpDelete:
			return s.remote.DeleteSubTask(ctx, m.EntityID)
		}
	case domain.ColUpdates:
		if m.Op == domain.OpCreate {
			return s.remote.InsertUpdate(ctx, *m.Update)
		}
	}
	return fmt.Errorf("unsupported mutation %s on %s", m.Op, m.Collection)
}

func (s *Syncer) publish(m domain.Mutation) {
	if s.events == nil {
		return
	}

	ev := domain.Event{
		ID:       uuid.NewString(),
		EntityID: m.EntityID,
		Type:     eventType(m),
		Time:     time.Now().UTC().UnixNano(),
	}
	switch m.Collection {
	case domain.ColProjects:
		ev.EntityType = string(domain.EntityProject)
		if m.Project != nil {
			ev.Data, _ = sonic.Marshal(m.Project)
		}
	case domain.ColTasks:
		ev.EntityType = string(domain.EntityTask)
		if m.Task != nil {
			ev.Data, _ = sonic.Marshal(m.Task)
		}
	case domain.ColSubTasks:
		ev.EntityType = string(domain.EntitySubTask)
		if m.SubTask != nil {
			ev.Data, _ = sonic.Marshal(m.SubTask)
		}
	case domain.ColUpdates:
		ev.EntityType = "update"
		if m.Update != nil {
			ev.Data, _ = sonic.Marshal(m.Update)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
	defer cancel()
	if err := s.events.PublishChange(ctx, ev); err != nil {
		// The feed is best effort; the authoritative write already landed.
		s.logger.WithError(err).Warnf("change event dropped, type: %s, id: %s", ev.Type, ev.EntityID)
	}
}

func eventType(m domain.Mutation) string {
	kind := map[domain.Collection]string{
		domain.ColProjects: "project",
		domain.ColTasks:    "task",
		domain.ColSubTasks: "subtask",
		domain.ColUpdates:  "update",
	}[m.Collection]
	return kind + "-" + string(m.Op) + "d"
}

func (s *Syncer) record(serr *SyncError) {
	s.mu.Lock()
	s.recent = append(s.recent, *serr)
	if len(s.recent) > recentErrorCap {
		s.recent = s.recent[len(s.recent)-recentErrorCap:]
	}
	s.mu.Unlock()

	if s.cfg.OnError != nil {
		s.cfg.OnError(serr)
	}
}

// Stats is a point-in-time view of the persistence pipeline, served on the
// sync status endpoint.
type Stats struct {
	Pending      int64     `json:"pending"`
	Buffered     int       `json:"buffered"`
	Delivered    uint64    `json:"delivered"`
	Failed       uint64    `json:"failed"`
	StartedAt    time.Time `json:"startedAt"`
	RecentErrors []string  `json:"recentErrors,omitempty"`
}

func (s *Syncer) Stats() Stats {
	s.mu.Lock()
	recent := make([]string, 0, len(s.recent))
	for i := range s.recent {
		recent = append(recent, s.recent[i].Error())
	}
	s.mu.Unlock()

	return Stats{
		Pending:      s.inflight.Load(),
		Buffered:     len(s.jobs),
		Delivered:    s.delivered.Load(),
		Failed:       s.failed.Load(),
		StartedAt:    s.started,
		RecentErrors: recent,
	}
}
