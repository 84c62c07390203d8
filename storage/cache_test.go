package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tracker-api/domain"
)

type stubBackend struct {
	projects      []domain.Project
	tasks         []domain.Task
	projectCalls  int
	taskCalls     int
	inserted      []string
	published     []domain.Event
	insertFailure error
}

func (s *stubBackend) FetchProjects(ctx context.Context) ([]domain.Project, error) {
	s.projectCalls++
	return s.projects, nil
}

func (s *stubBackend) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	s.taskCalls++
	return s.tasks, nil
}

func (s *stubBackend) FetchSubTasks(ctx context.Context) ([]domain.SubTask, error) {
	return nil, nil
}

func (s *stubBackend) FetchUpdates(ctx context.Context) ([]domain.Update, error) {
	return nil, nil
}

func (s *stubBackend) FetchUsers(ctx context.Context) ([]domain.User, error) {
	return nil, nil
}

func (s *stubBackend) InsertProject(ctx context.Context, p domain.Project) error {
	if s.insertFailure != nil {
		return s.insertFailure
	}
	s.inserted = append(s.inserted, p.ID)
	return nil
}

func (s *stubBackend) UpdateProject(ctx context.Context, p domain.Project) error { return nil }
func (s *stubBackend) DeleteProject(ctx context.Context, id string) error        { return nil }
func (s *stubBackend) InsertTask(ctx context.Context, t domain.Task) error       { return nil }
func (s *stubBackend) UpdateTask(ctx context.Context, t domain.Task) error       { return nil }
func (s *stubBackend) DeleteTask(ctx context.Context, id string) error           { return nil }
func (s *stubBackend) InsertSubTask(ctx context.Context, st domain.SubTask) error {
	return nil
}
func (s *stubBackend) UpdateSubTask(ctx context.Context, st domain.SubTask) error {
	return nil
}
func (s *stubBackend) DeleteSubTask(ctx context.Context, id string) error  { return nil }
func (s *stubBackend) InsertUpdate(ctx context.Context, u domain.Update) error { return nil }

func (s *stubBackend) PublishChange(ctx context.Context, ev domain.Event) error {
	s.published = append(s.published, ev)
	return nil
}

func newTestCache(t *testing.T, base backend) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(base, client, time.Minute), mr
}

func TestCacheMissThenHit(t *testing.T) {
	base := &stubBackend{projects: []domain.Project{{ID: "p1", Name: "Alpha"}}}
	cache, _ := newTestCache(t, base)
	ctx := context.Background()

	first, err := cache.FetchProjects(ctx)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := cache.FetchProjects(ctx)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if base.projectCalls != 1 {
		t.Fatalf("expected one backend call, got %d", base.projectCalls)
	}
	if len(first) != 1 || len(second) != 1 || second[0].ID != "p1" {
		t.Fatalf("unexpected results %v %v", first, second)
	}
}

func TestCacheWriteEvictsCollection(t *testing.T) {
	base := &stubBackend{projects: []domain.Project{{ID: "p1", Name: "Alpha"}}}
	cache, mr := newTestCache(t, base)
	ctx := context.Background()

	if _, err := cache.FetchProjects(ctx); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if !mr.Exists(projectsCacheKey) {
		t.Fatal("expected projects key after fetch")
	}

	if err := cache.InsertProject(ctx, domain.Project{ID: "p2", Name: "Beta"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if mr.Exists(projectsCacheKey) {
		t.Fatal("expected projects key evicted after write")
	}

	if _, err := cache.FetchProjects(ctx); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if base.projectCalls != 2 {
		t.Fatalf("expected refetch to hit backend, calls=%d", base.projectCalls)
	}
}

func TestCacheKeepsEntryWhenWriteFails(t *testing.T) {
	base := &stubBackend{
		projects:      []domain.Project{{ID: "p1", Name: "Alpha"}},
		insertFailure: errors.New("remote down"),
	}
	cache, mr := newTestCache(t, base)
	ctx := context.Background()

	if _, err := cache.FetchProjects(ctx); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if err := cache.InsertProject(ctx, domain.Project{ID: "p2"}); err == nil {
		t.Fatal("expected insert failure")
	}
	if !mr.Exists(projectsCacheKey) {
		t.Fatal("failed write must not evict the cache")
	}
}

func TestCacheFallsBackOnCorruptEntry(t *testing.T) {
	base := &stubBackend{tasks: []domain.Task{{ID: "t1", ProjectID: "p1", Name: "Setup"}}}
	cache, mr := newTestCache(t, base)
	ctx := context.Background()

	if err := mr.Set(tasksCacheKey, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tasks, err := cache.FetchTasks(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected tasks %v", tasks)
	}
	if base.taskCalls != 1 {
		t.Fatalf("expected backend fallback, calls=%d", base.taskCalls)
	}
}

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	base := &stubBackend{projects: []domain.Project{{ID: "p1"}}}
	cache := NewCache(base, nil, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := cache.FetchProjects(ctx); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if base.projectCalls != 2 {
		t.Fatalf("expected passthrough on nil redis, calls=%d", base.projectCalls)
	}
}

func TestCachePublishChangePassesThrough(t *testing.T) {
	base := &stubBackend{}
	cache, _ := newTestCache(t, base)

	ev := domain.Event{ID: "e1", EntityID: "p1", Type: "project-created"}
	if err := cache.PublishChange(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(base.published) != 1 || base.published[0].ID != "e1" {
		t.Fatalf("unexpected published events %v", base.published)
	}
}
