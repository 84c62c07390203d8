package store

import (
	"sync"
	"testing"

	"tracker-api/domain"
)

type capturePersister struct {
	mu   sync.Mutex
	muts []domain.Mutation
}

func (c *capturePersister) Persist(muts []domain.Mutation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muts = append(c.muts, muts...)
}

func (c *capturePersister) all() []domain.Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Mutation, len(c.muts))
	copy(out, c.muts)
	return out
}

func seedHierarchy(t *testing.T, s *Store) (domain.Project, domain.Task, domain.SubTask) {
	t.Helper()
	p, err := s.AddProject(domain.Project{Name: "Alpha", Category: "infra"})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	task, err := s.AddTask(domain.Task{ProjectID: p.ID, Name: "Setup"})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	sub, err := s.AddSubTask(domain.SubTask{TaskID: task.ID, Name: "Config"})
	if err != nil {
		t.Fatalf("add subtask: %v", err)
	}
	return p, task, sub
}

func TestAddProjectAssignsIDAndTimestamps(t *testing.T) {
	s := New()
	p, err := s.AddProject(domain.Project{Name: "Alpha"})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected generated id")
	}
	if p.CreatedAt.IsZero() || !p.CreatedAt.Equal(p.UpdatedAt) {
		t.Fatalf("expected createdAt == updatedAt, got %v / %v", p.CreatedAt, p.UpdatedAt)
	}
	if p.Status != domain.StatusTodo || p.Priority != domain.PriorityMedium || p.ProjectType != domain.ProjectActive {
		t.Fatalf("expected defaults applied, got %+v", p)
	}
}

func TestAddProjectMissingNameLeavesCollectionUntouched(t *testing.T) {
	s := New()
	_, err := s.AddProject(domain.Project{Category: "infra"})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := len(s.Projects()); got != 0 {
		t.Fatalf("expected empty collection after rejected add, got %d", got)
	}
}

func TestAddProjectRejectsOutOfRangeProgress(t *testing.T) {
	s := New()
	bad := 101
	if _, err := s.AddProject(domain.Project{Name: "Alpha", Progress: &bad}); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	ok := 100
	if _, err := s.AddProject(domain.Project{Name: "Alpha", Progress: &ok}); err != nil {
		t.Fatalf("expected 100 to be accepted, got %v", err)
	}
}

func TestAddTaskRejectsOrphan(t *testing.T) {
	s := New()
	_, err := s.AddTask(domain.Task{ProjectID: "missing", Name: "Setup"})
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if got := len(s.Tasks()); got != 0 {
		t.Fatalf("expected no tasks, got %d", got)
	}
}

func TestAddSubTaskRejectsOrphan(t *testing.T) {
	s := New()
	if _, err := s.AddSubTask(domain.SubTask{TaskID: "missing", Name: "Config"}); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdateProjectRefreshesUpdatedAtStrictlyMonotonic(t *testing.T) {
	s := New()
	p, err := s.AddProject(domain.Project{Name: "Alpha"})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}

	p.Status = domain.StatusInProgress
	if err := s.UpdateProject(p); err != nil {
		t.Fatalf("first update: %v", err)
	}
	first, _ := s.Project(p.ID)

	p.Status = domain.StatusDone
	if err := s.UpdateProject(p); err != nil {
		t.Fatalf("second update: %v", err)
	}
	second, _ := s.Project(p.ID)

	if second.Status != domain.StatusDone {
		t.Fatalf("expected done, got %s", second.Status)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("expected second updatedAt %v to be strictly after %v", second.UpdatedAt, first.UpdatedAt)
	}
	if !second.CreatedAt.Equal(p.CreatedAt) {
		t.Fatal("createdAt must never change on update")
	}
}

func TestUpdateProjectUnknownID(t *testing.T) {
	s := New()
	if err := s.UpdateProject(domain.Project{ID: "missing", Name: "Alpha"}); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	s := New()
	p, task, _ := seedHierarchy(t, s)
	otherP, err := s.AddProject(domain.Project{Name: "Beta"})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	otherT, err := s.AddTask(domain.Task{ProjectID: otherP.ID, Name: "Keep"})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	if err := s.DeleteProject(p.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	if _, ok := s.Project(p.ID); ok {
		t.Fatal("project still present after delete")
	}
	for _, tk := range s.Tasks() {
		if tk.ProjectID == p.ID {
			t.Fatalf("dangling task %s still references deleted project", tk.ID)
		}
	}
	for _, st := range s.SubTasks() {
		if st.TaskID == task.ID {
			t.Fatalf("dangling subtask %s still references cascaded task", st.ID)
		}
	}
	if _, ok := s.Task(otherT.ID); !ok {
		t.Fatal("unrelated task removed by cascade")
	}
}

func TestDeleteProjectPersistsChildrenFirst(t *testing.T) {
	p := &capturePersister{}
	s := New(WithPersister(p))
	proj, task, sub := seedHierarchy(t, s)

	before := len(p.all())
	if err := s.DeleteProject(proj.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	muts := p.all()[before:]
	if len(muts) != 3 {
		t.Fatalf("expected 3 delete mutations, got %d", len(muts))
	}
	want := []struct {
		col domain.Collection
		id  string
	}{
		{domain.ColSubTasks, sub.ID},
		{domain.ColTasks, task.ID},
		{domain.ColProjects, proj.ID},
	}
	for i, w := range want {
		if muts[i].Op != domain.OpDelete || muts[i].Collection != w.col || muts[i].EntityID != w.id {
			t.Fatalf("mutation %d: got %s %s %s, want delete %s %s", i, muts[i].Op, muts[i].Collection, muts[i].EntityID, w.col, w.id)
		}
	}
}

func TestDeleteTaskCascadesToSubTasksOnly(t *testing.T) {
	s := New()
	p, task, sub := seedHierarchy(t, s)

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	if _, ok := s.SubTask(sub.ID); ok {
		t.Fatal("subtask survived task cascade")
	}
	if _, ok := s.Project(p.ID); !ok {
		t.Fatal("project must not be touched by task delete")
	}
}

func TestAddUpdateRequiresExistingEntity(t *testing.T) {
	s := New()
	if _, err := s.AddUpdate(domain.Update{Message: "hi", EntityType: domain.EntityProject, EntityID: "missing"}); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if _, err := s.AddUpdate(domain.Update{EntityType: domain.EntityProject, EntityID: "x"}); !IsValidation(err) {
		t.Fatalf("expected ValidationError for empty message, got %v", err)
	}
	if _, err := s.AddUpdate(domain.Update{Message: "hi", EntityType: "user", EntityID: "x"}); !IsValidation(err) {
		t.Fatalf("expected ValidationError for bad entity type, got %v", err)
	}
}

func TestUpdatesSurviveCascadeDelete(t *testing.T) {
	s := New()
	p, task, sub := seedHierarchy(t, s)
	u, err := s.AddUpdate(domain.Update{Message: "kickoff", AuthorUserID: "u1", EntityType: domain.EntitySubTask, EntityID: sub.ID})
	if err != nil {
		t.Fatalf("add update: %v", err)
	}

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}

	if _, ok := s.SubTask(sub.ID); ok {
		t.Fatal("subtask should be gone")
	}
	related := s.RelatedUpdates(domain.EntityProject, p.ID)
	if len(related) != 1 || related[0].ID != u.ID {
		t.Fatalf("expected orphaned update to remain in project rollup, got %+v", related)
	}
}

func TestReplaceAllSwapsStateWholesale(t *testing.T) {
	per := &capturePersister{}
	s := New(WithPersister(per))
	seedHierarchy(t, s)
	before := len(per.all())

	snap := Snapshot{
		Projects: []domain.Project{{ID: "rp", Name: "Remote"}},
		Users:    []domain.User{{ID: "u1", Email: "a@b.c"}},
	}
	s.ReplaceAll(snap)

	if got := s.Projects(); len(got) != 1 || got[0].ID != "rp" {
		t.Fatalf("expected remote project only, got %+v", got)
	}
	if len(s.Tasks()) != 0 || len(s.SubTasks()) != 0 || len(s.Updates()) != 0 {
		t.Fatal("expected stale collections cleared")
	}
	if got := s.Users(); len(got) != 1 || got[0].ID != "u1" {
		t.Fatalf("unexpected users: %+v", got)
	}
	if len(per.all()) != before {
		t.Fatal("ReplaceAll must not trigger persistence")
	}
}

func TestMutationsPersistedInIssueOrder(t *testing.T) {
	per := &capturePersister{}
	s := New(WithPersister(per))
	p, err := s.AddProject(domain.Project{Name: "Alpha"})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	p.Status = domain.StatusInProgress
	if err := s.UpdateProject(p); err != nil {
		t.Fatalf("update project: %v", err)
	}

	muts := per.all()
	if len(muts) != 2 {
		t.Fatalf("expected 2 mutations, got %d", len(muts))
	}
	if muts[0].Op != domain.OpCreate || muts[1].Op != domain.OpUpdate {
		t.Fatalf("expected create then update, got %s then %s", muts[0].Op, muts[1].Op)
	}
	if muts[1].Project == nil || muts[1].Project.Status != domain.StatusInProgress {
		t.Fatalf("update mutation payload stale: %+v", muts[1].Project)
	}
}
