package store

import (
	"sort"

	"tracker-api/domain"
)

// AddProject assigns an id and timestamps, inserts the project and forwards a
// create mutation to the persister. The caller observes the in-memory effect
// before the remote round trip starts.
func (s *Store) AddProject(p domain.Project) (domain.Project, error) {
	if err := validateProject(&p); err != nil {
		return domain.Project{}, err
	}

	s.mu.Lock()
	now := s.now()
	p.ID = s.newID()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.projects[p.ID] = p
	s.mu.Unlock()

	s.persist([]domain.Mutation{{Op: domain.OpCreate, Collection: domain.ColProjects, EntityID: p.ID, Project: &p}})
	return p, nil
}

// UpdateProject replaces the stored project by id and refreshes updatedAt.
func (s *Store) UpdateProject(p domain.Project) error {
	if err := validateProject(&p); err != nil {
		return err
	}

	s.mu.Lock()
	existing, ok := s.projects[p.ID]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "project", ID: p.ID}
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	s.projects[p.ID] = p
	s.mu.Unlock()

	s.persist([]domain.Mutation{{Op: domain.OpUpdate, Collection: domain.ColProjects, EntityID: p.ID, Project: &p}})
	return nil
}

// DeleteProject removes the project and cascades to every task under it and
// every subtask under those tasks. Persistence deletes are issued children
// first so a persisted child never outlives its parent mid-failure.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	if _, ok := s.projects[id]; !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "project", ID: id}
	}

	taskIDs := make([]string, 0)
	for tid, t := range s.tasks {
		if t.ProjectID == id {
			taskIDs = append(taskIDs, tid)
		}
	}
	sort.Strings(taskIDs)

	owned := make(map[string]struct{}, len(taskIDs))
	for _, tid := range taskIDs {
		owned[tid] = struct{}{}
	}
	subIDs := make([]string, 0)
	for sid, st := range s.subTasks {
		if _, ok := owned[st.TaskID]; ok {
			subIDs = append(subIDs, sid)
		}
	}
	sort.Strings(subIDs)

	for _, sid := range subIDs {
		s.orphans[sid] = lineage{level: domain.EntitySubTask, projectID: id, taskID: s.subTasks[sid].TaskID}
		delete(s.subTasks, sid)
	}
	for _, tid := range taskIDs {
		s.orphans[tid] = lineage{level: domain.EntityTask, projectID: id}
		delete(s.tasks, tid)
	}
	delete(s.projects, id)
	s.mu.Unlock()

	muts := make([]domain.Mutation, 0, len(subIDs)+len(taskIDs)+1)
	for _, sid := range subIDs {
		muts = append(muts, domain.Mutation{Op: domain.OpDelete, Collection: domain.ColSubTasks, EntityID: sid})
	}
	for _, tid := range taskIDs {
		muts = append(muts, domain.Mutation{Op: domain.OpDelete, Collection: domain.ColTasks, EntityID: tid})
	}
	muts = append(muts, domain.Mutation{Op: domain.OpDelete, Collection: domain.ColProjects, EntityID: id})
	s.persist(muts)
	return nil
}

// AddTask inserts a task under an existing project.
func (s *Store) AddTask(t domain.Task) (domain.Task, error) {
	if err := validateTask(&t); err != nil {
		return domain.Task{}, err
	}

	s.mu.Lock()
	if _, ok := s.projects[t.ProjectID]; !ok {
		s.mu.Unlock()
		return domain.Task{}, &NotFoundError{Kind: "project", ID: t.ProjectID}
	}
	now := s.now()
	t.ID = s.newID()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.tasks[t.ID] = t
	s.mu.Unlock()

	s.persist([]domain.Mutation{{Op: domain.OpCreate, Collection: domain.ColTasks, EntityID: t.ID, Task: &t}})
	return t, nil
}

// UpdateTask replaces the stored task by id and refreshes updatedAt. The
// owning project must still exist, so a task cannot be reparented onto a
// dangling id.
func (s *Store) UpdateTask(t domain.Task) error {
	if err := validateTask(&t); err != nil {
		return err
	}

	s.mu.Lock()
	existing, ok := s.tasks[t.ID]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "task", ID: t.ID}
	}
	if _, ok := s.projects[t.ProjectID]; !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "project", ID: t.ProjectID}
	}
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = s.now()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	s.persist([]domain.Mutation{{Op: domain.OpUpdate, Collection: domain.ColTasks, EntityID: t.ID, Task: &t}})
	return nil
}

// DeleteTask removes the task and cascades to its subtasks.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "task", ID: id}
	}

	subIDs := make([]string, 0)
	for sid, st := range s.subTasks {
		if st.TaskID == id {
			subIDs = append(subIDs, sid)
		}
	}
	sort.Strings(subIDs)

	for _, sid := range subIDs {
		s.orphans[sid] = lineage{level: domain.EntitySubTask, projectID: task.ProjectID, taskID: id}
		delete(s.subTasks, sid)
	}
	s.orphans[id] = lineage{level: domain.EntityTask, projectID: task.ProjectID}
	delete(s.tasks, id)
	s.mu.Unlock()

	muts := make([]domain.Mutation, 0, len(subIDs)+1)
	for _, sid := range subIDs {
		muts = append(muts, domain.Mutation{Op: domain.OpDelete, Collection: domain.ColSubTasks, EntityID: sid})
	}
	muts = append(muts, domain.Mutation{Op: domain.OpDelete, Collection: domain.ColTasks, EntityID: id})
	s.persist(muts)
	return nil
}

// AddSubTask inserts a subtask under an existing task.
func (s *Store) AddSubTask(st domain.SubTask) (domain.SubTask, error) {
	if err := validateSubTask(&st); err != nil {
		return domain.SubTask{}, err
	}

	s.mu.Lock()
	if _, ok := s.tasks[st.TaskID]; !ok {
		s.mu.Unlock()
		return domain.SubTask{}, &NotFoundError{Kind: "task", ID: st.TaskID}
	}
	now := s.now()
	st.ID = s.newID()
	st.CreatedAt = now
	st.UpdatedAt = now
	s.subTasks[st.ID] = st
	s.mu.Unlock()

	s.persist([]domain.Mutation{{Op: domain.OpCreate, Collection: domain.ColSubTasks, EntityID: st.ID, SubTask: &st}})
	return st, nil
}

// UpdateSubTask replaces the stored subtask by id and refreshes updatedAt.
func (s *Store) UpdateSubTask(st domain.SubTask) error {
	if err := validateSubTask(&st); err != nil {
		return err
	}

	s.mu.Lock()
	existing, ok := s.subTasks[st.ID]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "subtask", ID: st.ID}
	}
	if _, ok := s.tasks[st.TaskID]; !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "task", ID: st.TaskID}
	}
	st.CreatedAt = existing.CreatedAt
	st.UpdatedAt = s.now()
	s.subTasks[st.ID] = st
	s.mu.Unlock()

	s.persist([]domain.Mutation{{Op: domain.OpUpdate, Collection: domain.ColSubTasks, EntityID: st.ID, SubTask: &st}})
	return nil
}

// DeleteSubTask removes a single subtask. Nothing cascades below the leaf.
func (s *Store) DeleteSubTask(id string) error {
	s.mu.Lock()
	st, ok := s.subTasks[id]
	if !ok {
		s.mu.Unlock()
		return &NotFoundError{Kind: "subtask", ID: id}
	}
	s.orphans[id] = lineage{level: domain.EntitySubTask, projectID: s.tasks[st.TaskID].ProjectID, taskID: st.TaskID}
	delete(s.subTasks, id)
	s.mu.Unlock()

	s.persist([]domain.Mutation{{Op: domain.OpDelete, Collection: domain.ColSubTasks, EntityID: id}})
	return nil
}

// AddUpdate attaches a status note to an existing entity. Updates have no
// update or delete operation; deleting the entity later orphans them but
// never purges them.
func (s *Store) AddUpdate(u domain.Update) (domain.Update, error) {
	if u.Message == "" {
		return domain.Update{}, &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if !u.EntityType.Valid() {
		return domain.Update{}, &ValidationError{Field: "entityType", Reason: "must be project, task or subtask"}
	}

	s.mu.Lock()
	if !s.entityExistsLocked(u.EntityType, u.EntityID) {
		s.mu.Unlock()
		return domain.Update{}, &NotFoundError{Kind: string(u.EntityType), ID: u.EntityID}
	}
	u.ID = s.newID()
	u.CreatedAt = s.now()
	s.updates[u.ID] = u
	s.mu.Unlock()

	s.persist([]domain.Mutation{{Op: domain.OpCreate, Collection: domain.ColUpdates, EntityID: u.ID, Update: &u}})
	return u, nil
}

func (s *Store) entityExistsLocked(et domain.EntityType, id string) bool {
	switch et {
	case domain.EntityProject:
		_, ok := s.projects[id]
		return ok
	case domain.EntityTask:
		_, ok := s.tasks[id]
		return ok
	case domain.EntitySubTask:
		_, ok := s.subTasks[id]
		return ok
	}
	return false
}

func validateProject(p *domain.Project) error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Status == "" {
		p.Status = domain.StatusTodo
	} else if !p.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "must be todo, in-progress or done"}
	}
	if p.ProjectType == "" {
		p.ProjectType = domain.ProjectActive
	} else if !p.ProjectType.Valid() {
		return &ValidationError{Field: "projectType", Reason: "unknown project type"}
	}
	if p.Priority == "" {
		p.Priority = domain.PriorityMedium
	} else if !p.Priority.ValidForProject() {
		return &ValidationError{Field: "priority", Reason: "unknown project priority"}
	}
	return validateProgress(p.Progress)
}

func validateTask(t *domain.Task) error {
	if t.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if t.ProjectID == "" {
		return &ValidationError{Field: "projectId", Reason: "must not be empty"}
	}
	if t.Status == "" {
		t.Status = domain.StatusTodo
	} else if !t.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "must be todo, in-progress or done"}
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	} else if !t.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "unknown task priority"}
	}
	return validateProgress(t.Progress)
}

func validateSubTask(st *domain.SubTask) error {
	if st.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if st.TaskID == "" {
		return &ValidationError{Field: "taskId", Reason: "must not be empty"}
	}
	if st.Status == "" {
		st.Status = domain.StatusTodo
	} else if !st.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "must be todo, in-progress or done"}
	}
	return nil
}

func validateProgress(progress *int) error {
	if progress != nil && (*progress < 0 || *progress > 100) {
		return &ValidationError{Field: "progress", Reason: "must be between 0 and 100"}
	}
	return nil
}
