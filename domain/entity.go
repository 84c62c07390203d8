package domain

// EntityType identifies which level of the hierarchy an update is attached to.
type EntityType string

const (
	EntityProject EntityType = "project"
	EntityTask    EntityType = "task"
	EntitySubTask EntityType = "subtask"
)

// Valid reports whether the value is one of the three hierarchy levels.
func (e EntityType) Valid() bool {
	switch e {
	case EntityProject, EntityTask, EntitySubTask:
		return true
	}
	return false
}

// Status is the shared three-state lifecycle for projects, tasks and subtasks.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority ranks projects and tasks. Very Low exists at the task level only.
type Priority string

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
	PriorityVeryLow  Priority = "Very Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityVeryLow:
		return true
	}
	return false
}

// ValidForProject excludes the task-only Very Low rank.
func (p Priority) ValidForProject() bool {
	return p.Valid() && p != PriorityVeryLow
}

// ProjectType groups projects on the planning horizon.
type ProjectType string

const (
	ProjectActive   ProjectType = "Active"
	ProjectUpcoming ProjectType = "Upcoming"
	ProjectFuture   ProjectType = "Future"
	ProjectOnHold   ProjectType = "On Hold"
)

func (p ProjectType) Valid() bool {
	switch p {
	case ProjectActive, ProjectUpcoming, ProjectFuture, ProjectOnHold:
		return true
	}
	return false
}
