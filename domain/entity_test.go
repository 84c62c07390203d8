package domain

import "testing"

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusTodo, StatusInProgress, StatusDone} {
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range []Status{"", "open", "Done", "in progress"} {
		if s.Valid() {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func TestPriorityValidForProject(t *testing.T) {
	if !PriorityCritical.ValidForProject() {
		t.Fatal("expected Critical to be a project priority")
	}
	if PriorityVeryLow.ValidForProject() {
		t.Fatal("Very Low is a task-only priority")
	}
	if !PriorityVeryLow.Valid() {
		t.Fatal("Very Low must remain a valid task priority")
	}
}

func TestEntityTypeValid(t *testing.T) {
	for _, e := range []EntityType{EntityProject, EntityTask, EntitySubTask} {
		if !e.Valid() {
			t.Fatalf("expected %q to be valid", e)
		}
	}
	if EntityType("user").Valid() {
		t.Fatal("user is not part of the hierarchy")
	}
}
