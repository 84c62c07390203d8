package store

import (
	"sort"

	"tracker-api/domain"
)

// lineage remembers where a cascade-deleted entity used to hang in the
// hierarchy.
type lineage struct {
	level     domain.EntityType
	projectID string
	taskID    string
}

// RelatedUpdate pairs an update with the hierarchy level it is attached to,
// so callers can group the rollup without resolving ownership themselves.
type RelatedUpdate struct {
	domain.Update
	Level domain.EntityType `json:"level"`
}

// UpdatesForEntity returns the direct updates of one entity in chronological
// order. A missing entity yields an empty slice; absence is not exceptional
// on the read path.
func (s *Store) UpdatesForEntity(et domain.EntityType, id string) []domain.Update {
	out := []domain.Update{}
	s.mu.RLock()
	for _, u := range s.updates {
		if u.EntityType == et && u.EntityID == id {
			out = append(out, u)
		}
	}
	s.mu.RUnlock()
	sortUpdates(out)
	return out
}

// RelatedUpdates returns the union of the entity's direct updates and the
// direct updates of all its descendants. The descendant sets are resolved
// fresh on every call against current state; nothing is cached across
// mutations. Cost is linear in tasks, subtasks and updates.
func (s *Store) RelatedUpdates(et domain.EntityType, id string) []RelatedUpdate {
	out := []RelatedUpdate{}

	s.mu.RLock()
	// Descendant sets never include the entity itself, so the direct match
	// below cannot double count.
	var taskIDs, subIDs map[string]struct{}
	switch et {
	case domain.EntityProject:
		taskIDs = make(map[string]struct{})
		for tid, t := range s.tasks {
			if t.ProjectID == id {
				taskIDs[tid] = struct{}{}
			}
		}
		subIDs = make(map[string]struct{})
		for sid, st := range s.subTasks {
			if _, ok := taskIDs[st.TaskID]; ok {
				subIDs[sid] = struct{}{}
			}
		}
		// Cascade-deleted descendants still count: their updates were not
		// purged and belong to this project's conversation.
		for oid, ln := range s.orphans {
			if ln.projectID != id {
				continue
			}
			switch ln.level {
			case domain.EntityTask:
				taskIDs[oid] = struct{}{}
			case domain.EntitySubTask:
				subIDs[oid] = struct{}{}
			}
		}
	case domain.EntityTask:
		subIDs = make(map[string]struct{})
		for sid, st := range s.subTasks {
			if st.TaskID == id {
				subIDs[sid] = struct{}{}
			}
		}
		for oid, ln := range s.orphans {
			if ln.level == domain.EntitySubTask && ln.taskID == id {
				subIDs[oid] = struct{}{}
			}
		}
	case domain.EntitySubTask:
		// Leaf level, no descendants.
	default:
		s.mu.RUnlock()
		return out
	}

	for _, u := range s.updates {
		if u.EntityType == et && u.EntityID == id {
			out = append(out, RelatedUpdate{Update: u, Level: et})
			continue
		}
		switch u.EntityType {
		case domain.EntityTask:
			if _, ok := taskIDs[u.EntityID]; ok {
				out = append(out, RelatedUpdate{Update: u, Level: domain.EntityTask})
			}
		case domain.EntitySubTask:
			if _, ok := subIDs[u.EntityID]; ok {
				out = append(out, RelatedUpdate{Update: u, Level: domain.EntitySubTask})
			}
		}
	}
	s.mu.RUnlock()

	sortRelated(out)
	return out
}

func sortRelated(updates []RelatedUpdate) {
	sort.Slice(updates, func(i, j int) bool {
		return entityLess(updates[i].CreatedAt, updates[i].ID, updates[j].CreatedAt, updates[j].ID)
	})
}
