package storage

import (
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"tracker-api/domain"
)

// Table rows keep every column scalar: dates as RFC 3339 strings (empty when
// unset) and string sets as embedded JSON arrays.

type projectEntity struct {
	aztables.Entity
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Category    string `json:"Category"`
	Status      string `json:"Status"`
	ProjectType string `json:"ProjectType"`
	Priority    string `json:"Priority"`
	Assignee    string `json:"Assignee"`
	Assignees   string `json:"Assignees"`
	StartDate   string `json:"StartDate"`
	EndDate     string `json:"EndDate"`
	Deadline    string `json:"Deadline"`
	Progress    *int   `json:"Progress,omitempty"`
	Tags        string `json:"Tags"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
}

func encodeProjectEntity(p domain.Project) projectEntity {
	return projectEntity{
		Entity:      aztables.Entity{PartitionKey: partitionKey, RowKey: p.ID},
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Status:      string(p.Status),
		ProjectType: string(p.ProjectType),
		Priority:    string(p.Priority),
		Assignee:    p.Assignee,
		Assignees:   encodeStrings(p.Assignees),
		StartDate:   encodeTimePtr(p.StartDate),
		EndDate:     encodeTimePtr(p.EndDate),
		Deadline:    encodeTimePtr(p.Deadline),
		Progress:    p.Progress,
		Tags:        encodeStrings(p.Tags),
		CreatedAt:   encodeTime(p.CreatedAt),
		UpdatedAt:   encodeTime(p.UpdatedAt),
	}
}

func decodeProjectEntity(data []byte) (domain.Project, error) {
	var ent projectEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Project{}, err
	}
	assignees, err := decodeStrings(ent.Assignees)
	if err != nil {
		return domain.Project{}, err
	}
	tags, err := decodeStrings(ent.Tags)
	if err != nil {
		return domain.Project{}, err
	}
	return domain.Project{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Description: ent.Description,
		Category:    ent.Category,
		Status:      domain.Status(ent.Status),
		ProjectType: domain.ProjectType(ent.ProjectType),
		Priority:    domain.Priority(ent.Priority),
		Assignee:    ent.Assignee,
		Assignees:   assignees,
		StartDate:   decodeTimePtr(ent.StartDate),
		EndDate:     decodeTimePtr(ent.EndDate),
		Deadline:    decodeTimePtr(ent.Deadline),
		Progress:    ent.Progress,
		Tags:        tags,
		CreatedAt:   decodeTime(ent.CreatedAt),
		UpdatedAt:   decodeTime(ent.UpdatedAt),
	}, nil
}

type taskEntity struct {
	aztables.Entity
	ProjectID   string `json:"ProjectId"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	TaskType    string `json:"TaskType"`
	Status      string `json:"Status"`
	Priority    string `json:"Priority"`
	Assignee    string `json:"Assignee"`
	StartDate   string `json:"StartDate"`
	EndDate     string `json:"EndDate"`
	Deadline    string `json:"Deadline"`
	Progress    *int   `json:"Progress,omitempty"`
	Tags        string `json:"Tags"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
}

func encodeTaskEntity(t domain.Task) taskEntity {
	return taskEntity{
		Entity:      aztables.Entity{PartitionKey: partitionKey, RowKey: t.ID},
		ProjectID:   t.ProjectID,
		Name:        t.Name,
		Description: t.Description,
		TaskType:    t.TaskType,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		Assignee:    t.Assignee,
		StartDate:   encodeTimePtr(t.StartDate),
		EndDate:     encodeTimePtr(t.EndDate),
		Deadline:    encodeTimePtr(t.Deadline),
		Progress:    t.Progress,
		Tags:        encodeStrings(t.Tags),
		CreatedAt:   encodeTime(t.CreatedAt),
		UpdatedAt:   encodeTime(t.UpdatedAt),
	}
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	tags, err := decodeStrings(ent.Tags)
	if err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:          ent.RowKey,
		ProjectID:   ent.ProjectID,
		Name:        ent.Name,
		Description: ent.Description,
		TaskType:    ent.TaskType,
		Status:      domain.Status(ent.Status),
		Priority:    domain.Priority(ent.Priority),
		Assignee:    ent.Assignee,
		StartDate:   decodeTimePtr(ent.StartDate),
		EndDate:     decodeTimePtr(ent.EndDate),
		Deadline:    decodeTimePtr(ent.Deadline),
		Progress:    ent.Progress,
		Tags:        tags,
		CreatedAt:   decodeTime(ent.CreatedAt),
		UpdatedAt:   decodeTime(ent.UpdatedAt),
	}, nil
}

type subTaskEntity struct {
	aztables.Entity
	TaskID      string `json:"TaskId"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	TaskType    string `json:"TaskType"`
	Status      string `json:"Status"`
	Assignee    string `json:"Assignee"`
	StartDate   string `json:"StartDate"`
	EndDate     string `json:"EndDate"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
}

func encodeSubTaskEntity(st domain.SubTask) subTaskEntity {
	return subTaskEntity{
		Entity:      aztables.Entity{PartitionKey: partitionKey, RowKey: st.ID},
		TaskID:      st.TaskID,
		Name:        st.Name,
		Description: st.Description,
		TaskType:    st.TaskType,
		Status:      string(st.Status),
		Assignee:    st.Assignee,
		StartDate:   encodeTimePtr(st.StartDate),
		EndDate:     encodeTimePtr(st.EndDate),
		CreatedAt:   encodeTime(st.CreatedAt),
		UpdatedAt:   encodeTime(st.UpdatedAt),
	}
}

func decodeSubTaskEntity(data []byte) (domain.SubTask, error) {
	var ent subTaskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.SubTask{}, err
	}
	return domain.SubTask{
		ID:          ent.RowKey,
		TaskID:      ent.TaskID,
		Name:        ent.Name,
		Description: ent.Description,
		TaskType:    ent.TaskType,
		Status:      domain.Status(ent.Status),
		Assignee:    ent.Assignee,
		StartDate:   decodeTimePtr(ent.StartDate),
		EndDate:     decodeTimePtr(ent.EndDate),
		CreatedAt:   decodeTime(ent.CreatedAt),
		UpdatedAt:   decodeTime(ent.UpdatedAt),
	}, nil
}

type updateEntity struct {
	aztables.Entity
	Message      string `json:"Message"`
	AuthorUserID string `json:"AuthorUserId"`
	EntityType   string `json:"EntityType"`
	EntityID     string `json:"EntityId"`
	CreatedAt    string `json:"CreatedAt"`
}

func encodeUpdateEntity(u domain.Update) updateEntity {
	return updateEntity{
		Entity:       aztables.Entity{PartitionKey: partitionKey, RowKey: u.ID},
		Message:      u.Message,
		AuthorUserID: u.AuthorUserID,
		EntityType:   string(u.EntityType),
		EntityID:     u.EntityID,
		CreatedAt:    encodeTime(u.CreatedAt),
	}
}

func decodeUpdateEntity(data []byte) (domain.Update, error) {
	var ent updateEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Update{}, err
	}
	return domain.Update{
		ID:           ent.RowKey,
		Message:      ent.Message,
		AuthorUserID: ent.AuthorUserID,
		EntityType:   domain.EntityType(ent.EntityType),
		EntityID:     ent.EntityID,
		CreatedAt:    decodeTime(ent.CreatedAt),
	}, nil
}

type userEntity struct {
	aztables.Entity
	Email    string `json:"Email"`
	Name     string `json:"Name"`
	Nickname string `json:"Nickname"`
}

func decodeUserEntity(data []byte) (domain.User, error) {
	var ent userEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:       ent.RowKey,
		Email:    ent.Email,
		Name:     ent.Name,
		Nickname: ent.Nickname,
	}, nil
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func encodeTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return encodeTime(*t)
}

func decodeTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := decodeTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return ""
	}
	data, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
