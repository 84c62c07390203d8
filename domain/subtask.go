package domain

import "time"

// SubTask is the leaf level of the hierarchy and belongs to exactly one task.
type SubTask struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	TaskType    string     `json:"taskType,omitempty"`
	Status      Status     `json:"status"`
	Assignee    string     `json:"assignee,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
