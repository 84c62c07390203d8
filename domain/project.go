package domain

import "time"

// Project is the root of the hierarchy and owns zero or more tasks.
type Project struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Category    string      `json:"category"`
	Status      Status      `json:"status"`
	ProjectType ProjectType `json:"projectType"`
	Priority    Priority    `json:"priority"`
	Assignee    string      `json:"assignee,omitempty"`
	Assignees   []string    `json:"assignees,omitempty"`
	StartDate   *time.Time  `json:"startDate,omitempty"`
	EndDate     *time.Time  `json:"endDate,omitempty"`
	Deadline    *time.Time  `json:"deadline,omitempty"`
	Progress    *int        `json:"progress,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
