package models

import "time"

// Task statuses. Closed is terminal.
const (
	TaskNew        = "New"
	TaskInProgress = "InProgress"
	TaskInReview   = "InReview"
	TaskClosed     = "Closed"
)

// TaskStatuses lists task statuses in workflow order.
var TaskStatuses = []string{TaskNew, TaskInProgress, TaskInReview, TaskClosed}

// Task is the assignable unit created by converting a defect. Each defect
// produces at most one task.
type Task struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	RelatedDefectID uint   `gorm:"not null;uniqueIndex"`
	ProjectID       uint   `gorm:"not null;index"`
	Name            string `gorm:"size:256;not null"`
	Description     string `gorm:"type:text"`
	Status          string `gorm:"size:16;default:New;index"`
	CreatorID       uint   `gorm:"not null"`
	AssigneeID      uint   `gorm:"not null;index"`
	DueDate         *time.Time
	ClosedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	RelatedDefect *Defect `gorm:"foreignKey:RelatedDefectID"`
	Creator       User    `gorm:"foreignKey:CreatorID"`
	Assignee      User    `gorm:"foreignKey:AssigneeID"`
}
