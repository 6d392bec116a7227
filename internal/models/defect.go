package models

import "time"

// Defect statuses. A defect moves New -> Assigned exactly once.
const (
	DefectNew      = "New"
	DefectAssigned = "Assigned"
)

// History action types.
const (
	ActionCreated           = "created"
	ActionAssigned          = "assigned"
	ActionStatusChanged     = "status_changed"
	ActionCommented         = "commented"
	ActionCommentedWithFile = "commented_with_file"
)

// Defect is an issue reported against a project, before it becomes a task.
type Defect struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ProjectID   uint   `gorm:"not null;index"`
	Title       string `gorm:"size:256;not null"`
	Description string `gorm:"type:text"`
	InitiatorID uint   `gorm:"not null;index"`
	Status      string `gorm:"size:16;default:New;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Project   Project         `gorm:"foreignKey:ProjectID"`
	Initiator User            `gorm:"foreignKey:InitiatorID"`
	Files     []DefectFile    `gorm:"foreignKey:DefectID"`
	History   []DefectHistory `gorm:"foreignKey:DefectID"`
}

// DefectFile references bytes held by the file store.
type DefectFile struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	DefectID  uint   `gorm:"not null;index"`
	FileName  string `gorm:"size:256;not null"`
	FilePath  string `gorm:"size:512;not null"`
	Size      int64
	Checksum  string `gorm:"size:64"`
	CreatedAt time.Time
}

// DefectHistory is one immutable audit record. Seq is dense and strictly
// increasing per defect, and CreatedAt follows the same order.
type DefectHistory struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	DefectID   uint      `gorm:"not null;uniqueIndex:idx_history_defect_seq"`
	Seq        uint      `gorm:"not null;uniqueIndex:idx_history_defect_seq"`
	ActorID    uint      `gorm:"not null"`
	ActionType string    `gorm:"size:32;not null"`
	ActionText string    `gorm:"type:text"`
	FileID     *uint     `gorm:"index"`
	CreatedAt  time.Time `gorm:"precision:6"`

	Actor User        `gorm:"foreignKey:ActorID"`
	File  *DefectFile `gorm:"foreignKey:FileID"`
}
