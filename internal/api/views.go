package api

import (
	"time"

	"github.com/zulandar/punchlist/internal/models"
)

type userView struct {
	ID       uint        `json:"id"`
	FullName string      `json:"full_name"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

func newUserView(u models.User) userView {
	return userView{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: u.Role}
}

type projectView struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ManagerID    uint      `json:"manager_id"`
	ManagerName  string    `json:"manager_name,omitempty"`
	CustomerID   uint      `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func newProjectView(p models.Project) projectView {
	return projectView{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		ManagerID:    p.ManagerID,
		ManagerName:  p.Manager.FullName,
		CustomerID:   p.CustomerID,
		CustomerName: p.Customer.FullName,
		Active:       p.Active,
		CreatedAt:    p.CreatedAt,
	}
}

type fileView struct {
	ID       uint   `json:"id"`
	FileName string `json:"file_name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

func newFileView(f models.DefectFile) fileView {
	return fileView{ID: f.ID, FileName: f.FileName, Size: f.Size, Checksum: f.Checksum}
}

type defectView struct {
	ID            uint       `json:"id"`
	ProjectID     uint       `json:"project_id"`
	ProjectName   string     `json:"project_name,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	InitiatorID   uint       `json:"initiator_id"`
	InitiatorName string     `json:"initiator_name,omitempty"`
	Files         []fileView `json:"files"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newDefectView(d models.Defect) defectView {
	v := defectView{
		ID:            d.ID,
		ProjectID:     d.ProjectID,
		ProjectName:   d.Project.Name,
		Title:         d.Title,
		Description:   d.Description,
		Status:        d.Status,
		InitiatorID:   d.InitiatorID,
		InitiatorName: d.Initiator.FullName,
		Files:         make([]fileView, 0, len(d.Files)),
		CreatedAt:     d.CreatedAt,
	}
	for _, f := range d.Files {
		v.Files = append(v.Files, newFileView(f))
	}
	return v
}

type taskView struct {
	ID              uint       `json:"id"`
	RelatedDefectID uint       `json:"related_defect_id"`
	ProjectID       uint       `json:"project_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	AssigneeID      uint       `json:"assignee_id"`
	AssigneeName    string     `json:"assignee_name,omitempty"`
	DueDate         *time.Time `json:"due_date"`
	ClosedAt        *time.Time `json:"closed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func newTaskView(t models.Task) taskView {
	return taskView{
		ID:              t.ID,
		RelatedDefectID: t.RelatedDefectID,
		ProjectID:       t.ProjectID,
		Name:            t.Name,
		Description:     t.Description,
		Status:          t.Status,
		AssigneeID:      t.AssigneeID,
		AssigneeName:    t.Assignee.FullName,
		DueDate:         t.DueDate,
		ClosedAt:        t.ClosedAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

type historyView struct {
	Seq        uint      `json:"seq"`
	ActionType string    `json:"action_type"`
	ActionText string    `json:"action_text"`
	ActorID    uint      `json:"actor_id"`
	ActorName  string    `json:"actor_name,omitempty"`
	File       *fileView `json:"file,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newHistoryView(h models.DefectHistory) historyView {
	v := historyView{
		Seq:        h.Seq,
		ActionType: h.ActionType,
		ActionText: h.ActionText,
		ActorID:    h.ActorID,
		ActorName:  h.Actor.FullName,
		CreatedAt:  h.CreatedAt,
	}
	if h.File != nil {
		f := newFileView(*h.File)
		v.File = &f
	}
	return v
}

func mapViews[T, V any](in []T, fn func(T) V) []V {
	out := make([]V, 0, len(in))
	for _, x := range in {
		out = append(out, fn(x))
	}
	return out
}
