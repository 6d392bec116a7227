// Package task provides the task state machine and scoped listing.
package task

import (
	"errors"
	"time"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
)

// ValidStatus reports whether s is a known task status.
func ValidStatus(s string) bool {
	for _, st := range models.TaskStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// ChangeOpts holds parameters for a status change.
type ChangeOpts struct {
	TaskID uint
	Status string
	Actor  access.Actor
}

// Change is the outcome of a successful status change.
type Change struct {
	Task *models.Task
	From string
}

// ChangeStatus moves a task to opts.Status as a compare-and-swap on its
// current status. It writes no history; the caller records the change in
// the same transaction.
func ChangeStatus(tx *gorm.DB, opts ChangeOpts, now time.Time) (*Change, error) {
	if !ValidStatus(opts.Status) {
		return nil, apperr.New(apperr.Validation, "unknown task status %q", opts.Status)
	}
	if err := access.Check(opts.Actor, access.ChangeStatus); err != nil {
		return nil, err
	}
	if opts.Status == models.TaskClosed {
		if err := access.Check(opts.Actor, access.CloseTask); err != nil {
			return nil, err
		}
	}

	var t models.Task
	if err := tx.Where("id = ?", opts.TaskID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Only managers learn whether a task exists.
			if opts.Actor.IsManager() {
				return nil, apperr.New(apperr.NotFound, "task not found: %d", opts.TaskID)
			}
			return nil, apperr.New(apperr.Permission, "not permitted")
		}
		return nil, apperr.Wrap(apperr.Internal, err, "task: load %d", opts.TaskID)
	}
	if err := access.CheckOwner(opts.Actor, access.ChangeStatus, t.AssigneeID); err != nil {
		return nil, apperr.New(apperr.Permission, "not permitted")
	}
	if t.Status == models.TaskClosed {
		return nil, apperr.New(apperr.Conflict, "task %d is closed", t.ID)
	}

	updates := map[string]interface{}{"status": opts.Status, "updated_at": now}
	if opts.Status == models.TaskClosed {
		updates["closed_at"] = now
	}
	res := tx.Model(&models.Task{}).
		Where("id = ? AND status = ?", t.ID, t.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.Internal, res.Error, "task: update %d", t.ID)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.New(apperr.Conflict, "task %d changed concurrently", t.ID)
	}

	from := t.Status
	t.Status = opts.Status
	t.UpdatedAt = now
	if opts.Status == models.TaskClosed {
		t.ClosedAt = &now
	}
	return &Change{Task: &t, From: from}, nil
}

// Get retrieves a task by ID with its defect and assignee.
func Get(db *gorm.DB, id uint) (*models.Task, error) {
	var t models.Task
	err := db.Preload("RelatedDefect").Preload("Assignee").Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "task not found: %d", id)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "task: get %d", id)
	}
	return &t, nil
}

// ListFilters holds optional filters for listing tasks.
type ListFilters struct {
	ProjectID  uint
	Status     string
	AssigneeID uint
}

// List returns the tasks visible to actor: engineers see their own,
// customers see tasks in projects they own, managers see all. Ordered by id.
func List(db *gorm.DB, actor access.Actor, filters ListFilters) ([]models.Task, error) {
	if err := access.Check(actor, access.ListTasks); err != nil {
		return nil, err
	}
	if filters.Status != "" && !ValidStatus(filters.Status) {
		return nil, apperr.New(apperr.Validation, "unknown task status %q", filters.Status)
	}

	q := db.Model(&models.Task{}).Preload("Assignee").Preload("RelatedDefect")
	switch actor.Role {
	case models.RoleEngineer:
		q = q.Where("assignee_id = ?", actor.ID)
	case models.RoleCustomer:
		owned := db.Model(&models.Project{}).Select("id").Where("customer_id = ?", actor.ID)
		q = q.Where("project_id IN (?)", owned)
	}
	if filters.ProjectID != 0 {
		q = q.Where("project_id = ?", filters.ProjectID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.AssigneeID != 0 {
		q = q.Where("assignee_id = ?", filters.AssigneeID)
	}

	var tasks []models.Task
	if err := q.Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "task: list")
	}
	return tasks, nil
}
