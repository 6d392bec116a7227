// Package conversion turns a New defect into an assigned task. The
// conversion happens at most once per defect.
package conversion

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/history"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
)

// AssignOpts holds parameters for converting a defect.
type AssignOpts struct {
	DefectID   uint
	AssigneeID uint
	DueDate    *time.Time
	Actor      access.Actor
}

// Assign moves the defect New -> Assigned, creates its task and appends an
// "assigned" history entry. tx must be a transaction: a failure in any step
// leaves the defect New with no task.
func Assign(tx *gorm.DB, opts AssignOpts, now time.Time) (*models.Task, error) {
	if err := access.Check(opts.Actor, access.AssignDefect); err != nil {
		return nil, err
	}

	var d models.Defect
	if err := tx.Where("id = ?", opts.DefectID).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "defect not found: %d", opts.DefectID)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "conversion: load defect %d", opts.DefectID)
	}
	if d.Status != models.DefectNew {
		return nil, apperr.New(apperr.Conflict, "defect %d is already assigned", d.ID)
	}

	var assignee models.User
	if err := tx.Where("id = ?", opts.AssigneeID).First(&assignee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "assignee not found: %d", opts.AssigneeID)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "conversion: load assignee %d", opts.AssigneeID)
	}
	if assignee.Role != models.RoleEngineer {
		return nil, apperr.New(apperr.Validation, "assignee %d is not an engineer", assignee.ID)
	}

	// Only one caller can win the New -> Assigned edge.
	res := tx.Model(&models.Defect{}).
		Where("id = ? AND status = ?", d.ID, models.DefectNew).
		Updates(map[string]interface{}{"status": models.DefectAssigned, "updated_at": now})
	if res.Error != nil {
		return nil, apperr.Wrap(apperr.Internal, res.Error, "conversion: mark defect %d assigned", d.ID)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.New(apperr.Conflict, "defect %d is already assigned", d.ID)
	}

	task := models.Task{
		RelatedDefectID: d.ID,
		ProjectID:       d.ProjectID,
		Name:            d.Title,
		Description:     d.Description,
		Status:          models.TaskNew,
		CreatorID:       opts.Actor.ID,
		AssigneeID:      assignee.ID,
		DueDate:         opts.DueDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.Create(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(apperr.Conflict, err, "defect %d is already assigned", d.ID)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "conversion: create task for defect %d", d.ID)
	}

	text := fmt.Sprintf("Assigned to %s", assignee.FullName)
	if opts.DueDate != nil {
		text += ", due " + opts.DueDate.Format("2006-01-02")
	}
	if _, err := history.Append(tx, history.Entry{
		DefectID:   d.ID,
		ActorID:    opts.Actor.ID,
		ActionType: models.ActionAssigned,
		ActionText: text,
	}, now); err != nil {
		return nil, err
	}

	task.Assignee = assignee
	return &task, nil
}
