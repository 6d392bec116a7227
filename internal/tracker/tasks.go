package tracker

import (
	"context"
	"fmt"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/history"
	"github.com/zulandar/punchlist/internal/models"
	"github.com/zulandar/punchlist/internal/task"
	"gorm.io/gorm"
)

// ListTasks returns the tasks visible to actor.
func (t *Tracker) ListTasks(ctx context.Context, actor access.Actor, filters task.ListFilters) ([]models.Task, error) {
	ts, err := task.List(t.db.WithContext(ctx), actor, filters)
	t.observe("list_tasks", err, "actor_id", actor.ID)
	return ts, err
}

// GetTask returns one task to its assignee, the project's customer or a
// manager. Non-managers cannot tell a missing task from a hidden one.
func (t *Tracker) GetTask(ctx context.Context, actor access.Actor, taskID uint) (*models.Task, error) {
	tk, err := t.getTask(ctx, actor, taskID)
	t.observe("get_task", err, "actor_id", actor.ID, "task_id", taskID)
	return tk, err
}

func (t *Tracker) getTask(ctx context.Context, actor access.Actor, taskID uint) (*models.Task, error) {
	if err := access.Check(actor, access.ListTasks); err != nil {
		return nil, err
	}
	db := t.db.WithContext(ctx)
	tk, err := task.Get(db, taskID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) && !actor.IsManager() {
			return nil, apperr.New(apperr.Permission, "not permitted")
		}
		return nil, err
	}
	var p models.Project
	if err := db.Select("id", "customer_id").Where("id = ?", tk.ProjectID).Take(&p).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "tracker: load project %d", tk.ProjectID)
	}
	if err := access.CheckOwner(actor, access.ListTasks, tk.AssigneeID, p.CustomerID); err != nil {
		return nil, err
	}
	return tk, nil
}

// ChangeTaskStatus moves a task through its workflow and records the change
// in the defect's history within the same transaction.
func (t *Tracker) ChangeTaskStatus(ctx context.Context, actor access.Actor, taskID uint, status string) (*models.Task, error) {
	c, err := t.changeTaskStatus(ctx, actor, taskID, status)
	if err != nil {
		t.finish("change_task_status", err, "actor_id", actor.ID, "task_id", taskID, "status", status)
		return nil, err
	}
	t.finish("change_task_status", nil, "actor_id", actor.ID, "task_id", taskID, "from", c.From, "to", c.Task.Status)
	return c.Task, nil
}

func (t *Tracker) changeTaskStatus(ctx context.Context, actor access.Actor, taskID uint, status string) (*task.Change, error) {
	var owner models.Task
	err := t.db.WithContext(ctx).Select("id", "related_defect_id").Where("id = ?", taskID).Take(&owner).Error
	if err != nil && !isNotFound(err) {
		return nil, apperr.Wrap(apperr.Internal, err, "tracker: load task %d", taskID)
	}

	run := func(tx *gorm.DB) (*task.Change, error) {
		c, err := task.ChangeStatus(tx, task.ChangeOpts{TaskID: taskID, Status: status, Actor: actor}, t.now())
		if err != nil {
			return nil, err
		}
		_, err = history.Append(tx, history.Entry{
			DefectID:   c.Task.RelatedDefectID,
			ActorID:    actor.ID,
			ActionType: models.ActionStatusChanged,
			ActionText: fmt.Sprintf("Status changed from %s to %s", c.From, c.Task.Status),
		}, t.now())
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	var c *task.Change
	if owner.ID == 0 {
		// Missing task: let the state machine pick the error kind.
		err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			c, err = run(tx)
			return err
		})
	} else {
		err = t.withDefect(ctx, owner.RelatedDefectID, func(tx *gorm.DB) error {
			var err error
			c, err = run(tx)
			return err
		})
	}
	if err != nil {
		return nil, err
	}
	if full, err := task.Get(t.db.WithContext(ctx), c.Task.ID); err == nil {
		c.Task = full
	}
	return c, nil
}
