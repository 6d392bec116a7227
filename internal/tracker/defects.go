package tracker

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/conversion"
	"github.com/zulandar/punchlist/internal/defect"
	"github.com/zulandar/punchlist/internal/filestore"
	"github.com/zulandar/punchlist/internal/models"
	"github.com/zulandar/punchlist/internal/project"
	"gorm.io/gorm"
)

// Attachment is a file supplied with a defect or comment.
type Attachment struct {
	Name string
	Body io.Reader
}

// NewDefect holds the input to CreateDefect.
type NewDefect struct {
	ProjectID   uint
	Title       string
	Description string
	Attachments []Attachment
}

// CreateProject registers a project. Managers only.
func (t *Tracker) CreateProject(ctx context.Context, actor access.Actor, opts project.CreateOpts) (*models.Project, error) {
	p, err := project.Create(t.db.WithContext(ctx), actor, opts)
	if err != nil {
		t.finish("create_project", err, "actor_id", actor.ID)
		return nil, err
	}
	t.finish("create_project", nil, "actor_id", actor.ID, "project_id", p.ID)
	return p, nil
}

// ListProjects returns the projects visible to actor.
func (t *Tracker) ListProjects(ctx context.Context, actor access.Actor) ([]models.Project, error) {
	ps, err := project.ListForActor(t.db.WithContext(ctx), actor)
	t.observe("list_projects", err, "actor_id", actor.ID)
	return ps, err
}

// GetProject returns one project with its manager and customer, if actor
// may see it.
func (t *Tracker) GetProject(ctx context.Context, actor access.Actor, projectID uint) (*models.Project, error) {
	p, err := t.getProject(ctx, actor, projectID)
	t.observe("get_project", err, "actor_id", actor.ID, "project_id", projectID)
	return p, err
}

func (t *Tracker) getProject(ctx context.Context, actor access.Actor, projectID uint) (*models.Project, error) {
	if err := access.Check(actor, access.ViewProjects); err != nil {
		return nil, err
	}
	db := t.db.WithContext(ctx)
	if _, err := project.Visible(db, actor, projectID); err != nil {
		return nil, err
	}
	return project.Get(db, projectID)
}

// CreateDefect records a New defect with its attachments. Attachment bytes
// are stored first; the defect, file and history rows are then written in
// one transaction, and a failed transaction removes the stored bytes.
func (t *Tracker) CreateDefect(ctx context.Context, actor access.Actor, in NewDefect) (*models.Defect, error) {
	d, err := t.createDefect(ctx, actor, in)
	if err != nil {
		t.finish("create_defect", err, "actor_id", actor.ID, "project_id", in.ProjectID)
		return nil, err
	}
	t.finish("create_defect", nil, "actor_id", actor.ID, "project_id", in.ProjectID, "defect_id", d.ID, "files", len(d.Files))
	return d, nil
}

func (t *Tracker) createDefect(ctx context.Context, actor access.Actor, in NewDefect) (*models.Defect, error) {
	if err := access.Check(actor, access.CreateDefect); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.New(apperr.Validation, "title is required")
	}
	for _, att := range in.Attachments {
		if att.Body == nil || strings.TrimSpace(att.Name) == "" {
			return nil, apperr.New(apperr.Validation, "file is required")
		}
	}

	var stored []filestore.Ref
	for _, att := range in.Attachments {
		ref, err := t.storeFile(ctx, in.ProjectID, att)
		if err != nil {
			t.discardFiles(stored)
			return nil, err
		}
		stored = append(stored, ref)
	}

	var created *models.Defect
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := defect.Create(tx, defect.CreateOpts{
			ProjectID:   in.ProjectID,
			InitiatorID: actor.ID,
			Title:       in.Title,
			Description: in.Description,
		}, t.now())
		if err != nil {
			return err
		}
		for _, ref := range stored {
			if _, err := defect.AttachFile(tx, d.ID, ref); err != nil {
				return err
			}
		}
		created = d
		return nil
	})
	if err != nil {
		t.discardFiles(stored)
		return nil, err
	}
	return defect.Get(t.db.WithContext(ctx), created.ID)
}

// ListDefectsForManager returns New defects in the caller's projects.
func (t *Tracker) ListDefectsForManager(ctx context.Context, actor access.Actor) ([]models.Defect, error) {
	if err := access.Check(actor, access.ListNewDefects); err != nil {
		t.observe("list_defects_for_manager", err)
		return nil, err
	}
	ds, err := defect.ListForManager(t.db.WithContext(ctx), actor.ID)
	t.observe("list_defects_for_manager", err, "actor_id", actor.ID)
	return ds, err
}

// Assignment holds the input to AssignDefect.
type Assignment struct {
	DefectID   uint
	AssigneeID uint
	DueDate    *time.Time
}

// AssignDefect converts a New defect into a task. Managers only; a second
// assignment of the same defect fails with Conflict.
func (t *Tracker) AssignDefect(ctx context.Context, actor access.Actor, in Assignment) (*models.Task, error) {
	var task *models.Task
	err := access.Check(actor, access.AssignDefect)
	if err == nil {
		err = t.withDefect(ctx, in.DefectID, func(tx *gorm.DB) error {
			var err error
			task, err = conversion.Assign(tx, conversion.AssignOpts{
				DefectID:   in.DefectID,
				AssigneeID: in.AssigneeID,
				DueDate:    in.DueDate,
				Actor:      actor,
			}, t.now())
			return err
		})
	}
	if err != nil {
		t.finish("assign_defect", err, "actor_id", actor.ID, "defect_id", in.DefectID)
		return nil, err
	}
	t.finish("assign_defect", nil, "actor_id", actor.ID, "defect_id", in.DefectID, "task_id", task.ID, "assignee_id", task.AssigneeID)
	return task, nil
}

// loadParticipation reads the defect with its project and task (if any)
// and checks that actor takes part in it: initiator, assignee, project
// customer, or a manager. Non-managers cannot tell a missing defect from
// one they may not see.
func (t *Tracker) loadParticipation(ctx context.Context, actor access.Actor, c access.Capability, defectID uint) (*models.Defect, error) {
	if err := access.Check(actor, c); err != nil {
		return nil, err
	}
	db := t.db.WithContext(ctx)
	var d models.Defect
	if err := db.Preload("Project").Where("id = ?", defectID).First(&d).Error; err != nil {
		if !isNotFound(err) {
			return nil, apperr.Wrap(apperr.Internal, err, "tracker: load defect %d", defectID)
		}
		if actor.IsManager() {
			return nil, apperr.New(apperr.NotFound, "defect not found: %d", defectID)
		}
		return nil, apperr.New(apperr.Permission, "not permitted")
	}
	var assigneeID uint
	var task models.Task
	err := db.Select("assignee_id").Where("related_defect_id = ?", defectID).Take(&task).Error
	switch {
	case err == nil:
		assigneeID = task.AssigneeID
	case isNotFound(err):
	default:
		return nil, apperr.Wrap(apperr.Internal, err, "tracker: load task for defect %d", defectID)
	}
	if err := access.CheckOwner(actor, c, d.InitiatorID, assigneeID, d.Project.CustomerID); err != nil {
		return nil, err
	}
	return &d, nil
}
