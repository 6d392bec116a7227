// Package project is the thin project registry: creation, lookup and the
// visibility rules reports and listings share.
package project

import (
	"errors"
	"strings"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a project. ManagerID defaults to
// the creating manager.
type CreateOpts struct {
	Name        string
	Description string
	ManagerID   uint
	CustomerID  uint
}

// Create inserts an active project.
func Create(db *gorm.DB, actor access.Actor, opts CreateOpts) (*models.Project, error) {
	if err := access.Check(actor, access.CreateProject); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, apperr.New(apperr.Validation, "project name is required")
	}
	if opts.ManagerID == 0 {
		opts.ManagerID = actor.ID
	}
	if err := requireRole(db, opts.ManagerID, models.RoleManager, "manager"); err != nil {
		return nil, err
	}
	if err := requireRole(db, opts.CustomerID, models.RoleCustomer, "customer"); err != nil {
		return nil, err
	}

	p := models.Project{
		Name:        name,
		Description: opts.Description,
		ManagerID:   opts.ManagerID,
		CustomerID:  opts.CustomerID,
		Active:      true,
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "project: create")
	}
	return &p, nil
}

func requireRole(db *gorm.DB, id uint, role models.Role, label string) error {
	var u models.User
	if err := db.Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "%s not found: %d", label, id)
		}
		return apperr.Wrap(apperr.Internal, err, "project: load %s %d", label, id)
	}
	if u.Role != role {
		return apperr.New(apperr.Validation, "user %d is not a %s", id, label)
	}
	return nil
}

// Get retrieves a project by ID with its manager and customer.
func Get(db *gorm.DB, id uint) (*models.Project, error) {
	var p models.Project
	if err := db.Preload("Manager").Preload("Customer").Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "project not found: %d", id)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "project: get %d", id)
	}
	return &p, nil
}

// visibleScope narrows a projects query to what actor may see. Managers
// see the projects they manage, customers the ones they own, engineers the
// ones where they hold a task.
func visibleScope(db *gorm.DB, actor access.Actor) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		switch actor.Role {
		case models.RoleManager:
			return q.Where("manager_id = ?", actor.ID)
		case models.RoleCustomer:
			return q.Where("customer_id = ?", actor.ID)
		case models.RoleEngineer:
			held := db.Model(&models.Task{}).Select("project_id").Where("assignee_id = ?", actor.ID)
			return q.Where("id IN (?)", held)
		}
		return q.Where("1 = 0")
	}
}

// ListForActor returns the projects visible to actor ordered by id.
func ListForActor(db *gorm.DB, actor access.Actor) ([]models.Project, error) {
	if err := access.Check(actor, access.ViewProjects); err != nil {
		return nil, err
	}
	var projects []models.Project
	err := db.Preload("Manager").Preload("Customer").
		Scopes(visibleScope(db, actor)).
		Order("id ASC").
		Find(&projects).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "project: list")
	}
	return projects, nil
}

// Visible loads projectID if actor may see it. Invisible and missing
// projects both yield Permission for non-managers.
func Visible(db *gorm.DB, actor access.Actor, projectID uint) (*models.Project, error) {
	var p models.Project
	err := db.Model(&models.Project{}).
		Scopes(visibleScope(db, actor)).
		Where("id = ?", projectID).
		First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Wrap(apperr.Internal, err, "project: check visibility of %d", projectID)
	}
	if actor.IsManager() {
		var n int64
		if err := db.Model(&models.Project{}).Where("id = ?", projectID).Count(&n).Error; err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "project: check %d", projectID)
		}
		if n == 0 {
			return nil, apperr.New(apperr.NotFound, "project not found: %d", projectID)
		}
	}
	return nil, apperr.New(apperr.Permission, "not permitted")
}
