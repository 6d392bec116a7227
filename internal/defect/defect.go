// Package defect provides defect lifecycle operations.
package defect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/filestore"
	"github.com/zulandar/punchlist/internal/history"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a new defect.
type CreateOpts struct {
	ProjectID   uint
	InitiatorID uint
	Title       string
	Description string
}

// Create inserts a New defect and its "created" history entry. Run it
// inside a transaction.
func Create(tx *gorm.DB, opts CreateOpts, now time.Time) (*models.Defect, error) {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return nil, apperr.New(apperr.Validation, "title is required")
	}

	var project models.Project
	if err := tx.Where("id = ?", opts.ProjectID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "project not found: %d", opts.ProjectID)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "defect: check project %d", opts.ProjectID)
	}
	if !project.Active {
		return nil, apperr.New(apperr.Validation, "project %d is not active", opts.ProjectID)
	}

	var initiator models.User
	if err := tx.Where("id = ?", opts.InitiatorID).First(&initiator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "user not found: %d", opts.InitiatorID)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "defect: check initiator %d", opts.InitiatorID)
	}

	d := models.Defect{
		ProjectID:   project.ID,
		Title:       title,
		Description: opts.Description,
		InitiatorID: initiator.ID,
		Status:      models.DefectNew,
	}
	if err := tx.Create(&d).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "defect: create")
	}

	_, err := history.Append(tx, history.Entry{
		DefectID:   d.ID,
		ActorID:    initiator.ID,
		ActionType: models.ActionCreated,
		ActionText: fmt.Sprintf("Defect created: %s", title),
	}, now)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AttachFile records stored bytes against a defect.
func AttachFile(tx *gorm.DB, defectID uint, ref filestore.Ref) (*models.DefectFile, error) {
	f := models.DefectFile{
		DefectID: defectID,
		FileName: ref.FileName,
		FilePath: ref.FilePath,
		Size:     ref.Size,
		Checksum: ref.Checksum,
	}
	if err := tx.Create(&f).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "defect: attach %s", ref.FileName)
	}
	return &f, nil
}

// Get retrieves a defect by ID, preloading project, initiator and files.
func Get(db *gorm.DB, id uint) (*models.Defect, error) {
	var d models.Defect
	err := db.Preload("Project").Preload("Initiator").Preload("Files").
		Where("id = ?", id).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "defect not found: %d", id)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "defect: get %d", id)
	}
	return &d, nil
}

// ListForManager returns New defects in projects managed by managerID,
// ordered by id.
func ListForManager(db *gorm.DB, managerID uint) ([]models.Defect, error) {
	var defects []models.Defect
	managed := db.Model(&models.Project{}).Select("id").Where("manager_id = ?", managerID)
	err := db.Preload("Project").Preload("Initiator").Preload("Files").
		Where("project_id IN (?) AND status = ?", managed, models.DefectNew).
		Order("id ASC").
		Find(&defects).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "defect: list for manager %d", managerID)
	}
	return defects, nil
}
