// Package history keeps the append-only audit trail of every defect.
package history

import (
	"errors"
	"strings"
	"time"

	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
)

var validActions = map[string]bool{
	models.ActionCreated:           true,
	models.ActionAssigned:          true,
	models.ActionStatusChanged:     true,
	models.ActionCommented:         true,
	models.ActionCommentedWithFile: true,
}

// Entry is the input to Append.
type Entry struct {
	DefectID   uint
	ActorID    uint
	ActionType string
	ActionText string
	FileID     *uint
}

// Summary is the per-defect aggregate used by reporting.
type Summary struct {
	Count int
	Last  time.Time
}

// Append writes the next entry for e.DefectID. It must run inside the
// caller's transaction so the entry commits with the change it records.
// The entry gets seq = previous+1 and a created_at strictly after the
// previous entry's, even if the wall clock went backwards.
func Append(tx *gorm.DB, e Entry, now time.Time) (*models.DefectHistory, error) {
	if e.DefectID == 0 || e.ActorID == 0 {
		return nil, apperr.New(apperr.Validation, "history: defect and actor are required")
	}
	if !validActions[e.ActionType] {
		return nil, apperr.New(apperr.Validation, "history: unknown action type %q", e.ActionType)
	}
	isComment := e.ActionType == models.ActionCommented || e.ActionType == models.ActionCommentedWithFile
	if isComment && strings.TrimSpace(e.ActionText) == "" {
		return nil, apperr.New(apperr.Validation, "comment text is required")
	}
	if e.ActionType == models.ActionCommentedWithFile && e.FileID == nil {
		return nil, apperr.New(apperr.Validation, "history: %s requires a file", e.ActionType)
	}

	var last models.DefectHistory
	var seq uint = 1
	created := now.UTC().Truncate(time.Microsecond)
	err := tx.Where("defect_id = ?", e.DefectID).Order("seq DESC").Limit(1).Take(&last).Error
	switch {
	case err == nil:
		seq = last.Seq + 1
		if floor := last.CreatedAt.UTC().Add(time.Microsecond); created.Before(floor) {
			created = floor
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, apperr.Wrap(apperr.Internal, err, "history: load last entry for defect %d", e.DefectID)
	}

	h := models.DefectHistory{
		DefectID:   e.DefectID,
		Seq:        seq,
		ActorID:    e.ActorID,
		ActionType: e.ActionType,
		ActionText: e.ActionText,
		FileID:     e.FileID,
		CreatedAt:  created,
	}
	if err := tx.Create(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(apperr.Conflict, err, "history: concurrent append for defect %d", e.DefectID)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "history: append for defect %d", e.DefectID)
	}
	return &h, nil
}

// Read returns the full trail for a defect in ascending seq order, with
// actor and file preloaded.
func Read(db *gorm.DB, defectID uint) ([]models.DefectHistory, error) {
	var entries []models.DefectHistory
	err := db.Preload("Actor").Preload("File").
		Where("defect_id = ?", defectID).
		Order("seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "history: read defect %d", defectID)
	}
	return entries, nil
}

// Summaries returns entry count and latest created_at per defect. Defects
// with no entries are absent from the map.
func Summaries(db *gorm.DB, defectIDs []uint) (map[uint]Summary, error) {
	out := make(map[uint]Summary, len(defectIDs))
	if len(defectIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		DefectID  uint
		CreatedAt time.Time
	}
	err := db.Model(&models.DefectHistory{}).
		Select("defect_id, created_at").
		Where("defect_id IN ?", defectIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "history: summaries")
	}
	for _, r := range rows {
		s := out[r.DefectID]
		s.Count++
		if r.CreatedAt.After(s.Last) {
			s.Last = r.CreatedAt
		}
		out[r.DefectID] = s
	}
	return out, nil
}
