package tracker

import (
	"context"
	"io"
	"strings"

	"github.com/zulandar/punchlist/internal/access"
	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/defect"
	"github.com/zulandar/punchlist/internal/filestore"
	"github.com/zulandar/punchlist/internal/history"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
)

// AddComment appends a text comment to a defect's history.
func (t *Tracker) AddComment(ctx context.Context, actor access.Actor, defectID uint, text string) (*models.DefectHistory, error) {
	h, err := t.addComment(ctx, actor, defectID, text, nil)
	t.finishComment("add_comment", actor, defectID, h, err)
	return h, err
}

// AddCommentWithFile stores the file, then writes the file row and the
// history entry in one transaction. If that transaction fails the stored
// bytes are removed.
func (t *Tracker) AddCommentWithFile(ctx context.Context, actor access.Actor, defectID uint, text string, att Attachment) (*models.DefectHistory, error) {
	h, err := t.addComment(ctx, actor, defectID, text, &att)
	t.finishComment("add_comment_with_file", actor, defectID, h, err)
	return h, err
}

func (t *Tracker) finishComment(op string, actor access.Actor, defectID uint, h *models.DefectHistory, err error) {
	if err != nil {
		t.finish(op, err, "actor_id", actor.ID, "defect_id", defectID)
		return
	}
	t.finish(op, nil, "actor_id", actor.ID, "defect_id", defectID, "seq", h.Seq)
}

func (t *Tracker) addComment(ctx context.Context, actor access.Actor, defectID uint, text string, att *Attachment) (*models.DefectHistory, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.Validation, "comment text is required")
	}
	if att != nil && (att.Body == nil || strings.TrimSpace(att.Name) == "") {
		return nil, apperr.New(apperr.Validation, "file is required")
	}
	d, err := t.loadParticipation(ctx, actor, access.Comment, defectID)
	if err != nil {
		return nil, err
	}

	var stored []filestore.Ref
	if att != nil {
		ref, err := t.storeFile(ctx, d.ProjectID, *att)
		if err != nil {
			return nil, err
		}
		stored = append(stored, ref)
	}

	var entry *models.DefectHistory
	err = t.withDefect(ctx, defectID, func(tx *gorm.DB) error {
		e := history.Entry{
			DefectID:   defectID,
			ActorID:    actor.ID,
			ActionType: models.ActionCommented,
			ActionText: text,
		}
		if len(stored) > 0 {
			f, err := defect.AttachFile(tx, defectID, stored[0])
			if err != nil {
				return err
			}
			e.ActionType = models.ActionCommentedWithFile
			e.FileID = &f.ID
		}
		var err error
		entry, err = history.Append(tx, e, t.now())
		return err
	})
	if err != nil {
		t.discardFiles(stored)
		return nil, err
	}
	return entry, nil
}

// ReadHistory returns a defect's audit trail to its participants.
func (t *Tracker) ReadHistory(ctx context.Context, actor access.Actor, defectID uint) ([]models.DefectHistory, error) {
	var entries []models.DefectHistory
	_, err := t.loadParticipation(ctx, actor, access.ViewHistory, defectID)
	if err == nil {
		entries, err = history.Read(t.db.WithContext(ctx), defectID)
	}
	t.observe("read_history", err, "actor_id", actor.ID, "defect_id", defectID)
	return entries, err
}

// OpenFile returns a defect attachment's metadata and bytes to the
// defect's participants. The caller closes the reader.
func (t *Tracker) OpenFile(ctx context.Context, actor access.Actor, defectID, fileID uint) (*models.DefectFile, io.ReadCloser, error) {
	f, rc, err := t.openFile(ctx, actor, defectID, fileID)
	t.observe("open_file", err, "actor_id", actor.ID, "defect_id", defectID, "file_id", fileID)
	return f, rc, err
}

func (t *Tracker) openFile(ctx context.Context, actor access.Actor, defectID, fileID uint) (*models.DefectFile, io.ReadCloser, error) {
	if _, err := t.loadParticipation(ctx, actor, access.ViewHistory, defectID); err != nil {
		return nil, nil, err
	}
	var f models.DefectFile
	err := t.db.WithContext(ctx).Where("id = ? AND defect_id = ?", fileID, defectID).First(&f).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperr.New(apperr.NotFound, "file %d not found on defect %d", fileID, defectID)
		}
		return nil, nil, apperr.Wrap(apperr.Internal, err, "tracker: load file %d", fileID)
	}
	if t.files == nil {
		return nil, nil, apperr.New(apperr.Dependency, "file storage is not configured")
	}
	rc, err := t.files.Open(ctx, f.FilePath)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Dependency, err, "file storage unavailable")
	}
	return &f, rc, nil
}
