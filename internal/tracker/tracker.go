// Package tracker is the boundary every caller goes through. It resolves
// nothing about identity itself: callers pass the authenticated actor in.
// Mutations on one defect (and its task) are serialized by a keyed lock,
// run in a single transaction, and bound external file I/O by a timeout.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/punchlist/internal/apperr"
	"github.com/zulandar/punchlist/internal/filestore"
	"github.com/zulandar/punchlist/internal/logger"
	"github.com/zulandar/punchlist/internal/metrics"
	"gorm.io/gorm"
)

// DefaultFileTimeout bounds one file-storage call when Options leaves it
// unset.
const DefaultFileTimeout = 10 * time.Second

// Options configures a Tracker.
type Options struct {
	DB          *gorm.DB
	Files       filestore.Store
	Log         *logger.Logger
	FileTimeout time.Duration
	Now         func() time.Time
}

// Tracker exposes the defect/task workflow operations.
type Tracker struct {
	db          *gorm.DB
	files       filestore.Store
	log         *logger.Logger
	fileTimeout time.Duration
	now         func() time.Time
	locks       *keyLock
}

// New creates a Tracker.
func New(opts Options) *Tracker {
	t := &Tracker{
		db:          opts.DB,
		files:       opts.Files,
		log:         opts.Log,
		fileTimeout: opts.FileTimeout,
		now:         opts.Now,
		locks:       newKeyLock(),
	}
	if t.log == nil {
		t.log = logger.Nop()
	}
	if t.fileTimeout <= 0 {
		t.fileTimeout = DefaultFileTimeout
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// DB returns the underlying handle for read-only callers.
func (t *Tracker) DB() *gorm.DB { return t.db }

func defectKey(id uint) string { return fmt.Sprintf("defect:%d", id) }

// withDefect runs fn in a transaction while holding the defect's lock.
func (t *Tracker) withDefect(ctx context.Context, defectID uint, fn func(tx *gorm.DB) error) error {
	unlock, err := t.locks.Lock(ctx, defectKey(defectID))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return apperr.Wrap(apperr.Canceled, err, "request canceled")
		}
		return apperr.Wrap(apperr.Dependency, err, "defect %d is busy", defectID)
	}
	defer unlock()
	return t.db.WithContext(ctx).Transaction(fn)
}

// storeFile saves bytes under the file-storage timeout. It must run
// outside any transaction.
func (t *Tracker) storeFile(ctx context.Context, projectID uint, att Attachment) (filestore.Ref, error) {
	if t.files == nil {
		return filestore.Ref{}, apperr.New(apperr.Dependency, "file storage is not configured")
	}
	sctx, cancel := context.WithTimeout(ctx, t.fileTimeout)
	defer cancel()
	ref, err := t.files.Save(sctx, projectID, att.Name, att.Body)
	if err != nil {
		return filestore.Ref{}, apperr.Wrap(apperr.Dependency, err, "file storage unavailable")
	}
	return ref, nil
}

// discardFiles removes stored bytes after a rolled-back write. It uses a
// fresh context since the request's may already be done.
func (t *Tracker) discardFiles(refs []filestore.Ref) {
	if len(refs) == 0 || t.files == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.fileTimeout)
	defer cancel()
	for _, ref := range refs {
		if err := t.files.Remove(ctx, ref.FilePath); err != nil {
			t.log.Error("orphaned attachment", "path", ref.FilePath, "error", err)
		}
	}
}

// finish records the outcome of op in metrics and logs.
func (t *Tracker) finish(op string, err error, kv ...interface{}) {
	metrics.Observe(op, err)
	if err == nil {
		t.log.Info(op, kv...)
		return
	}
	kv = append(kv, "error", err)
	switch apperr.KindOf(err) {
	case apperr.Internal, apperr.Dependency:
		t.log.Error(op+" failed", kv...)
	default:
		t.log.Debug(op+" rejected", kv...)
	}
}

// observe records the outcome of a read. Only failures are logged.
func (t *Tracker) observe(op string, err error, kv ...interface{}) {
	metrics.Observe(op, err)
	if err != nil && (apperr.Is(err, apperr.Internal) || apperr.Is(err, apperr.Dependency)) {
		t.log.Error(op+" failed", append(kv, "error", err)...)
	}
}

// isNotFound reports whether err is gorm's not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
