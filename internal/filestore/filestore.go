// Package filestore keeps attachment bytes on local disk.
//
// Writes go to a temp file, are fsynced, then renamed into place, so a
// reader never sees a partially written attachment.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ref describes stored bytes. FilePath is relative to the store root.
type Ref struct {
	FileName string
	FilePath string
	Size     int64
	Checksum string
}

// Store saves, opens and removes attachment bytes.
type Store interface {
	Save(ctx context.Context, projectID uint, name string, r io.Reader) (Ref, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
}

// Disk is a Store rooted at a directory.
type Disk struct {
	dir string
}

// NewDisk creates dir if needed and returns a Disk store rooted there.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("filestore: create %s: %w", dir, err)
	}
	return &Disk{dir: dir}, nil
}

// Dir returns the store root.
func (d *Disk) Dir() string { return d.dir }

// Open returns a reader for a previously saved path.
func (d *Disk) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", path, err)
	}
	return f, nil
}

// Save streams r to disk under <projectID>/, computing SHA-256 on the fly.
func (d *Disk) Save(ctx context.Context, projectID uint, name string, r io.Reader) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	rel := filepath.Join(strconv.FormatUint(uint64(projectID), 10), storageName(name, time.Now()))
	full := filepath.Join(d.dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return Ref{}, fmt.Errorf("filestore: create dir: %w", err)
	}
	tmp := full + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return Ref{}, fmt.Errorf("filestore: create temp: %w", err)
	}
	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(&ctxReader{ctx: ctx, r: r}, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return Ref{}, fmt.Errorf("filestore: write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return Ref{}, fmt.Errorf("filestore: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return Ref{}, fmt.Errorf("filestore: close: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp)
		return Ref{}, err
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return Ref{}, fmt.Errorf("filestore: rename: %w", err)
	}

	return Ref{
		FileName: name,
		FilePath: filepath.ToSlash(rel),
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Remove deletes a saved file. Missing files are not an error.
func (d *Disk) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filestore: remove %s: %w", path, err)
	}
	return nil
}

func (d *Disk) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("filestore: path %q escapes store", path)
	}
	return filepath.Join(d.dir, clean), nil
}

// storageName builds {name}_{timestamp}_{uuid8}{ext}.
func storageName(original string, now time.Time) string {
	ext := filepath.Ext(original)
	name := sanitize(strings.TrimSuffix(filepath.Base(original), ext))
	if len(name) > 50 {
		name = name[:50]
	}
	if strings.Trim(name, ".") == "" {
		name = "file"
	}
	ext = sanitize(ext)
	if ext == "." {
		ext = ""
	}
	return fmt.Sprintf("%s_%s_%s%s", name, now.UTC().Format("20060102150405"), uuid.New().String()[:8], ext)
}

// sanitize keeps ASCII letters, digits, dot, dash and underscore.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
