package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	"HistPull/pkg/util"
)

// FilePersister writes each non-empty leg as <instrument>_<leg>_<dd_mm_yyyy>.<ext>.
type FilePersister struct {
	enc TabularEncoder
}

// NewFilePersister creates a persister using enc for every leg.
func NewFilePersister(enc TabularEncoder) repository.Persister {
	return &FilePersister{enc: enc}
}

// FileName builds the per-day file name for one leg.
func FileName(instrument string, leg models.Leg, t models.Task, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(instrument), leg, util.FileStamp(t.Date), ext)
}

// Persist writes the groups. Empty legs are skipped.
func (p *FilePersister) Persist(ctx context.Context, groups *models.ClassifiedGroups, dirs models.DirectorySet, task models.Task) (map[models.Leg]string, error) {
	written := make(map[models.Leg]string, len(models.Legs))
	for _, leg := range models.Legs {
		set := groups.Group(leg)
		if set.Empty() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path := filepath.Join(dirs.Dir(leg), FileName(task.Instrument, leg, task, p.enc.Ext()))
		if err := p.writeFile(path, leg, set); err != nil {
			return written, &models.PersistError{Leg: leg, Path: path, Err: err}
		}
		written[leg] = path
	}
	return written, nil
}

// writeFile encodes into a temp file next to path and renames it into place.
func (p *FilePersister) writeFile(path string, leg models.Leg, set models.RowSet) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := p.enc.Encode(tmp, leg, set); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
