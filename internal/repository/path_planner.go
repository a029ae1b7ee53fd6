package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
)

// DirPlanner lays out <root>/<instrument>_<leg>/<year>/<month>.
type DirPlanner struct {
	root string
}

// NewDirPlanner creates a planner rooted at root.
func NewDirPlanner(root string) repository.PathPlanner {
	return &DirPlanner{root: root}
}

// Plan computes the directory set without touching the filesystem.
func (p *DirPlanner) Plan(date time.Time, instrument string) models.DirectorySet {
	name := strings.ToLower(instrument)
	year := strconv.Itoa(date.Year())
	month := strconv.Itoa(int(date.Month()))
	dir := func(leg models.Leg) string {
		return filepath.Join(p.root, name+"_"+string(leg), year, month)
	}
	return models.DirectorySet{
		Fut:     dir(models.LegFutures),
		Spot:    dir(models.LegSpot),
		Options: dir(models.LegOptions),
	}
}

// Resolve plans the directories and creates them. Existing directories are fine,
// so concurrent calls for the same day do not conflict.
func (p *DirPlanner) Resolve(date time.Time, instrument string) (models.DirectorySet, error) {
	dirs := p.Plan(date, instrument)
	for _, leg := range models.Legs {
		if err := os.MkdirAll(dirs.Dir(leg), 0o755); err != nil {
			return models.DirectorySet{}, &models.PersistError{Leg: leg, Path: dirs.Dir(leg), Err: fmt.Errorf("mkdir: %w", err)}
		}
	}
	return dirs, nil
}
