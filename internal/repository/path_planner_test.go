package repository

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"HistPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirPlannerLayout(t *testing.T) {
	root := t.TempDir()
	p := &DirPlanner{root: root}
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	dirs := p.Plan(d, "NIFTY")
	assert.Equal(t, filepath.Join(root, "nifty_fut", "2024", "1"), dirs.Fut)
	assert.Equal(t, filepath.Join(root, "nifty_spot", "2024", "1"), dirs.Spot)
	assert.Equal(t, filepath.Join(root, "nifty_options", "2024", "1"), dirs.Options)
}

func TestDirPlannerResolveIsIdempotent(t *testing.T) {
	root := t.TempDir()
	p := NewDirPlanner(root)
	d := time.Date(2024, 11, 12, 0, 0, 0, 0, time.UTC)

	first, err := p.Resolve(d, "BANKNIFTY")
	require.NoError(t, err)
	second, err := p.Resolve(d, "BANKNIFTY")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, leg := range models.Legs {
		info, err := os.Stat(first.Dir(leg))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDirPlannerResolveConcurrent(t *testing.T) {
	root := t.TempDir()
	p := NewDirPlanner(root)
	d := time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Resolve(d, "NIFTY"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("resolve: %v", err)
	}
}

func TestDirPlannerResolveFailsOnFileInTheWay(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "nifty_fut"), []byte("x"), 0o644))

	_, err := NewDirPlanner(root).Resolve(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "NIFTY")
	var pe *models.PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, models.LegFutures, pe.Leg)
}
