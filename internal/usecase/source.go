package usecase

import (
	"context"
	"sync"
	"time"

	"HistPull/internal/domain/models"
	drepo "HistPull/internal/domain/repository"
)

type serializedSource struct {
	mu  sync.Mutex
	src drepo.DataSource
}

// Serialize wraps src so that at most one Fetch runs at a time.
func Serialize(src drepo.DataSource) drepo.DataSource {
	return &serializedSource{src: src}
}

func (s *serializedSource) Fetch(ctx context.Context, instrument string, date time.Time) ([]models.RawRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Fetch(ctx, instrument, date)
}
