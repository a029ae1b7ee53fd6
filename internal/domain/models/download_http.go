package models

import (
	"fmt"
	"time"
)

// DownloadHTTPRequest is the body of POST /api/downloads.
type DownloadHTTPRequest struct {
	StartDate   string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	Instruments []string `json:"instruments" validate:"omitempty,dive,required,max=32"`
	MaxWorkers  int      `json:"max_workers" validate:"gte=0,lte=64"`
}

// ToDomain parses the dates. The request must have been validated.
func (r *DownloadHTTPRequest) ToDomain() (DownloadRequest, error) {
	start, err := time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return DownloadRequest{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return DownloadRequest{}, fmt.Errorf("end_date: %w", err)
	}
	return DownloadRequest{
		StartDate:   start,
		EndDate:     end,
		Instruments: r.Instruments,
		MaxWorkers:  r.MaxWorkers,
	}, nil
}

// DownloadAccepted is returned when a run has been queued.
type DownloadAccepted struct {
	RunID string `json:"run_id"`
}
