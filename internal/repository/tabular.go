package repository

import (
	"encoding/csv"
	"fmt"
	"io"

	"HistPull/internal/domain/models"

	"github.com/xuri/excelize/v2"
)

// TabularEncoder renders a row set into one file format.
type TabularEncoder interface {
	Ext() string
	Encode(w io.Writer, leg models.Leg, set models.RowSet) error
}

// NewEncoder returns the encoder for format ("csv" or "xlsx").
func NewEncoder(format string) (TabularEncoder, error) {
	switch format {
	case "", "csv":
		return CSVEncoder{}, nil
	case "xlsx":
		return XLSXEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// CSVEncoder writes comma-delimited files with a header row.
type CSVEncoder struct{}

func (CSVEncoder) Ext() string { return "csv" }

func (CSVEncoder) Encode(w io.Writer, _ models.Leg, set models.RowSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(set.Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range set.Values() {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSXEncoder writes one sheet named after the leg.
type XLSXEncoder struct{}

func (XLSXEncoder) Ext() string { return "xlsx" }

func (XLSXEncoder) Encode(w io.Writer, leg models.Leg, set models.RowSet) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := string(leg)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetRow("A1", toCells(set.Header())); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range set.Values() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(rec)); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func toCells(vals []string) []interface{} {
	cells := make([]interface{}, len(vals))
	for i, v := range vals {
		cells[i] = v
	}
	return cells
}
