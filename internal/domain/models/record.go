package models

// Column names of the vendor base schema, in file order.
const (
	ColDate   = "date"
	ColTime   = "time"
	ColSymbol = "symbol"
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColOI     = "oi"
	ColVolume = "volume"
)

// BaseColumns is the nine-field schema every fetched row must carry.
var BaseColumns = []string{ColDate, ColTime, ColSymbol, ColOpen, ColHigh, ColLow, ColClose, ColOI, ColVolume}

// SpotColumns drops open interest and volume.
var SpotColumns = []string{ColDate, ColTime, ColSymbol, ColOpen, ColHigh, ColLow, ColClose}

// RawRow is one vendor row keyed by column name. Values keep the vendor's text form.
type RawRow map[string]string

// Record is a row restricted to the base schema.
type Record struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Symbol string `json:"symbol"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	OI     string `json:"oi"`
	Volume string `json:"volume"`
}

// Field returns the value of the named column, or "" for unknown columns.
func (r Record) Field(col string) string {
	switch col {
	case ColDate:
		return r.Date
	case ColTime:
		return r.Time
	case ColSymbol:
		return r.Symbol
	case ColOpen:
		return r.Open
	case ColHigh:
		return r.High
	case ColLow:
		return r.Low
	case ColClose:
		return r.Close
	case ColOI:
		return r.OI
	case ColVolume:
		return r.Volume
	}
	return ""
}

// Leg is the instrument-leg a row belongs to.
type Leg string

const (
	LegFutures Leg = "fut"
	LegSpot    Leg = "spot"
	LegOptions Leg = "options"
)

// Legs lists every leg in the order files are written.
var Legs = []Leg{LegFutures, LegSpot, LegOptions}

// RowSet is an ordered group of records projected to Columns.
type RowSet struct {
	Columns []string
	Records []Record
}

// Len returns the number of records.
func (s RowSet) Len() int { return len(s.Records) }

// Empty reports whether the set has no records.
func (s RowSet) Empty() bool { return len(s.Records) == 0 }

// Header returns a copy of the column names.
func (s RowSet) Header() []string {
	return append([]string(nil), s.Columns...)
}

// Values returns every record projected to Columns.
func (s RowSet) Values() [][]string {
	out := make([][]string, 0, len(s.Records))
	for _, r := range s.Records {
		row := make([]string, len(s.Columns))
		for i, col := range s.Columns {
			row[i] = r.Field(col)
		}
		out = append(out, row)
	}
	return out
}

// ClassifiedGroups partitions one day's rows by leg.
type ClassifiedGroups struct {
	Futures RowSet
	Spot    RowSet
	Options RowSet
}

// Group returns the set for leg.
func (g *ClassifiedGroups) Group(leg Leg) RowSet {
	switch leg {
	case LegFutures:
		return g.Futures
	case LegSpot:
		return g.Spot
	default:
		return g.Options
	}
}

// Total returns the number of rows across all legs.
func (g *ClassifiedGroups) Total() int {
	return g.Futures.Len() + g.Spot.Len() + g.Options.Len()
}

// DirectorySet holds the resolved target directory per leg.
type DirectorySet struct {
	Fut     string `json:"fut"`
	Spot    string `json:"spot"`
	Options string `json:"options"`
}

// Dir returns the directory for leg.
func (d DirectorySet) Dir(leg Leg) string {
	switch leg {
	case LegFutures:
		return d.Fut
	case LegSpot:
		return d.Spot
	default:
		return d.Options
	}
}
