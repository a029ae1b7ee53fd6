package usecase

import (
	"HistPull/internal/domain/models"
)

// FuturesSuffix marks the continuous futures contract of an instrument.
const FuturesSuffix = "-I"

// Classify partitions one day's rows of instrument into futures, spot and options.
//
// A row is futures when its symbol equals instrument+"-I", spot when it equals
// instrument, and options otherwise. Matching is exact and case-sensitive, so a
// vendor naming change lands rows in options instead of failing.
func Classify(rows []models.RawRow, instrument string) (*models.ClassifiedGroups, error) {
	spotSymbol := instrument
	futSymbol := instrument + FuturesSuffix

	groups := &models.ClassifiedGroups{
		Futures: models.RowSet{Columns: models.BaseColumns},
		Spot:    models.RowSet{Columns: models.SpotColumns},
		Options: models.RowSet{Columns: models.BaseColumns},
	}

	for i, raw := range rows {
		rec, err := toRecord(i, raw)
		if err != nil {
			return nil, err
		}
		switch rec.Symbol {
		case futSymbol:
			groups.Futures.Records = append(groups.Futures.Records, rec)
		case spotSymbol:
			rec.OI, rec.Volume = "", ""
			groups.Spot.Records = append(groups.Spot.Records, rec)
		default:
			groups.Options.Records = append(groups.Options.Records, rec)
		}
	}
	return groups, nil
}

func toRecord(i int, raw models.RawRow) (models.Record, error) {
	var missing []string
	for _, col := range models.BaseColumns {
		if _, ok := raw[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return models.Record{}, &models.MalformedRowError{Row: i, Missing: missing}
	}
	return models.Record{
		Date:   raw[models.ColDate],
		Time:   raw[models.ColTime],
		Symbol: raw[models.ColSymbol],
		Open:   raw[models.ColOpen],
		High:   raw[models.ColHigh],
		Low:    raw[models.ColLow],
		Close:  raw[models.ColClose],
		OI:     raw[models.ColOI],
		Volume: raw[models.ColVolume],
	}, nil
}
