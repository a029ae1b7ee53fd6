package usecase

import (
	"errors"
	"fmt"
	"testing"

	"HistPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(symbol string) models.RawRow {
	return models.RawRow{
		"date": "2024-01-01", "time": "09:15:00", "symbol": symbol,
		"open": "100", "high": "101", "low": "99", "close": "100.5",
		"oi": "1200", "volume": "3400",
	}
}

func TestClassifyPartition(t *testing.T) {
	rows := []models.RawRow{
		row("NIFTY"),
		row("NIFTY-I"),
		row("NIFTY24JANCE"),
		row("NIFTY24JAN21500PE"),
		row("NIFTY-I"),
	}

	g, err := Classify(rows, "NIFTY")
	require.NoError(t, err)

	assert.Equal(t, 2, g.Futures.Len())
	assert.Equal(t, 1, g.Spot.Len())
	assert.Equal(t, 2, g.Options.Len())
	assert.Equal(t, len(rows), g.Total())
}

func TestClassifyEveryRowExactlyOnce(t *testing.T) {
	symbols := []string{"BANKNIFTY", "BANKNIFTY-I", "BANKNIFTY-II", "banknifty", "NIFTY", "BANKNIFTY24FEB46000CE", ""}
	rows := make([]models.RawRow, 0, len(symbols)*3)
	for i := 0; i < 3; i++ {
		for j, s := range symbols {
			r := row(s)
			r["time"] = fmt.Sprintf("09:%02d:%02d", i, j)
			rows = append(rows, r)
		}
	}

	g, err := Classify(rows, "BANKNIFTY")
	require.NoError(t, err)

	seen := map[string]int{}
	for _, leg := range models.Legs {
		for _, rec := range g.Group(leg).Records {
			seen[rec.Symbol+"|"+rec.Time]++
		}
	}
	assert.Len(t, seen, len(rows))
	for k, n := range seen {
		assert.Equal(t, 1, n, k)
	}
	assert.Equal(t, 3, g.Futures.Len())
	assert.Equal(t, 3, g.Spot.Len())
	assert.Equal(t, len(rows)-6, g.Options.Len())
}

func TestClassifySpotProjection(t *testing.T) {
	g, err := Classify([]models.RawRow{row("NIFTY")}, "NIFTY")
	require.NoError(t, err)

	assert.Equal(t, []string{"date", "time", "symbol", "open", "high", "low", "close"}, g.Spot.Header())
	vals := g.Spot.Values()
	require.Len(t, vals, 1)
	assert.Len(t, vals[0], 7)
	assert.NotContains(t, g.Spot.Header(), "oi")
	assert.NotContains(t, g.Spot.Header(), "volume")

	assert.Len(t, g.Futures.Header(), 9)
	assert.Len(t, g.Options.Header(), 9)
}

func TestClassifyIsCaseSensitive(t *testing.T) {
	g, err := Classify([]models.RawRow{row("nifty"), row("nifty-i")}, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, 2, g.Options.Len())
	assert.True(t, g.Spot.Empty())
	assert.True(t, g.Futures.Empty())
}

func TestClassifyIgnoresExtraColumns(t *testing.T) {
	r := row("NIFTY-I")
	r["expiry"] = "2024-01-25"
	g, err := Classify([]models.RawRow{r}, "NIFTY")
	require.NoError(t, err)
	assert.Equal(t, models.BaseColumns, g.Futures.Header())
}

func TestClassifyMalformedRow(t *testing.T) {
	bad := row("NIFTY")
	delete(bad, "oi")
	delete(bad, "close")

	_, err := Classify([]models.RawRow{row("NIFTY-I"), bad}, "NIFTY")
	require.Error(t, err)

	var mre *models.MalformedRowError
	require.True(t, errors.As(err, &mre))
	assert.Equal(t, 1, mre.Row)
	assert.ElementsMatch(t, []string{"oi", "close"}, mre.Missing)
}

func TestClassifyEmpty(t *testing.T) {
	g, err := Classify(nil, "NIFTY")
	require.NoError(t, err)
	assert.Zero(t, g.Total())
}
