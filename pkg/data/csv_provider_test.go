package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxlab/session-levels/pkg/types"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBars_DukascopyFormat(t *testing.T) {
	path := writeCSV(t, `Gmt time,Open,High,Low,Close,Volume
16.08.2023 00:00:00.000,1.09015,1.09031,1.09015,1.09031,125.5
16.08.2023 00:01:00.000,1.09031,1.09046,1.09023,1.09040,98.2
`)

	provider := NewCSVProvider()
	bars, err := provider.LoadBars(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2023, 8, 16, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 1.09015, bars[0].Open)
	assert.Equal(t, 1.09031, bars[0].High)
	assert.Equal(t, 1.09040, bars[1].Close)
	assert.Equal(t, 98.2, bars[1].Volume)
	require.NoError(t, provider.ValidateBars(bars))
}

func TestLoadBars_SkipsBrokenRows(t *testing.T) {
	path := writeCSV(t, `Gmt time,Open,High,Low,Close,Volume
16.08.2023 00:00:00.000,1.09015,1.09031,1.09015,1.09031,125.5
not a timestamp,1.0,1.0,1.0,1.0,1.0
16.08.2023 00:02:00.000,abc,1.09046,1.09023,1.09040,98.2
16.08.2023 00:03:00.000,1.09031,1.09000,1.09023,1.09040,98.2
16.08.2023 00:04:00.000,-1.0,1.09046,1.09023,1.09040,98.2
16.08.2023 00:05:00.000,1.09031,1.09046,1.09023,1.09040,98.2
`)

	bars, err := NewCSVProvider().LoadBars(path)
	require.NoError(t, err)

	// Bad timestamp, bad float, high below open and non-positive price all
	// skipped; the first and last rows survive.
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2023, 8, 16, 0, 5, 0, 0, time.UTC), bars[1].Timestamp)
}

func TestLoadBars_CustomFormat(t *testing.T) {
	path := writeCSV(t, `time,open,high,low,close,volume
2023-08-16 00:00:00,1.0901,1.0903,1.0900,1.0902,100
`)

	bars, err := NewCSVProviderWithFormat(DefaultCSVFormat).LoadBars(path)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.0902, bars[0].Close)
}

func TestLoadBars_MissingFile(t *testing.T) {
	_, err := NewCSVProvider().LoadBars(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestValidateBars(t *testing.T) {
	base := time.Date(2023, 8, 16, 0, 0, 0, 0, time.UTC)
	good := func() []types.Bar {
		return []types.Bar{
			{Timestamp: base, Open: 1.09, High: 1.091, Low: 1.089, Close: 1.09, Volume: 10},
			{Timestamp: base.Add(time.Minute), Open: 1.09, High: 1.091, Low: 1.089, Close: 1.09, Volume: 10},
		}
	}
	provider := NewCSVProvider()

	require.NoError(t, provider.ValidateBars(good()))

	assert.Error(t, provider.ValidateBars(nil))

	bars := good()
	bars[1].High = 1.0
	assert.Error(t, provider.ValidateBars(bars))

	bars = good()
	bars[1].Timestamp = base.Add(-time.Minute)
	assert.Error(t, provider.ValidateBars(bars))

	bars = good()
	bars[0].Open = 0
	assert.Error(t, provider.ValidateBars(bars))
}
