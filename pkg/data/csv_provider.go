package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fxlab/session-levels/pkg/types"
)

// CSVProvider implements Provider for CSV files.
type CSVProvider struct {
	format ColumnMapping
}

// NewCSVProvider creates a CSV provider with the Dukascopy minute format.
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{format: DukascopyCSVFormat}
}

// NewCSVProviderWithFormat creates a CSV provider with a custom format.
func NewCSVProviderWithFormat(format ColumnMapping) *CSVProvider {
	return &CSVProvider{format: format}
}

// Name returns the provider name.
func (p *CSVProvider) Name() string {
	return "CSV Provider"
}

// LoadBars loads historical bars from a CSV file. Rows that fail to parse
// are skipped with a warning; timestamps must parse as UTC.
func (p *CSVProvider) LoadBars(source string) ([]types.Bar, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, err
	}

	var bars []types.Bar
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}
		lineNum++

		if len(record) < p.format.MinColumns {
			log.Warn().Int("line", lineNum).Int("columns", len(record)).Msg("insufficient columns, skipping row")
			continue
		}

		timestamp, err := time.ParseInLocation(p.format.DateFormat, record[p.format.TimestampCol], time.UTC)
		if err != nil {
			log.Warn().Int("line", lineNum).Str("value", record[p.format.TimestampCol]).Err(err).Msg("invalid timestamp, skipping row")
			continue
		}

		bar := types.Bar{Timestamp: timestamp}
		fields := []struct {
			col  int
			dst  *float64
			name string
		}{
			{p.format.OpenCol, &bar.Open, "open"},
			{p.format.HighCol, &bar.High, "high"},
			{p.format.LowCol, &bar.Low, "low"},
			{p.format.CloseCol, &bar.Close, "close"},
			{p.format.VolumeCol, &bar.Volume, "volume"},
		}
		ok := true
		for _, f := range fields {
			v, err := strconv.ParseFloat(record[f.col], 64)
			if err != nil {
				log.Warn().Int("line", lineNum).Str("field", f.name).Err(err).Msg("invalid value, skipping row")
				ok = false
				break
			}
			*f.dst = v
		}
		if !ok {
			continue
		}

		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			log.Warn().Int("line", lineNum).Msg("non-positive price, skipping row")
			continue
		}
		if bar.High < bar.Low || bar.High < bar.Open || bar.High < bar.Close ||
			bar.Low > bar.Open || bar.Low > bar.Close {
			log.Warn().Int("line", lineNum).Msg("inconsistent OHLC, skipping row")
			continue
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

// ValidateBars validates the integrity of loaded bars.
func (p *CSVProvider) ValidateBars(bars []types.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("no bars provided")
	}
	for i, bar := range bars {
		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			return fmt.Errorf("invalid price at index %d: prices must be positive", i)
		}
		if bar.High < bar.Low {
			return fmt.Errorf("invalid bar at index %d: high (%.5f) below low (%.5f)", i, bar.High, bar.Low)
		}
		if i > 0 && bar.Timestamp.Before(bars[i-1].Timestamp) {
			return fmt.Errorf("invalid timestamp sequence at index %d: bars must be chronological", i)
		}
	}
	return nil
}
