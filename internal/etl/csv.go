package etl

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"

	"github.com/fundpulse/fundpulse/internal/domain"
)

const csvDateLayout = "2006-01-02"

// WriteCSV writes the panel as a processed flat-file snapshot, one row per
// (fund, date) observation.
func WriteCSV(path string, panel domain.Panel) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	records := make([][]string, 0, len(panel)+1)
	records = append(records, []string{"date", "fund", "open", "high", "low", "close", "volume"})
	for _, obs := range panel {
		records = append(records, []string{
			obs.Date.Format(csvDateLayout),
			obs.Fund,
			strconv.FormatFloat(obs.Open, 'f', -1, 64),
			strconv.FormatFloat(obs.High, 'f', -1, 64),
			strconv.FormatFloat(obs.Low, 'f', -1, 64),
			strconv.FormatFloat(obs.Close, 'f', -1, 64),
			strconv.FormatFloat(obs.Volume, 'f', -1, 64),
		})
	}

	df := dataframe.LoadRecords(records)
	if df.Err != nil {
		return fmt.Errorf("failed to build dataframe: %w", df.Err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer f.Close()

	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ReadCSV loads a processed snapshot back into a panel.
func ReadCSV(path string) (domain.Panel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", df.Err)
	}

	records := df.Records()
	if len(records) == 0 {
		return domain.Panel{}, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	for _, name := range []string{"date", "fund", "open", "high", "low", "close", "volume"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("snapshot missing column %q", name)
		}
	}

	panel := make(domain.Panel, 0, len(records)-1)
	for _, row := range records[1:] {
		date, err := time.Parse(csvDateLayout, row[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("failed to parse date %q: %w", row[col["date"]], err)
		}

		obs := domain.Observation{Date: date, Fund: row[col["fund"]]}
		for name, dst := range map[string]*float64{
			"open": &obs.Open, "high": &obs.High, "low": &obs.Low,
			"close": &obs.Close, "volume": &obs.Volume,
		} {
			v, err := strconv.ParseFloat(row[col[name]], 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s %q: %w", name, row[col[name]], err)
			}
			*dst = v
		}
		panel = append(panel, obs)
	}
	return panel, nil
}
