// Package dataset loads water-quality readings exported by the sensor logger as CSV.
//
// The file has a header row with the columns DateTime, Temperature_C, pH, ORP_mV and
// TDS_ppm. DateTime uses the logger's local day-first layout "DD-MM-YYYY HH:MM" and is
// interpreted as UTC. Only DateTime is mandatory; a missing metric column is recorded
// in Dataset.Columns so callers can skip that series.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column names as written by the sensor logger.
const (
	ColumnDateTime    = "DateTime"
	ColumnTemperature = "Temperature_C"
	ColumnPH          = "pH"
	ColumnORP         = "ORP_mV"
	ColumnTDS         = "TDS_ppm"
)

// TimeLayout is the DateTime cell format (DD-MM-YYYY HH:MM).
const TimeLayout = "02-01-2006 15:04"

// DefaultSentinelTemperature marks a reading the probe reports when it is disconnected.
const DefaultSentinelTemperature = 85.0

// ErrMissingTimeColumn is returned when the header has no DateTime column.
var ErrMissingTimeColumn = errors.New("dataset: missing DateTime column")

// Reading is one CSV row.
type Reading struct {
	Time         time.Time
	TemperatureC float64
	PH           float64
	ORPmV        float64
	TDSppm       float64
}

// Dataset is the loaded table, sorted ascending by Time.
type Dataset struct {
	Readings []Reading
	// Columns holds the metric columns present in the header.
	Columns map[string]bool
}

// Has reports whether the metric column was present in the source.
func (d Dataset) Has(column string) bool {
	return d.Columns[column]
}

// WithReadings returns a copy of d carrying rs instead of its own rows.
func (d Dataset) WithReadings(rs []Reading) Dataset {
	return Dataset{Readings: rs, Columns: d.Columns}
}

// Load reads and parses the CSV file at path.
func Load(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Parse(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Parse reads CSV from r and returns the rows sorted ascending by DateTime.
// Any cell that does not parse is an error naming its line and column.
func Parse(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return Dataset{}, ErrMissingTimeColumn
		}
		return Dataset{}, fmt.Errorf("read header: %w", err)
	}

	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	timeIdx, ok := colIdx[ColumnDateTime]
	if !ok {
		return Dataset{}, ErrMissingTimeColumn
	}

	ds := Dataset{Columns: map[string]bool{}}
	metrics := []struct {
		column string
		set    func(*Reading, float64)
	}{
		{ColumnTemperature, func(r *Reading, v float64) { r.TemperatureC = v }},
		{ColumnPH, func(r *Reading, v float64) { r.PH = v }},
		{ColumnORP, func(r *Reading, v float64) { r.ORPmV = v }},
		{ColumnTDS, func(r *Reading, v float64) { r.TDSppm = v }},
	}
	for _, m := range metrics {
		if _, ok := colIdx[m.column]; ok {
			ds.Columns[m.column] = true
		}
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		t, err := time.Parse(TimeLayout, strings.TrimSpace(row[timeIdx]))
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d: %s: %w", line, ColumnDateTime, err)
		}
		rec := Reading{Time: t}
		for _, m := range metrics {
			idx, ok := colIdx[m.column]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
			if err != nil {
				return Dataset{}, fmt.Errorf("line %d: %s: %w", line, m.column, err)
			}
			m.set(&rec, v)
		}
		ds.Readings = append(ds.Readings, rec)
	}

	sort.SliceStable(ds.Readings, func(i, j int) bool {
		return ds.Readings[i].Time.Before(ds.Readings[j].Time)
	})
	return ds, nil
}

// FilterSentinel returns the readings whose temperature is not the sentinel value.
// The input slice is left untouched.
func FilterSentinel(readings []Reading, sentinel float64) []Reading {
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if r.TemperatureC == sentinel {
			continue
		}
		out = append(out, r)
	}
	return out
}
