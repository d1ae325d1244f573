package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/phisoart/NEST/internal/metadata"
)

// utf8BOM is prepended to the CSV so spreadsheet applications detect the
// encoding correctly on non-ASCII content.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvHeader is the fixed column order of the exported dataset.
var csvHeader = []string{"filename", "time_label", "sample_type", "dose", "replicate", "mean_intensity"}

// SampleRecord is one row of the output table: a single scored micrograph
// joined with the metadata parsed from its filename. Records are immutable
// once created.
type SampleRecord struct {
	Filename   string
	TimeLabel  string
	SampleType metadata.SampleType
	Dose       int
	Replicate  int

	// Intensity is the unrounded robust mean; rounding happens at export.
	Intensity float64
}

// Dataset is the ordered collection of sample records produced by a batch.
type Dataset []SampleRecord

// Sort orders the dataset by (time_label, sample_type, dose, replicate)
// ascending, lexicographic on the time label. The composite key is total, so
// the result is deterministic for any input order.
func (d Dataset) Sort() {
	sort.SliceStable(d, func(i, j int) bool {
		a, b := d[i], d[j]
		if a.TimeLabel != b.TimeLabel {
			return a.TimeLabel < b.TimeLabel
		}
		if a.SampleType != b.SampleType {
			return a.SampleType < b.SampleType
		}
		if a.Dose != b.Dose {
			return a.Dose < b.Dose
		}
		return a.Replicate < b.Replicate
	})
}

// WriteCSV exports the dataset to path with the fixed column order and a
// UTF-8 BOM. Intensities are rounded to precision decimals here and nowhere
// else.
func (d Dataset) WriteCSV(path string, precision int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range d {
		row := []string{
			rec.Filename,
			rec.TimeLabel,
			string(rec.SampleType),
			strconv.Itoa(rec.Dose),
			strconv.Itoa(rec.Replicate),
			strconv.FormatFloat(rec.Intensity, 'f', precision, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", rec.Filename, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush dataset: %w", err)
	}
	return nil
}

// ReadCSV loads a dataset previously exported with WriteCSV. The BOM, if
// present, is stripped before parsing.
func ReadCSV(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}
	if len(rows[0]) != len(csvHeader) {
		return nil, fmt.Errorf("dataset %s has %d columns, want %d", path, len(rows[0]), len(csvHeader))
	}

	ds := make(Dataset, 0, len(rows)-1)
	for i, row := range rows[1:] {
		dose, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad dose %q: %w", i+2, row[3], err)
		}
		replicate, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad replicate %q: %w", i+2, row[4], err)
		}
		intensity, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad intensity %q: %w", i+2, row[5], err)
		}
		ds = append(ds, SampleRecord{
			Filename:   row[0],
			TimeLabel:  row[1],
			SampleType: metadata.SampleType(row[2]),
			Dose:       dose,
			Replicate:  replicate,
			Intensity:  intensity,
		})
	}
	return ds, nil
}

// CountByType tallies records per sample type.
func (d Dataset) CountByType() map[metadata.SampleType]int {
	counts := make(map[metadata.SampleType]int)
	for _, rec := range d {
		counts[rec.SampleType]++
	}
	return counts
}

// DoseCounts tallies records per dose for the given sample type.
func (d Dataset) DoseCounts(t metadata.SampleType) map[int]int {
	counts := make(map[int]int)
	for _, rec := range d {
		if rec.SampleType == t {
			counts[rec.Dose]++
		}
	}
	return counts
}
