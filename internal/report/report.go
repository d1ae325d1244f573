// Package report turns an exported NEST dataset into the time-aligned delta
// signal used for charting: per time point, the mean of the control samples
// is subtracted from every treatment sample sharing that time point, and the
// deltas are aggregated by (time, dose).
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/phisoart/NEST/internal/metadata"
	"github.com/phisoart/NEST/internal/pipeline"
)

// DeltaRow is one treatment observation with its control-corrected intensity.
type DeltaRow struct {
	TimeHours float64
	Dose      int
	Replicate int
	Delta     float64
}

// DosePoint is the aggregate of all delta rows sharing a (time, dose) cell.
type DosePoint struct {
	TimeHours float64
	Dose      int
	Mean      float64
	Std       float64
	N         int
}

// TimeToHours converts an "H:MM" label to decimal hours.
func TimeToHours(label string) (float64, error) {
	parts := strings.SplitN(label, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad time label %q", label)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("bad time label %q: %w", label, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("bad time label %q: %w", label, err)
	}
	return float64(hours) + float64(minutes)/60, nil
}

// Deltas computes the control-corrected intensity for every treatment row.
//
// The control baseline is the mean intensity of all control rows sharing the
// time label. Treatment rows at a time point with no control observation are
// dropped; there is nothing to subtract.
func Deltas(ds pipeline.Dataset) ([]DeltaRow, error) {
	type acc struct {
		sum float64
		n   int
	}
	controls := make(map[string]*acc)
	for _, rec := range ds {
		if rec.SampleType != metadata.Control {
			continue
		}
		a := controls[rec.TimeLabel]
		if a == nil {
			a = &acc{}
			controls[rec.TimeLabel] = a
		}
		a.sum += rec.Intensity
		a.n++
	}

	rows := make([]DeltaRow, 0, len(ds))
	for _, rec := range ds {
		if rec.SampleType != metadata.Treatment {
			continue
		}
		baseline, ok := controls[rec.TimeLabel]
		if !ok {
			continue
		}
		hours, err := TimeToHours(rec.TimeLabel)
		if err != nil {
			return nil, err
		}
		rows = append(rows, DeltaRow{
			TimeHours: hours,
			Dose:      rec.Dose,
			Replicate: rec.Replicate,
			Delta:     rec.Intensity - baseline.sum/float64(baseline.n),
		})
	}
	return rows, nil
}

// Aggregate groups delta rows by (time, dose) and computes the mean and the
// sample standard deviation of each cell. Cells with a single observation
// report a standard deviation of 0. The result is ordered by dose, then time.
func Aggregate(rows []DeltaRow) []DosePoint {
	type key struct {
		hours float64
		dose  int
	}
	groups := make(map[key][]float64)
	for _, row := range rows {
		k := key{hours: row.TimeHours, dose: row.Dose}
		groups[k] = append(groups[k], row.Delta)
	}

	points := make([]DosePoint, 0, len(groups))
	for k, deltas := range groups {
		p := DosePoint{
			TimeHours: k.hours,
			Dose:      k.dose,
			Mean:      stat.Mean(deltas, nil),
			N:         len(deltas),
		}
		if len(deltas) > 1 {
			p.Std = stat.StdDev(deltas, nil)
		}
		points = append(points, p)
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Dose != points[j].Dose {
			return points[i].Dose < points[j].Dose
		}
		return points[i].TimeHours < points[j].TimeHours
	})
	return points
}

// Doses returns the distinct dose levels present, ascending.
func Doses(points []DosePoint) []int {
	seen := make(map[int]bool)
	var doses []int
	for _, p := range points {
		if !seen[p.Dose] {
			seen[p.Dose] = true
			doses = append(doses, p.Dose)
		}
	}
	sort.Ints(doses)
	return doses
}
