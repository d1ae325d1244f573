// Package metadata derives structured experiment metadata from micrograph
// filenames.
//
// Every image in a NEST acquisition batch encodes its experimental context in
// the filename itself, for example:
//
//	T23_SA_1_3.tif  -> time point 23, treatment (S. aureus), 1 CFU, replicate 3
//	T01_Ctr_1.tif   -> time point 1, control, replicate 1
//
// Patterns are tried in priority order and the first match wins. Identifiers
// that match no pattern yield ErrUnrecognizedFormat so a batch caller can skip
// the image and continue.
package metadata

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// SampleType distinguishes control observations from dosed observations.
// The values are the literal tags used in filenames and in the exported CSV.
type SampleType string

const (
	// Control marks an undosed reference sample.
	Control SampleType = "Ctr"

	// Treatment marks a sample inoculated with S. aureus.
	Treatment SampleType = "SA"
)

// ErrUnrecognizedFormat reports an identifier that matches no known
// filename grammar.
var ErrUnrecognizedFormat = errors.New("unrecognized filename format")

// Sample holds the experiment metadata encoded in an image identifier.
type Sample struct {
	// TimePoint is a 1-based ordinal index into the 30-minute sampling grid,
	// not a literal time value.
	TimePoint int

	// Type is the sample category (control or treatment).
	Type SampleType

	// Dose is the inoculation dose in CFU. Always 0 for controls.
	Dose int

	// Replicate is the 1-based replicate number.
	Replicate int
}

// matchers are tried in order; the treatment grammar must come first because
// the control grammar is a prefix-shaped subset of it.
var matchers = []struct {
	re    *regexp.Regexp
	build func(groups []string) Sample
}{
	{
		re: regexp.MustCompile(`^T(\d+)_SA_(\d+)_(\d+)`),
		build: func(g []string) Sample {
			return Sample{TimePoint: atoi(g[1]), Type: Treatment, Dose: atoi(g[2]), Replicate: atoi(g[3])}
		},
	},
	{
		re: regexp.MustCompile(`^T(\d+)_Ctr_(\d+)`),
		build: func(g []string) Sample {
			return Sample{TimePoint: atoi(g[1]), Type: Control, Dose: 0, Replicate: atoi(g[2])}
		},
	},
}

// Parse extracts sample metadata from an identifier string (a filename
// without its extension).
//
// Parse never panics on malformed input; identifiers that match no grammar
// return an error wrapping ErrUnrecognizedFormat.
func Parse(identifier string) (Sample, error) {
	for _, m := range matchers {
		if g := m.re.FindStringSubmatch(identifier); g != nil {
			return m.build(g), nil
		}
	}
	return Sample{}, fmt.Errorf("%w: %q", ErrUnrecognizedFormat, identifier)
}

// atoi converts a digit run already validated by a matcher.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// TimePointLabel converts a 1-based time point on the 30-minute sampling grid
// to an "H:MM" label. Time point 1 is 0:00, time point 3 is 1:00.
func TimePointLabel(timePoint int) string {
	minutes := (timePoint - 1) * 30
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// Label returns the formatted time label for the sample's time point.
func (s Sample) Label() string {
	return TimePointLabel(s.TimePoint)
}
