package report

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/phisoart/NEST/internal/metadata"
	"github.com/phisoart/NEST/internal/pipeline"
)

func testDataset() pipeline.Dataset {
	return pipeline.Dataset{
		{Filename: "T01_Ctr_1.tif", TimeLabel: "0:00", SampleType: metadata.Control, Dose: 0, Replicate: 1, Intensity: 100},
		{Filename: "T01_Ctr_2.tif", TimeLabel: "0:00", SampleType: metadata.Control, Dose: 0, Replicate: 2, Intensity: 110},
		{Filename: "T01_SA_1_1.tif", TimeLabel: "0:00", SampleType: metadata.Treatment, Dose: 1, Replicate: 1, Intensity: 155},
		{Filename: "T01_SA_1_2.tif", TimeLabel: "0:00", SampleType: metadata.Treatment, Dose: 1, Replicate: 2, Intensity: 175},
		{Filename: "T01_SA_5_1.tif", TimeLabel: "0:00", SampleType: metadata.Treatment, Dose: 5, Replicate: 1, Intensity: 205},
		{Filename: "T03_Ctr_1.tif", TimeLabel: "1:00", SampleType: metadata.Control, Dose: 0, Replicate: 1, Intensity: 200},
		{Filename: "T03_SA_1_1.tif", TimeLabel: "1:00", SampleType: metadata.Treatment, Dose: 1, Replicate: 1, Intensity: 300},
		// No control at 2:00; this row must be dropped.
		{Filename: "T05_SA_1_1.tif", TimeLabel: "2:00", SampleType: metadata.Treatment, Dose: 1, Replicate: 1, Intensity: 400},
	}
}

func TestTimeToHours(t *testing.T) {
	tests := []struct {
		label string
		want  float64
	}{
		{"0:00", 0},
		{"0:30", 0.5},
		{"1:00", 1},
		{"1:30", 1.5},
		{"12:00", 12},
	}
	for _, tt := range tests {
		got, err := TimeToHours(tt.label)
		if err != nil {
			t.Fatalf("TimeToHours(%q) failed: %v", tt.label, err)
		}
		if got != tt.want {
			t.Errorf("TimeToHours(%q): got %v, want %v", tt.label, got, tt.want)
		}
	}

	for _, bad := range []string{"", "noon", "1", "x:30", "1:yy"} {
		if _, err := TimeToHours(bad); err == nil {
			t.Errorf("TimeToHours(%q) should fail", bad)
		}
	}
}

func TestDeltas(t *testing.T) {
	rows, err := Deltas(testDataset())
	if err != nil {
		t.Fatalf("Deltas failed: %v", err)
	}

	// Three rows at 0:00 (baseline 105), one at 1:00 (baseline 200); the
	// 2:00 treatment row has no control and is dropped.
	if len(rows) != 4 {
		t.Fatalf("row count: got %d, want 4", len(rows))
	}

	want := map[[2]int]float64{
		{1, 1}: 50,
		{1, 2}: 70,
		{5, 1}: 100,
	}
	for _, row := range rows {
		if row.TimeHours != 0 {
			continue
		}
		if w, ok := want[[2]int{row.Dose, row.Replicate}]; !ok || row.Delta != w {
			t.Errorf("delta for dose %d rep %d: got %v, want %v", row.Dose, row.Replicate, row.Delta, w)
		}
	}
}

func TestAggregate(t *testing.T) {
	rows, err := Deltas(testDataset())
	if err != nil {
		t.Fatalf("Deltas failed: %v", err)
	}

	points := Aggregate(rows)
	if len(points) != 3 {
		t.Fatalf("point count: got %d, want 3", len(points))
	}

	// Ordered by dose, then time.
	first := points[0]
	if first.Dose != 1 || first.TimeHours != 0 {
		t.Fatalf("first point: got %+v", first)
	}
	if first.Mean != 60 || first.N != 2 {
		t.Errorf("dose 1 at 0h: got mean %v n %d, want 60 and 2", first.Mean, first.N)
	}
	if math.Abs(first.Std-math.Sqrt(200)) > 1e-9 {
		t.Errorf("dose 1 at 0h std: got %v, want sqrt(200)", first.Std)
	}

	second := points[1]
	if second.Dose != 1 || second.TimeHours != 1 || second.Mean != 100 || second.Std != 0 {
		t.Errorf("dose 1 at 1h: got %+v", second)
	}

	third := points[2]
	if third.Dose != 5 || third.Mean != 100 || third.N != 1 {
		t.Errorf("dose 5 at 0h: got %+v", third)
	}
}

func TestDoses(t *testing.T) {
	points := []DosePoint{
		{Dose: 5}, {Dose: 1}, {Dose: 5}, {Dose: 100},
	}
	got := Doses(points)
	want := []int{1, 5, 100}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestRender(t *testing.T) {
	rows, err := Deltas(testDataset())
	if err != nil {
		t.Fatalf("Deltas failed: %v", err)
	}
	points := Aggregate(rows)

	basename := filepath.Join(t.TempDir(), "chart")
	saved, err := Render(points, ChartConfig{
		Basename:  basename,
		Title:     "S. aureus",
		Threshold: 4000,
		Palette:   map[int]string{1: "#4B8B9E", 5: "#5FAD98"},
		Formats:   []string{"png", "svg"},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if len(saved) != 2 {
		t.Fatalf("saved files: got %d, want 2", len(saved))
	}
	for _, file := range saved {
		fi, err := os.Stat(file)
		if err != nil {
			t.Fatalf("stat %s: %v", file, err)
		}
		if fi.Size() == 0 {
			t.Errorf("%s is empty", file)
		}
	}
}

func TestRender_NoPoints(t *testing.T) {
	if _, err := Render(nil, ChartConfig{Basename: "x", Formats: []string{"png"}}); err == nil {
		t.Error("Render should fail with no points")
	}
}
