package cli

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGrayPNG(t *testing.T, dir, name string, w, h int, v uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
}

// writeConfig builds a nest.yaml pointing every path into dir.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "nest.yaml")
	content := fmt.Sprintf(`
input:
  dir: %s
  pattern: "*.png"
crop:
  dir: %s
analysis:
  outputCSV: %s
chart:
  basename: %s
  formats: [png]
log:
  mode: release
`,
		filepath.Join(dir, "img"),
		filepath.Join(dir, "img", "circle"),
		filepath.Join(dir, "analysis.csv"),
		filepath.Join(dir, "plot"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := NewRootCmd(BuildInfo{Version: "test"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("command %v failed: %v\noutput:\n%s", args, err, out.String())
	}
	return out.String()
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		got := confirm(strings.NewReader(tt.input), &out, "proceed?")
		if got != tt.want {
			t.Errorf("confirm(%q): got %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "proceed? (y/n):") {
			t.Errorf("prompt not written: %q", out.String())
		}
	}
}

func TestCropAnalyzePlot_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	imgDir := filepath.Join(dir, "img")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	writeGrayPNG(t, imgDir, "T01_Ctr_1.png", 40, 40, 100)
	writeGrayPNG(t, imgDir, "T01_SA_1_1.png", 40, 40, 150)
	writeGrayPNG(t, imgDir, "T02_Ctr_1.png", 40, 40, 110)
	writeGrayPNG(t, imgDir, "T02_SA_1_1.png", 40, 40, 180)

	cfgPath := writeConfig(t, dir)

	out := runCommand(t, "", "crop", "--config", cfgPath, "--yes")
	if !strings.Contains(out, "Processing complete!") {
		t.Errorf("crop output missing completion: %s", out)
	}
	if !strings.Contains(out, "Succeeded: 4") {
		t.Errorf("crop output missing counts: %s", out)
	}

	out = runCommand(t, "", "analyze", "--config", cfgPath, "--yes")
	if !strings.Contains(out, "Analysis complete!") {
		t.Errorf("analyze output missing completion: %s", out)
	}
	if !strings.Contains(out, "Ctr: 2") || !strings.Contains(out, "SA: 2") {
		t.Errorf("analyze output missing summary: %s", out)
	}

	if _, err := os.Stat(filepath.Join(dir, "analysis.csv")); err != nil {
		t.Fatalf("dataset not exported: %v", err)
	}

	out = runCommand(t, "", "plot", "--config", cfgPath)
	if !strings.Contains(out, "Plot saved") {
		t.Errorf("plot output missing confirmation: %s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "plot.png")); err != nil {
		t.Errorf("chart not written: %v", err)
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	dir := t.TempDir()
	imgDir := filepath.Join(dir, "img")
	cropDir := filepath.Join(imgDir, "circle")
	if err := os.MkdirAll(cropDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeGrayPNG(t, cropDir, "T01_Ctr_1.png", 30, 30, 90)

	cfgPath := writeConfig(t, dir)

	out := runCommand(t, "n\n", "analyze", "--config", cfgPath)
	if !strings.Contains(out, "Analysis cancelled.") {
		t.Errorf("expected cancellation message, got: %s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "analysis.csv")); !os.IsNotExist(err) {
		t.Errorf("dataset should not exist after cancellation")
	}
}

func TestRootCmd_Version(t *testing.T) {
	cmd := NewRootCmd(BuildInfo{Version: "1.2.3", BuildTime: "now", GitCommit: "abc"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "1.2.3") {
		t.Errorf("version output: %q", out.String())
	}
}
