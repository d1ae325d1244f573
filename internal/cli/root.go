// Package cli wires the NEST commands: crop, analyze, and plot. Each batch
// command runs a single-image smoke test first and asks for confirmation
// before touching the full acquisition, mirroring the lab workflow.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phisoart/NEST/internal/config"
	"github.com/phisoart/NEST/internal/logging"
	"github.com/phisoart/NEST/internal/pipeline"
)

// BuildInfo carries version metadata injected at build time.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// Execute runs the root command and exits non-zero on failure.
func Execute(info BuildInfo) {
	if err := NewRootCmd(info).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the nest command tree.
func NewRootCmd(info BuildInfo) *cobra.Command {
	var cfgPath string
	var yes bool

	cmd := &cobra.Command{
		Use:          "nest",
		Short:        "NEST fluorescence micrograph analysis",
		Long:         "NEST extracts robust fluorescence intensity from circular sample regions\nin micrograph batches and aggregates the results into a time-series dataset.",
		Version:      fmt.Sprintf("%s (built %s, commit %s)", info.Version, info.BuildTime, info.GitCommit),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to nest.yaml (default: $NEST_CONFIG, else built-in defaults)")
	cmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "run the full batch without asking for confirmation")

	cmd.AddCommand(
		newCropCmd(&cfgPath, &yes),
		newAnalyzeCmd(&cfgPath, &yes),
		newPlotCmd(&cfgPath),
	)
	return cmd
}

// setup loads the environment, configuration, and logger shared by all
// commands. A .env file in the working directory may set NEST_CONFIG.
func setup(cfgPath string) (*config.Config, *zap.Logger, error) {
	_ = godotenv.Load()
	if cfgPath == "" {
		cfgPath = os.Getenv("NEST_CONFIG")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := logging.New(cfg.Log.Mode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// newPipeline builds the batch pipeline from loaded configuration.
func newPipeline(cfg *config.Config, log *zap.Logger) *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{
		InputDir:  cfg.Input.Dir,
		Pattern:   cfg.Input.Pattern,
		CropDir:   cfg.Crop.Dir,
		OutputCSV: cfg.Analysis.OutputCSV,
		Workers:   cfg.Analysis.Workers,
		Precision: cfg.Analysis.Precision,
	}, log)
}

// confirm prompts on out and reads a y/n answer from in. Only "y" and "yes"
// (case-insensitive) mean yes.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (y/n): ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
