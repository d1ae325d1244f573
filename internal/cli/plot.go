package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phisoart/NEST/internal/pipeline"
	"github.com/phisoart/NEST/internal/report"
)

func newPlotCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "plot",
		Short: "Aggregate the dataset into control-corrected deltas and render the dose chart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ds, err := pipeline.ReadCSV(cfg.Analysis.OutputCSV)
			if err != nil {
				return err
			}

			rows, err := report.Deltas(ds)
			if err != nil {
				return err
			}
			points := report.Aggregate(rows)
			log.Info("aggregated dataset",
				zap.Int("records", len(ds)),
				zap.Int("delta_rows", len(rows)),
				zap.Int("points", len(points)))

			saved, err := report.Render(points, report.ChartConfig{
				Basename:  cfg.Chart.Basename,
				Title:     cfg.Chart.Title,
				Threshold: cfg.Chart.Threshold,
				Palette:   cfg.Chart.Palette,
				Formats:   cfg.Chart.Formats,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Plot saved to the following files: %s\n", strings.Join(saved, ", "))
			return nil
		},
	}
}
