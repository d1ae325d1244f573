package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/phisoart/NEST/internal/metadata"
)

func newAnalyzeCmd(cfgPath *string, yes *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Score cropped images with a robust mean intensity and export the dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			p := newPipeline(cfg, log)
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "NEST Fluorescence Intensity Analysis Tool")
			fmt.Fprintln(out, "1. Testing with a single image...")

			smoke, err := p.Smoke()
			if err != nil {
				return fmt.Errorf("smoke test failed: %w", err)
			}
			fmt.Fprintf(out, "   Test image: %s\n", smoke.File)
			fmt.Fprintf(out, "   Parsed: time point %d (%s), type %s, dose %d, replicate %d\n",
				smoke.Sample.TimePoint, smoke.TimeLabel, smoke.Sample.Type, smoke.Sample.Dose, smoke.Sample.Replicate)
			fmt.Fprintf(out, "   Robust mean: %.2f\n", smoke.Intensity)

			if !*yes && !confirm(cmd.InOrStdin(), out, "\n2. Do you want to analyze all images?") {
				fmt.Fprintln(out, "Analysis cancelled.")
				return nil
			}

			ds, sum, err := p.Analyze()
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "\nAnalysis complete!")
			fmt.Fprintf(out, "Processed images: %d\n", sum.Processed)
			fmt.Fprintf(out, "Skipped images: %d\n", sum.Skipped)
			fmt.Fprintf(out, "Saved to: %s (%d rows)\n", cfg.Analysis.OutputCSV, len(ds))

			fmt.Fprintln(out, "\n=== Summary Statistics ===")
			fmt.Fprintln(out, "Count by sample type:")
			for _, st := range []metadata.SampleType{metadata.Control, metadata.Treatment} {
				if n := ds.CountByType()[st]; n > 0 {
					fmt.Fprintf(out, "  %s: %d\n", st, n)
				}
			}

			doses := ds.DoseCounts(metadata.Treatment)
			if len(doses) > 0 {
				fmt.Fprintln(out, "Dose counts (treatment only):")
				levels := make([]int, 0, len(doses))
				for dose := range doses {
					levels = append(levels, dose)
				}
				sort.Ints(levels)
				for _, dose := range levels {
					fmt.Fprintf(out, "  %d CFU: %d\n", dose, doses[dose])
				}
			}
			return nil
		},
	}
}
