package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCropCmd(cfgPath *string, yes *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "crop",
		Short: "Crop the largest centered circular region out of every acquisition image",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			p := newPipeline(cfg, log)
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "NEST Image Circular Cropping Tool")
			fmt.Fprintln(out, "1. Testing with a single image...")

			orig, cropped, testPath, err := p.CropSmoke()
			if err != nil {
				return fmt.Errorf("smoke test failed: %w", err)
			}
			fmt.Fprintf(out, "   Test successful: %s\n", testPath)
			fmt.Fprintf(out, "   Original size: %dx%d (%s)\n", orig.Width, orig.Height, orig.ColorDepth)
			fmt.Fprintf(out, "   Cropped size:  %dx%d\n", cropped.Width, cropped.Height)

			if !*yes && !confirm(cmd.InOrStdin(), out, "\n2. Do you want to process all images?") {
				fmt.Fprintln(out, "Processing cancelled.")
				return nil
			}

			sum, err := p.Crop()
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "\nProcessing complete!")
			fmt.Fprintf(out, "Succeeded: %d\n", sum.Processed)
			fmt.Fprintf(out, "Failed: %d\n", sum.Skipped)
			fmt.Fprintf(out, "Saved to: %s\n", cfg.Crop.Dir)
			return nil
		},
	}
}
