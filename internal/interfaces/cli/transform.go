package cli

import (
	"context"
	"fmt"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/services"
	"github.com/spf13/cobra"
)

// TransformFlags holds the command-line flags for the transform command
type TransformFlags struct {
	Sessions          []string
	Format            string
	OutPath           string
	OutDir            string
	AllowUncalibrated bool
}

// NewTransformCommand creates the transform command
func NewTransformCommand(container *CLIContainer) *cobra.Command {
	flags := &TransformFlags{}

	cmd := &cobra.Command{
		Use:   "transform [session...]",
		Short: "Convert digitizing sessions to CSV or GeoJSON",
		Long: `Convert saved digitizing sessions into plot coordinates.

Each session file holds the traced pixel points and the axis
calibration. The calibration maps pixels to plot coordinates, and every
series is written with both pixel and plot values. Sessions without a
calibration are rejected unless --allow-uncalibrated asks for a
pixel-only CSV.

Examples:
  csd transform section_a.json
  csd transform --session a.json --session b.json --format geojson --out-dir ./exports
  csd transform section_a.json --out profile.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := append(args, flags.Sessions...)
			return runTransform(cmd.Context(), container, paths, flags)
		},
	}

	cmd.Flags().StringArrayVar(&flags.Sessions, "session", nil, "Session file to convert (repeatable)")
	cmd.Flags().StringVar(&flags.Format, "format", "", "Output format: csv or geojson (default csv, or inferred from --out)")
	cmd.Flags().StringVar(&flags.OutPath, "out", "", "Output file (single session only)")
	cmd.Flags().StringVar(&flags.OutDir, "out-dir", "", "Output directory (default beside each session)")
	cmd.Flags().BoolVar(&flags.AllowUncalibrated, "allow-uncalibrated", false, "Allow pixel-only CSV export of uncalibrated sessions")

	return cmd
}

// runTransform exports the sessions and prints one line per file
func runTransform(ctx context.Context, container *CLIContainer, paths []string, flags *TransformFlags) error {
	results, err := container.ExportService.Export(ctx, services.ExportOptions{
		SessionPaths:      paths,
		Format:            services.ExportFormat(flags.Format),
		OutPath:           flags.OutPath,
		OutDir:            flags.OutDir,
		AllowUncalibrated: flags.AllowUncalibrated,
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		note := ""
		if !result.Calibrated {
			note = " (pixel coordinates only)"
		}
		fmt.Printf("✅ %s -> %s: %d point(s)%s\n", result.SessionPath, result.OutPath, result.Points, note)
	}

	return nil
}
