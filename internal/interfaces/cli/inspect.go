package cli

import (
	"fmt"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/section"
	"github.com/spf13/cobra"
)

// InspectFlags holds the command-line flags for the inspect command
type InspectFlags struct {
	Session string
}

// NewInspectCommand creates the inspect command
func NewInspectCommand(container *CLIContainer) *cobra.Command {
	flags := &InspectFlags{}

	cmd := &cobra.Command{
		Use:   "inspect [session]",
		Short: "Show the calibration and series of a digitizing session",
		Long: `Show a summary of a saved digitizing session.

The report covers the source image, the axis calibration state with the
derived scales, every point series, and any georeference anchors.

Examples:
  csd inspect section_a.json
  csd inspect --session section_a.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				flags.Session = args[0]
			}
			if flags.Session == "" {
				return fmt.Errorf("a session file is required")
			}
			return runInspect(flags.Session)
		},
	}

	cmd.Flags().StringVar(&flags.Session, "session", "", "Session file to inspect")

	return cmd
}

// runInspect prints the session summary report
func runInspect(path string) error {
	sess, err := section.LoadFile(path)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("🔍 Session " + path))
	fmt.Println("")

	width, height := sess.ImageSize()
	fmt.Printf("Image: %s", sess.ImagePath())
	if width > 0 && height > 0 {
		fmt.Printf(" (%dx%d)", width, height)
	}
	fmt.Println("")
	fmt.Printf("Created: %s\n", sess.CreatedAt().Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n", sess.UpdatedAt().Format("2006-01-02 15:04:05"))
	fmt.Println("")

	calib := sess.Calibration()
	if sx, sy, err := calib.Scales(); err == nil {
		fmt.Println(successStyle.Render("✅ Calibrated"))
		fmt.Printf("Scale X: %g plot units per pixel\n", sx)
		fmt.Printf("Scale Y: %g plot units per pixel\n", sy)
	} else {
		fmt.Println(warningStyle.Render("! Not calibrated"))
		for _, w := range calib.Warnings() {
			fmt.Printf("%s %s\n", warningStyle.Render("!"), w)
		}
	}
	fmt.Println("")

	fmt.Println("Series:")
	fmt.Println("───────")
	for _, name := range sess.SeriesNames() {
		series, err := sess.Series(name)
		if err != nil {
			continue
		}
		active := ""
		if name == sess.ActiveSeries() {
			active = dimStyle.Render("  (active)")
		}
		fmt.Printf("%s  %s  %d point(s)%s\n", series.Name, series.Color, len(series.Points), active)
	}
	fmt.Println("")

	if anchors := sess.Anchors(); len(anchors) > 0 {
		fmt.Printf("Georeference anchors: %d\n", len(anchors))
		for i, anchor := range anchors {
			fmt.Printf("  %d: pixel (%.1f, %.1f) -> map (%.6f, %.6f)\n",
				i+1, anchor.Pixel.X, anchor.Pixel.Y, anchor.Map.X, anchor.Map.Y)
		}
		fmt.Println("")
	}

	fmt.Printf("Total: %d point(s) in %d series\n", sess.PointCount(), len(sess.SeriesNames()))

	return nil
}
