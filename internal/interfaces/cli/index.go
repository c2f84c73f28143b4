package cli

import (
	"context"
	"fmt"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/services"
	"github.com/spf13/cobra"
)

// IndexFlags holds the command-line flags for the index command
type IndexFlags struct {
	BaseURL string
}

// NewIndexCommand creates the index command
func NewIndexCommand(container *CLIContainer) *cobra.Command {
	flags := &IndexFlags{}

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Rebuild plugins.xml from the zips in a directory",
		Long: `Rebuild the plugins.xml index from the plugin zips in a directory.

Every zip is opened and its embedded metadata.txt read; zips that are
not QGIS plugin packages are skipped. The fresh index is written beside
the packages, replacing any previous one.

Examples:
  csd index ./repo/packages
  csd index ./repo/packages --base-url https://plugins.example.com/packages`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), container, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "Public base URL for download links (default from config)")

	return cmd
}

// runIndex rebuilds the index and prints the scan summary
func runIndex(ctx context.Context, container *CLIContainer, dir string, flags *IndexFlags) error {
	baseURL := flags.BaseURL
	if baseURL == "" {
		baseURL = loadConfiguration(container).RepositoryBaseURL
	}

	result, err := container.IndexService.Rebuild(ctx, services.RebuildOptions{
		Dir:     dir,
		BaseURL: baseURL,
	})
	if err != nil {
		return err
	}

	for _, skipped := range result.Skipped {
		fmt.Printf("%s skipped %s\n", warningStyle.Render("!"), skipped)
	}

	fmt.Printf("✅ Indexed %d of %d zip(s) into %s\n", len(result.Index.Plugins), result.Scanned, result.IndexPath)
	for _, plugin := range result.Index.Plugins {
		fmt.Printf("  %s %s\n", plugin.Name, plugin.Version)
	}

	return nil
}
