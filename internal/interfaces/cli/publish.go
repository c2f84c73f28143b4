package cli

import (
	"context"
	"fmt"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/services"
	"github.com/spf13/cobra"
)

// PublishFlags holds the command-line flags for the publish command
type PublishFlags struct {
	TargetURL    string
	BaseURL      string
	SkipPackage  bool
	ArtifactPath string
	DistDir      string
	Excludes     []string
	Force        bool
}

// NewPublishCommand creates the publish command
func NewPublishCommand(container *CLIContainer) *cobra.Command {
	flags := &PublishFlags{}

	cmd := &cobra.Command{
		Use:   "publish [dir]",
		Short: "Publish the plugin to a QGIS plugin repository",
		Long: `Package the plugin and publish it to a QGIS plugin repository target.

The target holds the plugins.xml index and the package zips. It can be a
local directory, an s3:// bucket or a gs:// bucket. The zip is uploaded
first and the merged index second, so the repository never advertises a
package that is not there yet.

Examples:
  csd publish --target ./repo
  csd publish --target s3://my-bucket/qgis --base-url https://plugins.example.com
  csd publish --skip-package --artifact dist/cross_section_digitizer.1.2.0.zip`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runPublish(cmd.Context(), container, dir, flags)
		},
	}

	cmd.Flags().StringVar(&flags.TargetURL, "target", "", "Repository target: path, file://, s3:// or gs:// (default from config)")
	cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "Public base URL for download links (default from config)")
	cmd.Flags().BoolVar(&flags.SkipPackage, "skip-package", false, "Publish an existing artifact instead of building one")
	cmd.Flags().StringVar(&flags.ArtifactPath, "artifact", "", "Artifact path used with --skip-package (default latest in dist)")
	cmd.Flags().StringVar(&flags.DistDir, "dist", "", "Output directory for the zip (default dist)")
	cmd.Flags().StringArrayVar(&flags.Excludes, "exclude", nil, "Glob pattern to exclude (repeatable)")
	cmd.Flags().BoolVar(&flags.Force, "force", false, "Overwrite an existing artifact")

	return cmd
}

// runPublish drives the publish flow and prints the outcome
func runPublish(ctx context.Context, container *CLIContainer, dir string, flags *PublishFlags) error {
	cfg := loadConfiguration(container)

	opts := services.PublishOptions{
		PluginDir:    cfg.PluginDir,
		DistDir:      cfg.DistDir,
		TargetURL:    cfg.RepositoryURL,
		BaseURL:      cfg.RepositoryBaseURL,
		Excludes:     cfg.Excludes,
		SkipPackage:  flags.SkipPackage,
		ArtifactPath: flags.ArtifactPath,
		Force:        flags.Force,
	}
	if dir != "" {
		opts.PluginDir = dir
	}
	if flags.DistDir != "" {
		opts.DistDir = flags.DistDir
	}
	if flags.TargetURL != "" {
		opts.TargetURL = flags.TargetURL
	}
	if flags.BaseURL != "" {
		opts.BaseURL = flags.BaseURL
	}
	if len(flags.Excludes) > 0 {
		opts.Excludes = append(opts.Excludes, flags.Excludes...)
	}

	result, err := container.PublishService.Publish(ctx, opts)
	if err != nil {
		return err
	}

	action := "Updated"
	if result.NewEntry {
		action = "Added"
	}
	fmt.Printf("✅ Published %s %s to %s\n", result.Entry.Name, result.Entry.Version, result.Target)
	fmt.Printf("%s index entry, package at %s\n", action, result.PackageKey)
	fmt.Printf("Download URL: %s\n", result.DownloadURL)

	return nil
}
