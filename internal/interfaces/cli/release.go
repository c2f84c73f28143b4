package cli

import (
	"context"
	"fmt"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/services"
	"github.com/spf13/cobra"
)

// ReleaseFlags holds the command-line flags for the release command
type ReleaseFlags struct {
	Tag          string
	Repository   string
	AssetName    string
	DistDir      string
	Excludes     []string
	Force        bool
	DryRun       bool
	KeepExisting bool
}

// NewReleaseCommand creates the release command
func NewReleaseCommand(container *CLIContainer) *cobra.Command {
	flags := &ReleaseFlags{}

	cmd := &cobra.Command{
		Use:   "release [dir]",
		Short: "Package the plugin and upload it as a GitHub release asset",
		Long: `Package the plugin and attach the zip to an existing GitHub release.

The release is looked up by tag. Without --tag the tag on HEAD is used,
and without --github-repository the origin remote decides where to
upload. An asset with the same name is replaced unless --keep-existing
is set. This is the command the release workflow runs in CI.

Examples:
  csd release --tag v1.2.0
  csd release --dry-run                # Show what would be uploaded
  csd release --github-repository loicbachelot/cross-section-digitizer`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runRelease(cmd.Context(), container, dir, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Tag, "tag", "", "Release tag (default the tag on HEAD)")
	cmd.Flags().StringVar(&flags.Repository, "github-repository", "", "GitHub repository as owner/name (default from config or origin)")
	cmd.Flags().StringVar(&flags.AssetName, "asset-name", "", "Asset file name (default the artifact file name)")
	cmd.Flags().StringVar(&flags.DistDir, "dist", "", "Output directory for the zip (default dist)")
	cmd.Flags().StringArrayVar(&flags.Excludes, "exclude", nil, "Glob pattern to exclude (repeatable)")
	cmd.Flags().BoolVar(&flags.Force, "force", false, "Overwrite an existing artifact")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Resolve and package but skip the upload")
	cmd.Flags().BoolVar(&flags.KeepExisting, "keep-existing", false, "Fail instead of replacing an existing asset")

	return cmd
}

// runRelease drives the release flow and prints the outcome
func runRelease(ctx context.Context, container *CLIContainer, dir string, flags *ReleaseFlags) error {
	cfg := loadConfiguration(container)

	opts := services.ReleaseOptions{
		PluginDir:    cfg.PluginDir,
		DistDir:      cfg.DistDir,
		Repository:   cfg.GitHubRepository,
		Excludes:     cfg.Excludes,
		Tag:          flags.Tag,
		AssetName:    flags.AssetName,
		Force:        flags.Force,
		DryRun:       flags.DryRun,
		KeepExisting: flags.KeepExisting,
	}
	if dir != "" {
		opts.PluginDir = dir
	}
	if flags.DistDir != "" {
		opts.DistDir = flags.DistDir
	}
	if flags.Repository != "" {
		opts.Repository = flags.Repository
	}
	if len(flags.Excludes) > 0 {
		opts.Excludes = append(opts.Excludes, flags.Excludes...)
	}

	result, err := container.ReleaseService.Release(ctx, opts)
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		fmt.Printf("%s %s\n", warningStyle.Render("!"), warning)
	}

	if result.DryRun {
		fmt.Printf("Would upload %s (%s) to %s release %s\n",
			result.AssetName, formatSize(result.Artifact.Size), result.Repo, result.Tag)
		return nil
	}

	if result.Replaced {
		fmt.Printf("Replaced existing asset %s\n", result.AssetName)
	}
	fmt.Printf("✅ Uploaded %s (%s) to %s release %s\n",
		result.Asset.Name, formatSize(result.Asset.Size), result.Repo, result.Tag)
	if result.Asset.BrowserDownloadURL != "" {
		fmt.Printf("Download: %s\n", result.Asset.BrowserDownloadURL)
	}

	return nil
}
