package cli

import (
	"context"
	"fmt"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/services"
	"github.com/spf13/cobra"
)

// PackageFlags holds the command-line flags for the package command
type PackageFlags struct {
	DistDir        string
	PackageName    string
	Version        string
	VersionFromGit bool
	Excludes       []string
	Force          bool
}

// NewPackageCommand creates the package command
func NewPackageCommand(container *CLIContainer) *cobra.Command {
	flags := &PackageFlags{}

	cmd := &cobra.Command{
		Use:   "package [dir]",
		Short: "Build the plugin release zip",
		Long: `Build a QGIS plugin release zip from a plugin source tree.

The zip contains a single top level directory named after the plugin
package, so the QGIS plugin manager can install it directly. The version
comes from metadata.txt unless --version or --version-from-git overrides
it, and the artifact lands at <dist>/<package>.<version>.zip.

Examples:
  csd package                          # Package the configured plugin dir
  csd package ./cross_section_digitizer
  csd package --version-from-git       # Version from the tag on HEAD
  csd package --exclude "*.ui" --exclude "docs/**"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runPackage(cmd.Context(), container, dir, flags)
		},
	}

	cmd.Flags().StringVar(&flags.DistDir, "dist", "", "Output directory for the zip (default dist)")
	cmd.Flags().StringVar(&flags.PackageName, "name", "", "Package name (default derived from metadata.txt)")
	cmd.Flags().StringVar(&flags.Version, "version", "", "Version to package (default from metadata.txt)")
	cmd.Flags().BoolVar(&flags.VersionFromGit, "version-from-git", false, "Take the version from the git tag on HEAD")
	cmd.Flags().StringArrayVar(&flags.Excludes, "exclude", nil, "Glob pattern to exclude (repeatable)")
	cmd.Flags().BoolVar(&flags.Force, "force", false, "Overwrite an existing artifact")

	return cmd
}

// runPackage builds the artifact and prints its description
func runPackage(ctx context.Context, container *CLIContainer, dir string, flags *PackageFlags) error {
	opts := packageOptions(container, dir, flags)

	artifact, err := container.PackagingService.Package(ctx, opts)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Packaged %s %s\n", artifact.PackageName, artifact.Version)
	fmt.Printf("Path: %s\n", artifact.Path)
	fmt.Printf("Size: %s (%d files)\n", formatSize(artifact.Size), artifact.FileCount)
	fmt.Printf("SHA256: %s\n", artifact.SHA256)

	return nil
}

// packageOptions merges the configuration with the command-line flags
func packageOptions(container *CLIContainer, dir string, flags *PackageFlags) services.PackageOptions {
	cfg := loadConfiguration(container)

	opts := services.PackageOptions{
		PluginDir:      cfg.PluginDir,
		DistDir:        cfg.DistDir,
		PackageName:    cfg.PackageName,
		Excludes:       cfg.Excludes,
		Version:        flags.Version,
		VersionFromGit: flags.VersionFromGit,
		Force:          flags.Force,
	}
	if dir != "" {
		opts.PluginDir = dir
	}
	if flags.DistDir != "" {
		opts.DistDir = flags.DistDir
	}
	if flags.PackageName != "" {
		opts.PackageName = flags.PackageName
	}
	if len(flags.Excludes) > 0 {
		opts.Excludes = append(opts.Excludes, flags.Excludes...)
	}

	return opts
}

// formatSize renders a byte count in a human readable unit
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
