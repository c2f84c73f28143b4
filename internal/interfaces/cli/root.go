package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/application/services"
	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// ErrValidationFailed marks manifest validation failures so Execute can
// map them to exit code 2 instead of the generic failure code.
var ErrValidationFailed = errors.New("validation failed")

// CLIContainer holds all the dependencies for CLI commands
type CLIContainer struct {
	PackagingService *services.PackagingService
	ReleaseService   *services.ReleaseService
	PublishService   *services.PublishService
	IndexService     *services.IndexService
	ExportService    *services.ExportService
	ConfigRepo       *config.CompositeConfigRepository
	Logger           ports.LoggingGateway
	MainContainer    interface{} // Will be set to *di.Container, avoiding circular import
}

// NewRootCommand RootCommand represents the base command when called without any subcommands
func NewRootCommand(container *CLIContainer) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "csd",
		Short: "Cross Section Digitizer - QGIS plugin packaging and publishing",
		Long: `csd packages, validates and publishes the Cross Section Digitizer
QGIS plugin, and runs its digitizing pipeline outside of QGIS.

It builds release zips from a plugin source tree, validates metadata.txt,
uploads release assets to GitHub, maintains a QGIS plugin repository
(plugins.xml plus packages) on local disk, S3 or GCS, and converts saved
digitizing sessions into CSV or GeoJSON.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Global setup that runs before any command

			// Apply configuration overrides from flags
			if err := applyConfigurationOverrides(cmd, container); err != nil {
				return fmt.Errorf("failed to apply configuration overrides: %w", err)
			}

			return nil
		},
	}

	// Set custom version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	// Add persistent flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config file path (default is ./.csd.yml)")

	// Add subcommands
	rootCmd.AddCommand(NewValidateCommand(container))
	rootCmd.AddCommand(NewPackageCommand(container))
	rootCmd.AddCommand(NewReleaseCommand(container))
	rootCmd.AddCommand(NewPublishCommand(container))
	rootCmd.AddCommand(NewIndexCommand(container))
	rootCmd.AddCommand(NewServeCommand(container))
	rootCmd.AddCommand(NewInitCommand(container))
	rootCmd.AddCommand(NewTransformCommand(container))
	rootCmd.AddCommand(NewInspectCommand(container))
	rootCmd.AddCommand(NewVersionCommand(container))

	return rootCmd
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// applyConfigurationOverrides applies configuration overrides from command line flags
func applyConfigurationOverrides(cmd *cobra.Command, container *CLIContainer) error {
	// Type assert the MainContainer to access override methods
	mainContainer, ok := container.MainContainer.(interface {
		ApplyConfigPathOverride(string) error
		ApplyDebugOverride(bool) error
	})
	if !ok {
		// Silently continue if container doesn't support overrides
		return nil
	}

	// Check if the config path flag was provided
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		// Only apply override if the flag was explicitly set (not just default value)
		if cmd.Flags().Changed("config") {
			if err := mainContainer.ApplyConfigPathOverride(configPath); err != nil {
				return fmt.Errorf("failed to override config path: %w", err)
			}
		}
	}

	// Check if debug mode was requested
	if cmd.Flags().Changed("debug") {
		debugMode, _ := cmd.Flags().GetBool("debug")
		if err := mainContainer.ApplyDebugOverride(debugMode); err != nil {
			return fmt.Errorf("failed to override debug mode: %w", err)
		}
	}

	return nil
}

// loadConfiguration returns the merged configuration, falling back to
// defaults when no usable configuration can be loaded
func loadConfiguration(container *CLIContainer) *ports.Configuration {
	cfg, err := container.ConfigRepo.Load()
	if err != nil {
		container.Logger.LogError(err, "Failed to load configuration, using defaults", nil)
		return container.ConfigRepo.LoadDefault()
	}
	return cfg
}

// Execute adds all child commands to the root command and sets flags
// appropriately. The context reaches every command, so cancelling it
// aborts in-flight uploads and stops the repository server.
func Execute(ctx context.Context, container *CLIContainer) {
	rootCmd := NewRootCommand(container)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, ErrValidationFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
