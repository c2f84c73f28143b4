package di

import (
	"context"
	"fmt"
	"time"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/application/services"
	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/config"
	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/github"
	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/gitinfo"
	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/logging"
	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/storage"
	"github.com/loicbachelot/cross-section-digitizer/internal/interfaces/cli"
)

// Container holds all application dependencies
type Container struct {
	// Configuration
	ConfigRepo *config.CompositeConfigRepository

	// Infrastructure
	Logger          *logging.LogrusLogger
	ReleaseGateway  *github.GitHubReleaseGateway
	VersionResolver *gitinfo.GitVersionResolver

	// Application services
	PackagingService *services.PackagingService
	ReleaseService   *services.ReleaseService
	PublishService   *services.PublishService
	IndexService     *services.IndexService
	ExportService    *services.ExportService

	// CLI
	CLIContainer *cli.CLIContainer

	configPath string
	debugMode  *bool
}

// NewContainer creates and configures the dependency injection container
func NewContainer() (*Container, error) {
	container := &Container{}

	if err := container.initializeComponents(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return container, nil
}

// initializeComponents initializes all components with proper dependencies
func (c *Container) initializeComponents() error {
	// 1. Initialize configuration repository
	c.ConfigRepo = config.NewCompositeConfigRepository(c.configPath)

	// 2. Load configuration
	appConfig, loadErr := c.ConfigRepo.Load()
	if loadErr != nil {
		appConfig = c.ConfigRepo.LoadDefault()
	}

	// 3. Initialize the logger. A --debug override from a previous
	// initialization survives reloads.
	debug := appConfig.Debug
	if c.debugMode != nil {
		debug = *c.debugMode
	}
	c.Logger = logging.NewLogrusLogger(debug)
	if loadErr != nil {
		c.Logger.LogError(loadErr, "Failed to load configuration, using defaults", nil)
	}

	// 4. Initialize infrastructure components
	c.VersionResolver = gitinfo.NewGitVersionResolver()
	c.ReleaseGateway = github.NewGitHubReleaseGateway(
		appConfig.GitHubAPIURL,
		appConfig.GitHubUploadURL,
		appConfig.GitHubToken,
		time.Duration(appConfig.RequestTimeout)*time.Second,
		c.Logger,
	)

	// 5. Initialize application services
	c.PackagingService = services.NewPackagingService(c.VersionResolver, c.Logger)
	c.ReleaseService = services.NewReleaseService(c.ReleaseGateway, c.PackagingService, c.VersionResolver, c.Logger)
	c.PublishService = services.NewPublishService(c.PackagingService, storage.NewTarget, c.Logger)
	c.IndexService = services.NewIndexService(c.Logger)
	c.ExportService = services.NewExportService(c.Logger)

	// 6. Initialize the CLI container. The same instance is updated in
	// place so overrides applied mid-command reach the running command.
	if c.CLIContainer == nil {
		c.CLIContainer = &cli.CLIContainer{}
	}
	c.CLIContainer.PackagingService = c.PackagingService
	c.CLIContainer.ReleaseService = c.ReleaseService
	c.CLIContainer.PublishService = c.PublishService
	c.CLIContainer.IndexService = c.IndexService
	c.CLIContainer.ExportService = c.ExportService
	c.CLIContainer.ConfigRepo = c.ConfigRepo
	c.CLIContainer.Logger = c.Logger
	c.CLIContainer.MainContainer = c // Reference to self for override methods

	c.Logger.Log(ports.LogLevelDebug, "Dependency injection container initialized", nil)
	return nil
}

// GetCLIContainer returns the CLI container for command execution
func (c *Container) GetCLIContainer() *cli.CLIContainer {
	return c.CLIContainer
}

// ApplyConfigPathOverride reinitializes the container against another
// configuration file
func (c *Container) ApplyConfigPathOverride(path string) error {
	if path == "" {
		return fmt.Errorf("config path cannot be empty")
	}

	c.configPath = path
	if err := c.initializeComponents(); err != nil {
		return fmt.Errorf("failed to reload with config %s: %w", path, err)
	}

	return nil
}

// ApplyDebugOverride switches debug logging at runtime
func (c *Container) ApplyDebugOverride(debug bool) error {
	c.debugMode = &debug

	if debug {
		c.Logger.SetLogLevel(ports.LogLevelDebug)
	} else {
		c.Logger.SetLogLevel(ports.LogLevelInfo)
	}

	return nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Logger != nil {
		c.Logger.Log(ports.LogLevelDebug, "Shutting down", nil)
	}

	// Nothing holds open connections between commands: the repository
	// server shuts down with its command context and configuration is
	// written through on save.
	return nil
}

// HealthCheck performs a health check of all components
func (c *Container) HealthCheck(ctx context.Context) error {
	// Check configuration
	if c.ConfigRepo == nil {
		return fmt.Errorf("configuration repository not initialized")
	}
	if _, err := c.ConfigRepo.Load(); err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// Check the GitHub gateway
	if c.ReleaseGateway == nil {
		return fmt.Errorf("release gateway not initialized")
	}
	if err := c.ReleaseGateway.TestConnection(ctx); err != nil {
		return fmt.Errorf("GitHub connectivity test failed: %w", err)
	}

	// Check application services
	if c.PackagingService == nil || c.ReleaseService == nil || c.PublishService == nil {
		return fmt.Errorf("application services not initialized")
	}

	return nil
}

// GetVersion returns version information
func (c *Container) GetVersion() map[string]string {
	return map[string]string{
		"version":    cli.Version,
		"build_time": cli.BuildTime,
	}
}
