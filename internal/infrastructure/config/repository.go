package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
)

// DefaultFileName is the project config file looked up in the working
// directory when no --config path is given.
const DefaultFileName = ".csd.yml"

// CompositeConfigRepository implements the ConfigurationRepository interface
type CompositeConfigRepository struct {
	sources    []ConfigSource
	cache      *configCache
	configPath string
}

// ConfigSource defines the interface for configuration sources
type ConfigSource interface {
	Load() (*ports.Configuration, error)
	Priority() int
	Name() string
}

type configCache struct {
	config    *ports.Configuration
	timestamp time.Time
	ttl       time.Duration
}

// NewCompositeConfigRepository creates a repository reading the config
// file (flag path, then CSD_CONFIG_FILE, then ./.csd.yml) with CSD_*
// environment variables layered on top.
func NewCompositeConfigRepository(configPath string) *CompositeConfigRepository {
	if configPath == "" {
		configPath = os.Getenv("CSD_CONFIG_FILE")
	}
	if configPath == "" {
		configPath = DefaultFileName
	}

	repo := &CompositeConfigRepository{
		cache:      &configCache{ttl: 5 * time.Minute},
		configPath: configPath,
	}
	repo.AddSource(NewEnvironmentConfigSource())
	repo.AddSource(NewFileConfigSource(configPath))
	return repo
}

// AddSource adds a configuration source
func (r *CompositeConfigRepository) AddSource(source ConfigSource) {
	r.sources = append(r.sources, source)
}

// Load retrieves the current configuration: defaults, then each source
// from lowest to highest priority so higher priority values win.
func (r *CompositeConfigRepository) Load() (*ports.Configuration, error) {
	if r.cache.config != nil && time.Since(r.cache.timestamp) < r.cache.ttl {
		return r.cache.config, nil
	}

	config := r.LoadDefault()

	sorted := make([]ConfigSource, len(r.sources))
	copy(sorted, r.sources)
	// Lower number = higher priority, so apply in descending order and
	// let the high priority sources overwrite last.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})

	for _, source := range sorted {
		sourceConfig, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load %s configuration: %w", source.Name(), err)
		}
		config = merge(config, sourceConfig)
	}

	if err := r.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	r.cache.config = config
	r.cache.timestamp = time.Now()
	return config, nil
}

// Save persists the configuration to the config file as YAML
func (r *CompositeConfigRepository) Save(config *ports.Configuration) error {
	if err := r.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dir := filepath.Dir(r.configPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(r.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	r.cache.config = nil
	return nil
}

// LoadDefault returns the default configuration
func (r *CompositeConfigRepository) LoadDefault() *ports.Configuration {
	return &ports.Configuration{
		PluginDir:       ".",
		DistDir:         "dist",
		GitHubAPIURL:    "https://api.github.com",
		GitHubUploadURL: "https://uploads.github.com",
		ServeAddr:       "127.0.0.1:8808",
		RequestTimeout:  30,
		RetryAttempts:   3,
		RetryDelay:      1000,
	}
}

// Validate collects every violation instead of stopping at the first
func (r *CompositeConfigRepository) Validate(config *ports.Configuration) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	var errs *multierror.Error

	if config.PluginDir == "" {
		errs = multierror.Append(errs, fmt.Errorf("plugin_dir cannot be empty"))
	}
	if config.RequestTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("request_timeout_seconds must be greater than 0"))
	}
	if config.RetryAttempts < 0 {
		errs = multierror.Append(errs, fmt.Errorf("retry_attempts cannot be negative"))
	}
	if config.RetryDelay < 0 {
		errs = multierror.Append(errs, fmt.Errorf("retry_delay_ms cannot be negative"))
	}
	if config.ServeAddr == "" {
		errs = multierror.Append(errs, fmt.Errorf("serve_addr cannot be empty"))
	}
	if config.GitHubRepository != "" {
		if _, err := ports.ParseRepo(config.GitHubRepository); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("github_repository: %w", err))
		}
	}
	for _, field := range []struct{ name, value string }{
		{"github_api_url", config.GitHubAPIURL},
		{"github_upload_url", config.GitHubUploadURL},
	} {
		u, err := url.Parse(field.value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = multierror.Append(errs, fmt.Errorf("%s must be an http(s) URL, got %q", field.name, field.value))
		}
	}
	if config.RepositoryURL != "" {
		if err := validateTargetURL(config.RepositoryURL); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("repository_url: %w", err))
		}
	}

	return errs.ErrorOrNil()
}

// validateTargetURL accepts bare paths and file, s3 and gs URLs.
func validateTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	switch u.Scheme {
	case "", "file":
		return nil
	case "s3", "gs":
		if u.Host == "" {
			return fmt.Errorf("%s URL needs a bucket", u.Scheme)
		}
		return nil
	default:
		return fmt.Errorf("unsupported scheme %q (use a path, file://, s3:// or gs://)", u.Scheme)
	}
}

// GetConfigPath returns the path to the configuration file
func (r *CompositeConfigRepository) GetConfigPath() string {
	return r.configPath
}

// merge overlays source onto target. Strings and slices override when
// set, numbers when non-zero, booleans only when asserted.
func merge(target, source *ports.Configuration) *ports.Configuration {
	if source == nil {
		return target
	}
	if target == nil {
		return source
	}

	result := *target

	if source.PluginDir != "" {
		result.PluginDir = source.PluginDir
	}
	if source.DistDir != "" {
		result.DistDir = source.DistDir
	}
	if source.PackageName != "" {
		result.PackageName = source.PackageName
	}
	if len(source.Excludes) > 0 {
		result.Excludes = source.Excludes
	}
	if source.GitHubRepository != "" {
		result.GitHubRepository = source.GitHubRepository
	}
	if source.GitHubToken != "" {
		result.GitHubToken = source.GitHubToken
	}
	if source.GitHubAPIURL != "" {
		result.GitHubAPIURL = source.GitHubAPIURL
	}
	if source.GitHubUploadURL != "" {
		result.GitHubUploadURL = source.GitHubUploadURL
	}
	if source.RepositoryURL != "" {
		result.RepositoryURL = source.RepositoryURL
	}
	if source.RepositoryBaseURL != "" {
		result.RepositoryBaseURL = source.RepositoryBaseURL
	}
	if source.RepositoryAuthKey != "" {
		result.RepositoryAuthKey = source.RepositoryAuthKey
	}
	if source.ServeAddr != "" {
		result.ServeAddr = source.ServeAddr
	}
	if source.Debug {
		result.Debug = true
	}
	if source.RequestTimeout != 0 {
		result.RequestTimeout = source.RequestTimeout
	}
	if source.RetryAttempts != 0 {
		result.RetryAttempts = source.RetryAttempts
	}
	if source.RetryDelay != 0 {
		result.RetryDelay = source.RetryDelay
	}

	return &result
}

// FileConfigSource loads configuration from a YAML file
type FileConfigSource struct {
	filePath string
}

// NewFileConfigSource creates a new file configuration source
func NewFileConfigSource(filePath string) *FileConfigSource {
	return &FileConfigSource{filePath: filePath}
}

// Load loads configuration from the file, nil when the file is absent
func (f *FileConfigSource) Load() (*ports.Configuration, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ports.Configuration
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.filePath, err)
	}
	return &config, nil
}

// Priority returns the priority of this source (lower number = higher priority)
func (f *FileConfigSource) Priority() int {
	return 100
}

// Name returns the name of this source
func (f *FileConfigSource) Name() string {
	return "file"
}

// EnvironmentConfigSource loads configuration from CSD_* variables
type EnvironmentConfigSource struct{}

// NewEnvironmentConfigSource creates a new environment configuration source
func NewEnvironmentConfigSource() *EnvironmentConfigSource {
	return &EnvironmentConfigSource{}
}

// Load loads configuration from environment variables
func (e *EnvironmentConfigSource) Load() (*ports.Configuration, error) {
	config := &ports.Configuration{}

	if val := os.Getenv("CSD_PLUGIN_DIR"); val != "" {
		config.PluginDir = val
	}
	if val := os.Getenv("CSD_DIST_DIR"); val != "" {
		config.DistDir = val
	}
	if val := os.Getenv("CSD_PACKAGE_NAME"); val != "" {
		config.PackageName = val
	}
	if val := os.Getenv("CSD_EXCLUDES"); val != "" {
		parts := strings.Split(val, ",")
		for i, p := range parts {
			parts[i] = strings.TrimSpace(p)
		}
		config.Excludes = parts
	}
	if val := os.Getenv("CSD_GITHUB_REPOSITORY"); val != "" {
		config.GitHubRepository = val
	}
	if val := os.Getenv("CSD_GITHUB_TOKEN"); val != "" {
		config.GitHubToken = val
	} else if val := os.Getenv("GITHUB_TOKEN"); val != "" {
		// The token CI jobs get without any extra setup.
		config.GitHubToken = val
	}
	if val := os.Getenv("CSD_GITHUB_API_URL"); val != "" {
		config.GitHubAPIURL = val
	}
	if val := os.Getenv("CSD_GITHUB_UPLOAD_URL"); val != "" {
		config.GitHubUploadURL = val
	}
	if val := os.Getenv("CSD_REPOSITORY_URL"); val != "" {
		config.RepositoryURL = val
	}
	if val := os.Getenv("CSD_REPOSITORY_BASE_URL"); val != "" {
		config.RepositoryBaseURL = val
	}
	if val := os.Getenv("CSD_REPOSITORY_AUTH_KEY"); val != "" {
		config.RepositoryAuthKey = val
	}
	if val := os.Getenv("CSD_SERVE_ADDR"); val != "" {
		config.ServeAddr = val
	}
	if val := os.Getenv("CSD_DEBUG"); val == "true" || val == "1" {
		config.Debug = true
	}
	if val := os.Getenv("CSD_REQUEST_TIMEOUT"); val != "" {
		if timeout, err := strconv.Atoi(val); err == nil && timeout > 0 {
			config.RequestTimeout = timeout
		}
	}
	if val := os.Getenv("CSD_RETRY_ATTEMPTS"); val != "" {
		if attempts, err := strconv.Atoi(val); err == nil && attempts >= 0 {
			config.RetryAttempts = attempts
		}
	}
	if val := os.Getenv("CSD_RETRY_DELAY"); val != "" {
		if delay, err := strconv.Atoi(val); err == nil && delay >= 0 {
			config.RetryDelay = delay
		}
	}

	return config, nil
}

// Priority returns the priority of this source (lower number = higher priority)
func (e *EnvironmentConfigSource) Priority() int {
	return 10
}

// Name returns the name of this source
func (e *EnvironmentConfigSource) Name() string {
	return "environment"
}
