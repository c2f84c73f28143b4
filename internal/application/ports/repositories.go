package ports

// Configuration represents the application configuration
type Configuration struct {
	PluginDir         string   `json:"plugin_dir" yaml:"plugin_dir"`
	DistDir           string   `json:"dist_dir" yaml:"dist_dir"`
	PackageName       string   `json:"package_name,omitempty" yaml:"package_name,omitempty"`
	Excludes          []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	GitHubRepository  string   `json:"github_repository,omitempty" yaml:"github_repository,omitempty"`
	GitHubToken       string   `json:"github_token,omitempty" yaml:"github_token,omitempty"`
	GitHubAPIURL      string   `json:"github_api_url" yaml:"github_api_url"`
	GitHubUploadURL   string   `json:"github_upload_url" yaml:"github_upload_url"`
	RepositoryURL     string   `json:"repository_url,omitempty" yaml:"repository_url,omitempty"`
	RepositoryBaseURL string   `json:"repository_base_url,omitempty" yaml:"repository_base_url,omitempty"`
	RepositoryAuthKey string   `json:"repository_auth_key,omitempty" yaml:"repository_auth_key,omitempty"`
	ServeAddr         string   `json:"serve_addr" yaml:"serve_addr"`
	Debug             bool     `json:"debug" yaml:"debug"`
	RequestTimeout    int      `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	RetryAttempts     int      `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay        int      `json:"retry_delay_ms" yaml:"retry_delay_ms"`
}

// ConfigurationRepository defines the interface for configuration persistence
type ConfigurationRepository interface {
	// Load retrieves the current configuration
	Load() (*Configuration, error)

	// Save persists the configuration
	Save(config *Configuration) error

	// LoadDefault returns the default configuration
	LoadDefault() *Configuration

	// Validate validates the configuration
	Validate(config *Configuration) error

	// GetConfigPath returns the path to the configuration file
	GetConfigPath() string
}
