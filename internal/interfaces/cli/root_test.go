package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLogger is a no-op logger for CLI tests
type MockLogger struct{}

func (m *MockLogger) Log(level ports.LogLevel, message string, fields map[string]interface{}) {}
func (m *MockLogger) LogError(err error, message string, fields map[string]interface{})       {}
func (m *MockLogger) SetLogLevel(level ports.LogLevel)                                        {}
func (m *MockLogger) GetLogLevel() ports.LogLevel                                             { return ports.LogLevelInfo }

// newTestCLIContainer builds a container with just enough wiring for
// command helpers: a real config repository on a temp path and a silent
// logger
func newTestCLIContainer(t *testing.T) *CLIContainer {
	t.Helper()
	return &CLIContainer{
		ConfigRepo: config.NewCompositeConfigRepository(filepath.Join(t.TempDir(), ".csd.yml")),
		Logger:     &MockLogger{},
	}
}

func TestNewRootCommand_Subcommands(t *testing.T) {
	rootCmd := NewRootCommand(newTestCLIContainer(t))

	names := make(map[string]bool)
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{
		"validate", "package", "release", "publish", "index",
		"serve", "init", "transform", "inspect", "version",
	} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

// fakeMainContainer records the overrides the root command applies
type fakeMainContainer struct {
	configPath string
	debug      *bool
}

func (f *fakeMainContainer) ApplyConfigPathOverride(path string) error {
	f.configPath = path
	return nil
}

func (f *fakeMainContainer) ApplyDebugOverride(debug bool) error {
	f.debug = &debug
	return nil
}

func TestApplyConfigurationOverrides(t *testing.T) {
	container := newTestCLIContainer(t)
	fake := &fakeMainContainer{}
	container.MainContainer = fake

	rootCmd := NewRootCommand(container)
	require.NoError(t, rootCmd.PersistentFlags().Set("config", "/tmp/custom.yml"))
	require.NoError(t, rootCmd.PersistentFlags().Set("debug", "true"))

	err := applyConfigurationOverrides(rootCmd, container)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yml", fake.configPath)
	require.NotNil(t, fake.debug)
	assert.True(t, *fake.debug)
}

func TestApplyConfigurationOverrides_UnsetFlagsLeaveContainerAlone(t *testing.T) {
	container := newTestCLIContainer(t)
	fake := &fakeMainContainer{}
	container.MainContainer = fake

	rootCmd := NewRootCommand(container)

	err := applyConfigurationOverrides(rootCmd, container)

	require.NoError(t, err)
	assert.Empty(t, fake.configPath)
	assert.Nil(t, fake.debug)
}

func TestApplyConfigurationOverrides_WithoutMainContainer(t *testing.T) {
	container := newTestCLIContainer(t)
	rootCmd := NewRootCommand(container)

	assert.NoError(t, applyConfigurationOverrides(rootCmd, container))
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want string
	}{
		{name: "bytes", size: 512, want: "512 B"},
		{name: "kilobytes", size: 2048, want: "2.0 KiB"},
		{name: "megabytes", size: 5 * 1024 * 1024, want: "5.0 MiB"},
		{name: "fractional", size: 1536, want: "1.5 KiB"},
		{name: "zero", size: 0, want: "0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.size))
		})
	}
}

func TestFlattenErrors(t *testing.T) {
	assert.Nil(t, flattenErrors(nil))

	single := errors.New("one problem")
	assert.Equal(t, []error{single}, flattenErrors(single))

	var merr *multierror.Error
	merr = multierror.Append(merr, fmt.Errorf("first"), fmt.Errorf("second"), fmt.Errorf("third"))
	assert.Len(t, flattenErrors(merr), 3)
}
