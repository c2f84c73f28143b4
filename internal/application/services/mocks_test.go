package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
)

// Mock implementations

type MockReleaseGateway struct {
	mock.Mock
}

func (m *MockReleaseGateway) FindReleaseByTag(ctx context.Context, repo ports.Repo, tag string) (*ports.Release, error) {
	args := m.Called(ctx, repo, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.Release), args.Error(1)
}

func (m *MockReleaseGateway) ListAssets(ctx context.Context, repo ports.Repo, releaseID int64) ([]ports.Asset, error) {
	args := m.Called(ctx, repo, releaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.Asset), args.Error(1)
}

func (m *MockReleaseGateway) UploadAsset(ctx context.Context, release *ports.Release, name, contentType string, body io.Reader, size int64) (*ports.Asset, error) {
	args := m.Called(ctx, release, name, contentType, body, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.Asset), args.Error(1)
}

func (m *MockReleaseGateway) DeleteAsset(ctx context.Context, repo ports.Repo, assetID int64) error {
	args := m.Called(ctx, repo, assetID)
	return args.Error(0)
}

func (m *MockReleaseGateway) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockReleaseGateway) GetRequestStats() ports.RequestStats {
	args := m.Called()
	return args.Get(0).(ports.RequestStats)
}

type MockVersionResolver struct {
	mock.Mock
}

func (m *MockVersionResolver) HeadTag(dir string) (string, error) {
	args := m.Called(dir)
	return args.String(0), args.Error(1)
}

func (m *MockVersionResolver) OriginRepository(dir string) (ports.Repo, error) {
	args := m.Called(dir)
	return args.Get(0).(ports.Repo), args.Error(1)
}

// memoryTarget is an in-memory storage target that records operation
// order so tests can assert the zip lands before the index.
type memoryTarget struct {
	mu      sync.Mutex
	objects map[string][]byte
	ops     []string
}

func newMemoryTarget() *memoryTarget {
	return &memoryTarget{objects: make(map[string][]byte)}
}

func (t *memoryTarget) Name() string { return "memory" }

func (t *memoryTarget) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.objects[key] = data
	t.ops = append(t.ops, "put "+key)
	return nil
}

func (t *memoryTarget) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, ok := t.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ports.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (t *memoryTarget) List(ctx context.Context, prefix string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var keys []string
	for k := range t.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (t *memoryTarget) URL(key string) string {
	return "memory://" + key
}

// noopLogger satisfies LoggingGateway for tests that do not assert logs.
type noopLogger struct{}

func (noopLogger) Log(level ports.LogLevel, message string, fields map[string]interface{}) {}
func (noopLogger) LogError(err error, message string, fields map[string]interface{})       {}
func (noopLogger) SetLogLevel(level ports.LogLevel)                                        {}
func (noopLogger) GetLogLevel() ports.LogLevel                                             { return ports.LogLevelInfo }

// Test fixtures

const fixtureMetadata = `[general]
name=Cross Section Digitizer
qgisMinimumVersion=3.22
description=Digitize cross-section plots into data
version=1.2.0
author=Loic Bachelot
email=loic@example.org
about=Loads a section plot image and digitizes it.
tracker=https://github.com/loicbachelot/cross_section_digitizer/issues
repository=https://github.com/loicbachelot/cross_section_digitizer
`

// writePluginFixture lays out a minimal valid plugin directory.
func writePluginFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.txt"), []byte(fixtureMetadata), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "__init__.py"), []byte("def classFactory(iface):\n    pass\n"), 0o644))
	return dir
}
