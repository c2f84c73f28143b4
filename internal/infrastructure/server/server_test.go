package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/qgisrepo"
	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/storage"
)

// MockLogger implements the LoggingGateway interface for testing
type MockLogger struct{}

func (m *MockLogger) Log(level ports.LogLevel, message string, fields map[string]interface{}) {}
func (m *MockLogger) LogError(err error, message string, fields map[string]interface{})       {}
func (m *MockLogger) SetLogLevel(level ports.LogLevel)                                        {}
func (m *MockLogger) GetLogLevel() ports.LogLevel                                             { return ports.LogLevelInfo }

func seedRepository(t *testing.T) ports.StorageTarget {
	t.Helper()
	target, err := storage.NewLocalTarget(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	index := qgisrepo.NewIndex()
	index.Upsert(qgisrepo.Plugin{
		Name:        "Cross Section Digitizer",
		Version:     "1.2.0",
		FileName:    "cross_section_digitizer.1.2.0.zip",
		DownloadURL: "packages/cross_section_digitizer.1.2.0.zip",
	})
	var buf bytes.Buffer
	require.NoError(t, index.Write(&buf))
	require.NoError(t, target.Put(ctx, qgisrepo.IndexFileName, &buf, int64(buf.Len()), "application/xml"))

	zipBytes := []byte("PK\x03\x04 fake zip payload")
	require.NoError(t, target.Put(ctx, "packages/cross_section_digitizer.1.2.0.zip",
		bytes.NewReader(zipBytes), int64(len(zipBytes)), "application/zip"))
	return target
}

func newTestServer(t *testing.T, authKey string) *httptest.Server {
	t.Helper()
	srv := NewServer(seedRepository(t), authKey, &MockLogger{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestServeIndex(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/plugins.xml")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("ETag"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `<pyqgis_plugin name="Cross Section Digitizer" version="1.2.0">`)
}

func TestETagRevalidation(t *testing.T) {
	ts := newTestServer(t, "")

	first, err := http.Get(ts.URL + "/plugins.xml")
	require.NoError(t, err)
	io.Copy(io.Discard, first.Body)
	first.Body.Close()
	tag := first.Header.Get("ETag")
	require.NotEmpty(t, tag)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/plugins.xml", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", tag)

	second, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer second.Body.Close()
	assert.Equal(t, http.StatusNotModified, second.StatusCode)
}

func TestServePackage(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/packages/cross_section_digitizer.1.2.0.zip")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("PK")))
}

func TestServeMissingPackage(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/packages/absent.zip")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Post(ts.URL+"/plugins.xml", "application/xml", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRootSummary(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "QGIS plugin repository (1 plugins)")
	assert.Contains(t, string(body), "Cross Section Digitizer 1.2.0")
}

func TestRootWithoutIndex(t *testing.T) {
	target, err := storage.NewLocalTarget(t.TempDir())
	require.NoError(t, err)
	srv := NewServer(target, "", &MockLogger{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, "secret-key")

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{
			name:       "missing key",
			key:        "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key",
			key:        "nope",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "correct key",
			key:        "secret-key",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/plugins.xml", nil)
			require.NoError(t, err)
			if tt.key != "" {
				req.Header.Set("X-API-KEY", tt.key)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestPathTraversalRejected(t *testing.T) {
	srv := NewServer(seedRepository(t), "", &MockLogger{})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/packages/../../etc/passwd", nil))
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestShutdownWithoutStart(t *testing.T) {
	srv := NewServer(seedRepository(t), "", &MockLogger{})
	assert.NoError(t, srv.Shutdown(context.Background()))
}
