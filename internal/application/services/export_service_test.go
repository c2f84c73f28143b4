package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/calibration"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/section"
)

// writeSessionFixture saves a session file, calibrated unless told otherwise.
func writeSessionFixture(t *testing.T, dir, name string, calibrated bool) string {
	t.Helper()
	s := section.NewSession("plots/section_12.png")
	if calibrated {
		require.NoError(t, s.SetReferencePixel(calibration.RefOrigin, calibration.PixelPoint{X: 100, Y: 500}))
		require.NoError(t, s.SetReferencePixel(calibration.RefAxisX, calibration.PixelPoint{X: 300, Y: 500}))
		require.NoError(t, s.SetReferencePixel(calibration.RefAxisY, calibration.PixelPoint{X: 100, Y: 100}))
		s.SetOriginValue(calibration.RealPoint{X: 0, Y: 0})
		require.NoError(t, s.SetAxisValue(calibration.RefAxisX, 10))
		require.NoError(t, s.SetAxisValue(calibration.RefAxisY, 20))
	}
	_, err := s.AddPoint(calibration.PixelPoint{X: 200, Y: 300})
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, s.SaveFile(path))
	return path
}

// TestExportService_Export_CSV tests the default CSV export
func TestExportService_Export_CSV(t *testing.T) {
	dir := t.TempDir()
	sessionPath := writeSessionFixture(t, dir, "section.json", true)
	svc := NewExportService(noopLogger{})

	results, err := svc.Export(context.Background(), ExportOptions{SessionPaths: []string{sessionPath}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.Equal(t, FormatCSV, result.Format)
	assert.Equal(t, filepath.Join(dir, "section.csv"), result.OutPath)
	assert.Equal(t, 1, result.Points)
	assert.True(t, result.Calibrated)

	f, err := os.Open(result.OutPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"series_1", "0", "200", "300", "5", "10"}, records[1])
}

// TestExportService_Export_GeoJSONByExtension tests format inference
func TestExportService_Export_GeoJSONByExtension(t *testing.T) {
	dir := t.TempDir()
	sessionPath := writeSessionFixture(t, dir, "section.json", true)
	outPath := filepath.Join(dir, "out.geojson")
	svc := NewExportService(noopLogger{})

	results, err := svc.Export(context.Background(), ExportOptions{
		SessionPaths: []string{sessionPath},
		OutPath:      outPath,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, FormatGeoJSON, results[0].Format)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])
}

// TestExportService_Export_UncalibratedSessions tests the calibration gate
func TestExportService_Export_UncalibratedSessions(t *testing.T) {
	dir := t.TempDir()
	sessionPath := writeSessionFixture(t, dir, "raw.json", false)
	svc := NewExportService(noopLogger{})

	_, err := svc.Export(context.Background(), ExportOptions{SessionPaths: []string{sessionPath}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not calibrated")

	// Pixel-only CSV is allowed when asked for.
	results, err := svc.Export(context.Background(), ExportOptions{
		SessionPaths:      []string{sessionPath},
		AllowUncalibrated: true,
	})
	require.NoError(t, err)
	assert.False(t, results[0].Calibrated)

	// GeoJSON stays forbidden even with the flag.
	_, err = svc.Export(context.Background(), ExportOptions{
		SessionPaths:      []string{sessionPath},
		Format:            FormatGeoJSON,
		AllowUncalibrated: true,
	})
	require.Error(t, err)
}

// TestExportService_Export_BatchToDir tests multi-session export
func TestExportService_Export_BatchToDir(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "exports")
	a := writeSessionFixture(t, dir, "a.json", true)
	b := writeSessionFixture(t, dir, "b.json", true)
	svc := NewExportService(noopLogger{})

	results, err := svc.Export(context.Background(), ExportOptions{
		SessionPaths: []string{a, b},
		OutDir:       outDir,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.FileExists(t, filepath.Join(outDir, "a.csv"))
	assert.FileExists(t, filepath.Join(outDir, "b.csv"))
}

// TestExportService_Export_OptionValidation tests option conflicts
func TestExportService_Export_OptionValidation(t *testing.T) {
	svc := NewExportService(noopLogger{})

	_, err := svc.Export(context.Background(), ExportOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session files")

	_, err = svc.Export(context.Background(), ExportOptions{
		SessionPaths: []string{"a.json", "b.json"},
		OutPath:      "out.csv",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single file")

	_, err = svc.Export(context.Background(), ExportOptions{
		SessionPaths: []string{"missing.json"},
	})
	require.Error(t, err)
}

// TestExportService_Export_UnknownFormat tests format validation
func TestExportService_Export_UnknownFormat(t *testing.T) {
	dir := t.TempDir()
	sessionPath := writeSessionFixture(t, dir, "s.json", true)
	svc := NewExportService(noopLogger{})

	_, err := svc.Export(context.Background(), ExportOptions{
		SessionPaths: []string{sessionPath},
		Format:       "parquet",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export format")
}
