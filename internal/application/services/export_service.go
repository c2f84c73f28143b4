package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/section"
)

// ExportFormat selects the export encoding
type ExportFormat string

const (
	FormatCSV     ExportFormat = "csv"
	FormatGeoJSON ExportFormat = "geojson"
)

// ExportService turns saved digitizing sessions into data files
type ExportService struct {
	logger ports.LoggingGateway
}

// NewExportService creates a new export service
func NewExportService(logger ports.LoggingGateway) *ExportService {
	return &ExportService{logger: logger}
}

// ExportOptions controls a batch export
type ExportOptions struct {
	SessionPaths []string
	Format       ExportFormat
	OutPath      string
	OutDir       string
	// AllowUncalibrated permits CSV export of sessions without a
	// calibration; the plot columns stay empty.
	AllowUncalibrated bool
}

// ExportResult describes one exported session
type ExportResult struct {
	SessionPath string
	OutPath     string
	Format      ExportFormat
	Points      int
	Calibrated  bool
}

// Export loads each session file and writes it in the requested format
func (s *ExportService) Export(ctx context.Context, opts ExportOptions) ([]ExportResult, error) {
	if len(opts.SessionPaths) == 0 {
		return nil, fmt.Errorf("no session files given")
	}
	if opts.OutPath != "" && len(opts.SessionPaths) > 1 {
		return nil, fmt.Errorf("--out names a single file, use --out-dir for multiple sessions")
	}

	results := make([]ExportResult, 0, len(opts.SessionPaths))
	for _, sessionPath := range opts.SessionPaths {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result, err := s.exportOne(sessionPath, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", sessionPath, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *ExportService) exportOne(sessionPath string, opts ExportOptions) (ExportResult, error) {
	sess, err := section.LoadFile(sessionPath)
	if err != nil {
		return ExportResult{}, err
	}

	format := opts.Format
	if format == "" {
		format = formatFromPath(opts.OutPath)
	}
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatGeoJSON {
		return ExportResult{}, fmt.Errorf("unknown export format %q", format)
	}

	var ts *section.TransformedSection
	switch {
	case sess.Calibrated():
		ts, err = sess.Transform()
		if err != nil {
			return ExportResult{}, err
		}
	case opts.AllowUncalibrated && format == FormatCSV:
		ts = sess.PixelOnly()
	default:
		return ExportResult{}, fmt.Errorf("session is not calibrated (use --allow-uncalibrated for pixel-only CSV)")
	}

	outPath := opts.OutPath
	if outPath == "" {
		outPath = deriveOutPath(sessionPath, opts.OutDir, format)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	switch format {
	case FormatCSV:
		err = section.WriteCSV(f, ts)
	case FormatGeoJSON:
		err = section.WriteGeoJSON(f, ts)
	}
	if err != nil {
		f.Close()
		os.Remove(outPath)
		return ExportResult{}, err
	}
	if err := f.Close(); err != nil {
		return ExportResult{}, fmt.Errorf("failed to close %s: %w", outPath, err)
	}

	points := 0
	for _, series := range ts.Series {
		points += len(series.Points)
	}

	s.logger.Log(ports.LogLevelInfo, "Exported session", map[string]interface{}{
		"session": sessionPath,
		"out":     outPath,
		"format":  string(format),
		"points":  points,
	})

	return ExportResult{
		SessionPath: sessionPath,
		OutPath:     outPath,
		Format:      format,
		Points:      points,
		Calibrated:  ts.Calibrated,
	}, nil
}

// formatFromPath infers the format from an output file extension.
func formatFromPath(path string) ExportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".geojson", ".json":
		return FormatGeoJSON
	default:
		return ""
	}
}

// deriveOutPath places the export next to the session file (or under
// outDir) with the format's extension.
func deriveOutPath(sessionPath, outDir string, format ExportFormat) string {
	base := filepath.Base(sessionPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	ext := ".csv"
	if format == FormatGeoJSON {
		ext = ".geojson"
	}
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(sessionPath)
	}
	return filepath.Join(dir, base+ext)
}
