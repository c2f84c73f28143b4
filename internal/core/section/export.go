package section

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/calibration"
)

// TransformedPoint pairs a digitized pixel with its plot-space value.
// Plot.Y carries the vertical (z) coordinate of the section.
type TransformedPoint struct {
	Pixel calibration.PixelPoint
	Plot  calibration.RealPoint
}

// TransformedSeries is one series with every point mapped to plot space.
type TransformedSeries struct {
	Name   string
	Color  string
	Points []TransformedPoint
}

// TransformedSection is the export view of a session. Calibrated is
// false for pixel-only snapshots, whose Plot values are meaningless.
type TransformedSection struct {
	SessionID  string
	ImagePath  string
	Calibrated bool
	Series     []TransformedSeries
	Anchors    []GeoAnchor
}

// csvHeader matches the Plot X / Plot Z readout of the digitizer.
var csvHeader = []string{"series", "index", "pixel_x", "pixel_y", "plot_x", "plot_z"}

// WriteCSV exports every transformed point as one row per point. For
// pixel-only sections the plot columns are left empty.
func WriteCSV(w io.Writer, ts *TransformedSection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, series := range ts.Series {
		for i, point := range series.Points {
			plotX, plotZ := "", ""
			if ts.Calibrated {
				plotX = formatCoord(point.Plot.X)
				plotZ = formatCoord(point.Plot.Y)
			}
			record := []string{
				series.Name,
				strconv.Itoa(i),
				formatCoord(point.Pixel.X),
				formatCoord(point.Pixel.Y),
				plotX,
				plotZ,
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type geoJSONGeometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

type geoJSONFeature struct {
	Type       string                 `json:"type"`
	Geometry   geoJSONGeometry        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
	// Foreign members: coordinates are in plot space, not a geographic
	// CRS, and the anchors carry the raw pixel/map pairs collected for
	// georeferencing.
	Calibrated bool        `json:"csd:calibrated"`
	Anchors    []GeoAnchor `json:"csd:anchors,omitempty"`
}

// WriteGeoJSON exports the section as a FeatureCollection: a LineString
// per series with two or more points, a Point for single-point series.
// Empty series are skipped. Pixel-only sections are refused because the
// coordinates would not be plot values.
func WriteGeoJSON(w io.Writer, ts *TransformedSection) error {
	if !ts.Calibrated {
		return fmt.Errorf("GeoJSON export requires a calibrated section")
	}

	collection := geoJSONCollection{
		Type:       "FeatureCollection",
		Features:   []geoJSONFeature{},
		Calibrated: true,
		Anchors:    ts.Anchors,
	}

	for _, series := range ts.Series {
		if len(series.Points) == 0 {
			continue
		}

		properties := map[string]interface{}{
			"series":      series.Name,
			"point_count": len(series.Points),
		}
		if series.Color != "" {
			properties["color"] = series.Color
		}
		if ts.ImagePath != "" {
			properties["source_image"] = ts.ImagePath
		}

		var geometry geoJSONGeometry
		if len(series.Points) == 1 {
			geometry = geoJSONGeometry{
				Type:        "Point",
				Coordinates: []float64{series.Points[0].Plot.X, series.Points[0].Plot.Y},
			}
		} else {
			coords := make([][]float64, len(series.Points))
			for i, point := range series.Points {
				coords[i] = []float64{point.Plot.X, point.Plot.Y}
			}
			geometry = geoJSONGeometry{Type: "LineString", Coordinates: coords}
		}

		collection.Features = append(collection.Features, geoJSONFeature{
			Type:       "Feature",
			Geometry:   geometry,
			Properties: properties,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(collection); err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	return nil
}
