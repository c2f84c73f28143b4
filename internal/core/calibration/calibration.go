package calibration

import (
	"errors"
	"fmt"
)

// RefKind identifies one of the three reference markers used to calibrate
// an image: the plot origin, a known point on the X axis, and a known
// point on the Y axis.
type RefKind string

const (
	RefOrigin RefKind = "origin"
	RefAxisX  RefKind = "x_ref"
	RefAxisY  RefKind = "y_ref"
)

// ErrNotCalibrated is returned when a transform is requested before all
// three reference markers and their plot values are set.
var ErrNotCalibrated = errors.New("calibration is incomplete")

// PixelPoint is a position in image pixel coordinates. Y grows downward.
type PixelPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RealPoint is a position in plot coordinates.
type RealPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Calibration maps pixel positions to plot coordinates through a
// per-axis linear transform anchored at the origin marker. The Y scale
// is normally negative because pixel rows grow downward while plot
// values grow upward.
type Calibration struct {
	OriginPixel *PixelPoint `json:"origin_pixel,omitempty"`
	XRefPixel   *PixelPoint `json:"x_ref_pixel,omitempty"`
	YRefPixel   *PixelPoint `json:"y_ref_pixel,omitempty"`

	OriginValue *RealPoint `json:"origin_value,omitempty"`
	XRefValue   *float64   `json:"x_ref_value,omitempty"`
	YRefValue   *float64   `json:"y_ref_value,omitempty"`
}

// New creates an empty calibration.
func New() *Calibration {
	return &Calibration{}
}

// SetPixel records the pixel position of a reference marker.
func (c *Calibration) SetPixel(kind RefKind, p PixelPoint) error {
	switch kind {
	case RefOrigin:
		c.OriginPixel = &p
	case RefAxisX:
		c.XRefPixel = &p
	case RefAxisY:
		c.YRefPixel = &p
	default:
		return fmt.Errorf("unknown reference kind %q", kind)
	}
	return nil
}

// Pixel returns the recorded pixel position of a marker.
func (c *Calibration) Pixel(kind RefKind) (PixelPoint, bool) {
	var p *PixelPoint
	switch kind {
	case RefOrigin:
		p = c.OriginPixel
	case RefAxisX:
		p = c.XRefPixel
	case RefAxisY:
		p = c.YRefPixel
	}
	if p == nil {
		return PixelPoint{}, false
	}
	return *p, true
}

// SetOriginValue records the plot coordinates of the origin marker.
func (c *Calibration) SetOriginValue(v RealPoint) {
	c.OriginValue = &v
}

// SetAxisValue records the known plot value at the X or Y reference
// marker: the plot X coordinate for RefAxisX, the plot Y coordinate for
// RefAxisY.
func (c *Calibration) SetAxisValue(kind RefKind, value float64) error {
	switch kind {
	case RefAxisX:
		c.XRefValue = &value
	case RefAxisY:
		c.YRefValue = &value
	default:
		return fmt.Errorf("axis value must target %q or %q, got %q", RefAxisX, RefAxisY, kind)
	}
	return nil
}

// Clear removes one marker together with its plot value.
func (c *Calibration) Clear(kind RefKind) {
	switch kind {
	case RefOrigin:
		c.OriginPixel = nil
		c.OriginValue = nil
	case RefAxisX:
		c.XRefPixel = nil
		c.XRefValue = nil
	case RefAxisY:
		c.YRefPixel = nil
		c.YRefValue = nil
	}
}

// Reset drops all markers and values.
func (c *Calibration) Reset() {
	*c = Calibration{}
}

// Calibrated reports whether all three markers and all three plot values
// are present.
func (c *Calibration) Calibrated() bool {
	return c.OriginPixel != nil && c.XRefPixel != nil && c.YRefPixel != nil &&
		c.OriginValue != nil && c.XRefValue != nil && c.YRefValue != nil
}

// Scales returns the plot-units-per-pixel factor for each axis. When a
// reference marker shares its axis coordinate with the origin the scale
// falls back to 1 instead of dividing by zero; Warnings flags that case.
func (c *Calibration) Scales() (sx, sy float64, err error) {
	if !c.Calibrated() {
		return 0, 0, ErrNotCalibrated
	}

	sx = 1.0
	if c.XRefPixel.X != c.OriginPixel.X {
		sx = (*c.XRefValue - c.OriginValue.X) / (c.XRefPixel.X - c.OriginPixel.X)
	}
	sy = 1.0
	if c.YRefPixel.Y != c.OriginPixel.Y {
		sy = (*c.YRefValue - c.OriginValue.Y) / (c.YRefPixel.Y - c.OriginPixel.Y)
	}
	return sx, sy, nil
}

// PixelToReal converts an image position to plot coordinates.
func (c *Calibration) PixelToReal(p PixelPoint) (RealPoint, error) {
	sx, sy, err := c.Scales()
	if err != nil {
		return RealPoint{}, err
	}
	return RealPoint{
		X: c.OriginValue.X + (p.X-c.OriginPixel.X)*sx,
		Y: c.OriginValue.Y + (p.Y-c.OriginPixel.Y)*sy,
	}, nil
}

// RealToPixel converts plot coordinates back to an image position. It
// fails when an axis scale is zero, which happens when a reference value
// equals the origin value.
func (c *Calibration) RealToPixel(p RealPoint) (PixelPoint, error) {
	sx, sy, err := c.Scales()
	if err != nil {
		return PixelPoint{}, err
	}
	if sx == 0 || sy == 0 {
		return PixelPoint{}, fmt.Errorf("calibration has a zero scale, cannot invert")
	}
	return PixelPoint{
		X: c.OriginPixel.X + (p.X-c.OriginValue.X)/sx,
		Y: c.OriginPixel.Y + (p.Y-c.OriginValue.Y)/sy,
	}, nil
}

// Warnings lists setup problems worth surfacing before an export:
// missing markers or values, and reference points that degenerate an
// axis.
func (c *Calibration) Warnings() []string {
	var warnings []string

	missing := func(name string, ok bool) {
		if !ok {
			warnings = append(warnings, fmt.Sprintf("missing %s", name))
		}
	}
	missing("origin marker", c.OriginPixel != nil)
	missing("x_ref marker", c.XRefPixel != nil)
	missing("y_ref marker", c.YRefPixel != nil)
	missing("origin value", c.OriginValue != nil)
	missing("x_ref value", c.XRefValue != nil)
	missing("y_ref value", c.YRefValue != nil)

	if len(warnings) > 0 {
		return warnings
	}

	if c.XRefPixel.X == c.OriginPixel.X {
		warnings = append(warnings, "x_ref marker is in the origin's pixel column, X scale falls back to 1")
	} else if *c.XRefValue == c.OriginValue.X {
		warnings = append(warnings, "x_ref value equals the origin X value, the X axis collapses to a point")
	}
	if c.YRefPixel.Y == c.OriginPixel.Y {
		warnings = append(warnings, "y_ref marker is in the origin's pixel row, Y scale falls back to 1")
	} else if *c.YRefValue == c.OriginValue.Y {
		warnings = append(warnings, "y_ref value equals the origin Y value, the Y axis collapses to a point")
	}

	return warnings
}
