package section

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/calibration"
)

// SessionID is a value object identifying a digitizing session.
type SessionID struct {
	value string
}

// NewSessionID creates a SessionID with validation.
func NewSessionID(value string) (SessionID, error) {
	if value == "" {
		return SessionID{}, fmt.Errorf("session ID cannot be empty")
	}
	return SessionID{value: value}, nil
}

// GenerateSessionID creates a new unique SessionID.
func GenerateSessionID() SessionID {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return SessionID{value: hex.EncodeToString(bytes)}
}

// Value returns the string value of the SessionID.
func (s SessionID) Value() string {
	return s.value
}

// String implements the Stringer interface.
func (s SessionID) String() string {
	return s.value
}

// DefaultSeriesName is the series every new session starts with, so
// digitizing can begin without any setup.
const DefaultSeriesName = "series_1"

// seriesPalette supplies default display colors, cycled in creation order.
var seriesPalette = []string{"#e41a1c", "#377eb8", "#4daf4a", "#984ea3", "#ff7f00", "#a65628"}

// Series is an ordered run of digitized points under one name. Color is
// a display hint (#rrggbb) carried along for exports and session files.
type Series struct {
	Name   string
	Color  string
	Points []calibration.PixelPoint
}

// GeoAnchor pairs a pixel position with map coordinates. Anchors are
// collected so the digitized section line can later be placed on a map;
// they are persisted and exported but no warp is computed from them.
type GeoAnchor struct {
	Pixel calibration.PixelPoint `json:"pixel"`
	Map   calibration.RealPoint  `json:"map"`
}

// Session is the aggregate root for one digitized cross-section image:
// the image reference, its axis calibration, named point series, and
// georeferencing anchors.
type Session struct {
	mu          sync.RWMutex
	id          SessionID
	imagePath   string
	imageWidth  int
	imageHeight int
	calib       *calibration.Calibration
	seriesOrder []string
	series      map[string][]calibration.PixelPoint
	colors      map[string]string
	active      string
	anchors     []GeoAnchor
	createdAt   time.Time
	updatedAt   time.Time
}

// NewSession creates a session for the given image with an empty default
// series already active.
func NewSession(imagePath string) *Session {
	now := time.Now()
	return &Session{
		id:          GenerateSessionID(),
		imagePath:   imagePath,
		calib:       calibration.New(),
		seriesOrder: []string{DefaultSeriesName},
		series:      map[string][]calibration.PixelPoint{DefaultSeriesName: nil},
		colors:      map[string]string{DefaultSeriesName: seriesPalette[0]},
		active:      DefaultSeriesName,
		createdAt:   now,
		updatedAt:   now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// ImagePath returns the path of the digitized image.
func (s *Session) ImagePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imagePath
}

// ImageSize returns the recorded image dimensions, zero when unknown.
func (s *Session) ImageSize() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imageWidth, s.imageHeight
}

// SetImageSize records the image dimensions.
func (s *Session) SetImageSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageWidth = width
	s.imageHeight = height
	s.touch()
	return nil
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// UpdatedAt returns the time of the last mutation.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Calibration returns a copy of the current calibration state.
func (s *Session) Calibration() calibration.Calibration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.calib
}

// SetReferencePixel records where a reference marker was clicked.
func (s *Session) SetReferencePixel(kind calibration.RefKind, p calibration.PixelPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.calib.SetPixel(kind, p); err != nil {
		return err
	}
	s.touch()
	return nil
}

// SetOriginValue records the plot coordinates of the origin marker.
func (s *Session) SetOriginValue(v calibration.RealPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calib.SetOriginValue(v)
	s.touch()
}

// SetAxisValue records the known plot value at an axis marker.
func (s *Session) SetAxisValue(kind calibration.RefKind, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.calib.SetAxisValue(kind, value); err != nil {
		return err
	}
	s.touch()
	return nil
}

// ClearReference removes a reference marker and its value.
func (s *Session) ClearReference(kind calibration.RefKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calib.Clear(kind)
	s.touch()
}

// Calibrated reports whether the session can transform points.
func (s *Session) Calibrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calib.Calibrated()
}

// AddSeries creates a new empty series and makes it active.
func (s *Session) AddSeries(name string) error {
	if name == "" {
		return fmt.Errorf("series name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.series[name]; exists {
		return fmt.Errorf("series %q already exists", name)
	}
	s.series[name] = nil
	s.colors[name] = seriesPalette[len(s.seriesOrder)%len(seriesPalette)]
	s.seriesOrder = append(s.seriesOrder, name)
	s.active = name
	s.touch()
	return nil
}

// RenameSeries changes a series name, keeping its points and position.
func (s *Session) RenameSeries(oldName, newName string) error {
	if newName == "" {
		return fmt.Errorf("series name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	points, exists := s.series[oldName]
	if !exists {
		return fmt.Errorf("series %q does not exist", oldName)
	}
	if _, taken := s.series[newName]; taken {
		return fmt.Errorf("series %q already exists", newName)
	}
	delete(s.series, oldName)
	s.series[newName] = points
	s.colors[newName] = s.colors[oldName]
	delete(s.colors, oldName)
	for i, name := range s.seriesOrder {
		if name == oldName {
			s.seriesOrder[i] = newName
			break
		}
	}
	if s.active == oldName {
		s.active = newName
	}
	s.touch()
	return nil
}

// RemoveSeries deletes a series and its points. If it was active, the
// first remaining series becomes active.
func (s *Session) RemoveSeries(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.series[name]; !exists {
		return fmt.Errorf("series %q does not exist", name)
	}
	delete(s.series, name)
	delete(s.colors, name)
	for i, n := range s.seriesOrder {
		if n == name {
			s.seriesOrder = append(s.seriesOrder[:i], s.seriesOrder[i+1:]...)
			break
		}
	}
	if s.active == name {
		s.active = ""
		if len(s.seriesOrder) > 0 {
			s.active = s.seriesOrder[0]
		}
	}
	s.touch()
	return nil
}

// SetSeriesColor overrides the display color of a series.
func (s *Session) SetSeriesColor(name, color string) error {
	if color == "" {
		return fmt.Errorf("series color cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.series[name]; !exists {
		return fmt.Errorf("series %q does not exist", name)
	}
	s.colors[name] = color
	s.touch()
	return nil
}

// SetActiveSeries selects the series new points are appended to.
func (s *Session) SetActiveSeries(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.series[name]; !exists {
		return fmt.Errorf("series %q does not exist", name)
	}
	s.active = name
	s.touch()
	return nil
}

// ActiveSeries returns the name of the active series, empty if none.
func (s *Session) ActiveSeries() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SeriesNames returns the series names in creation order.
func (s *Session) SeriesNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.seriesOrder))
	copy(names, s.seriesOrder)
	return names
}

// Series returns a copy of the named series.
func (s *Session) Series(name string) (Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points, exists := s.series[name]
	if !exists {
		return Series{}, fmt.Errorf("series %q does not exist", name)
	}
	copied := make([]calibration.PixelPoint, len(points))
	copy(copied, points)
	return Series{Name: name, Color: s.colors[name], Points: copied}, nil
}

// AddPoint appends a digitized point to the active series and returns
// its index within the series.
func (s *Session) AddPoint(p calibration.PixelPoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return 0, fmt.Errorf("no active series")
	}
	s.series[s.active] = append(s.series[s.active], p)
	s.touch()
	return len(s.series[s.active]) - 1, nil
}

// RemoveLastPoint pops the most recent point from the active series.
func (s *Session) RemoveLastPoint() (calibration.PixelPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return calibration.PixelPoint{}, fmt.Errorf("no active series")
	}
	points := s.series[s.active]
	if len(points) == 0 {
		return calibration.PixelPoint{}, fmt.Errorf("series %q has no points", s.active)
	}
	last := points[len(points)-1]
	s.series[s.active] = points[:len(points)-1]
	s.touch()
	return last, nil
}

// ClearSeries removes every point from a series but keeps the series.
func (s *Session) ClearSeries(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.series[name]; !exists {
		return fmt.Errorf("series %q does not exist", name)
	}
	s.series[name] = nil
	s.touch()
	return nil
}

// PointCount returns the total number of digitized points.
func (s *Session) PointCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, points := range s.series {
		count += len(points)
	}
	return count
}

// AddAnchor records a georeferencing anchor.
func (s *Session) AddAnchor(anchor GeoAnchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors = append(s.anchors, anchor)
	s.touch()
}

// RemoveLastAnchor pops the most recent anchor.
func (s *Session) RemoveLastAnchor() (GeoAnchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.anchors) == 0 {
		return GeoAnchor{}, fmt.Errorf("no anchors recorded")
	}
	last := s.anchors[len(s.anchors)-1]
	s.anchors = s.anchors[:len(s.anchors)-1]
	s.touch()
	return last, nil
}

// ClearAnchors removes all georeferencing anchors.
func (s *Session) ClearAnchors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors = nil
	s.touch()
}

// Anchors returns a copy of the recorded anchors.
func (s *Session) Anchors() []GeoAnchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]GeoAnchor, len(s.anchors))
	copy(copied, s.anchors)
	return copied
}

// Transform converts every digitized point to plot coordinates. It is
// all-or-none: an incomplete calibration fails the whole call rather
// than producing a partially mapped section.
func (s *Session) Transform() (*TransformedSection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.calib.Calibrated() {
		return nil, fmt.Errorf("cannot transform session %s: %w", s.id.Value(), calibration.ErrNotCalibrated)
	}

	ts := &TransformedSection{
		SessionID:  s.id.Value(),
		ImagePath:  s.imagePath,
		Calibrated: true,
		Anchors:    append([]GeoAnchor(nil), s.anchors...),
	}
	for _, name := range s.seriesOrder {
		series := TransformedSeries{Name: name, Color: s.colors[name]}
		for _, pixel := range s.series[name] {
			plot, err := s.calib.PixelToReal(pixel)
			if err != nil {
				return nil, fmt.Errorf("failed to transform point in series %q: %w", name, err)
			}
			series.Points = append(series.Points, TransformedPoint{Pixel: pixel, Plot: plot})
		}
		ts.Series = append(ts.Series, series)
	}
	return ts, nil
}

// PixelOnly returns the section without applying any calibration: every
// point keeps its pixel position and the plot columns stay empty. Used
// for exporting sessions that were digitized but never calibrated.
func (s *Session) PixelOnly() *TransformedSection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts := &TransformedSection{
		SessionID: s.id.Value(),
		ImagePath: s.imagePath,
		Anchors:   append([]GeoAnchor(nil), s.anchors...),
	}
	for _, name := range s.seriesOrder {
		series := TransformedSeries{Name: name, Color: s.colors[name]}
		for _, pixel := range s.series[name] {
			series.Points = append(series.Points, TransformedPoint{Pixel: pixel})
		}
		ts.Series = append(ts.Series, series)
	}
	return ts
}

// touch must be called with the write lock held.
func (s *Session) touch() {
	s.updatedAt = time.Now()
}
