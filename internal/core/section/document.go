package section

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loicbachelot/cross-section-digitizer/internal/core/calibration"
)

// SchemaVersion is the current session document format. Documents with a
// newer version are refused instead of silently dropping fields.
const SchemaVersion = 1

// Document is the serialized form of a Session.
type Document struct {
	SchemaVersion int                      `json:"schema_version"`
	ID            string                   `json:"id"`
	ImagePath     string                   `json:"image_path"`
	ImageWidth    int                      `json:"image_width,omitempty"`
	ImageHeight   int                      `json:"image_height,omitempty"`
	Calibration   *calibration.Calibration `json:"calibration,omitempty"`
	ActiveSeries  string                   `json:"active_series,omitempty"`
	Series        []SeriesRecord           `json:"series"`
	Anchors       []GeoAnchor              `json:"geo_anchors,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// SeriesRecord is one named series in a Document.
type SeriesRecord struct {
	Name   string                   `json:"name"`
	Color  string                   `json:"color,omitempty"`
	Points []calibration.PixelPoint `json:"points"`
}

// Snapshot captures the session state as a Document.
func (s *Session) Snapshot() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	calib := *s.calib
	doc := &Document{
		SchemaVersion: SchemaVersion,
		ID:            s.id.Value(),
		ImagePath:     s.imagePath,
		ImageWidth:    s.imageWidth,
		ImageHeight:   s.imageHeight,
		Calibration:   &calib,
		ActiveSeries:  s.active,
		Series:        make([]SeriesRecord, 0, len(s.seriesOrder)),
		Anchors:       append([]GeoAnchor(nil), s.anchors...),
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
	for _, name := range s.seriesOrder {
		points := make([]calibration.PixelPoint, len(s.series[name]))
		copy(points, s.series[name])
		doc.Series = append(doc.Series, SeriesRecord{Name: name, Color: s.colors[name], Points: points})
	}
	return doc
}

// FromDocument rebuilds a session from its serialized form.
func FromDocument(doc *Document) (*Session, error) {
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("document schema version %d is newer than supported version %d",
			doc.SchemaVersion, SchemaVersion)
	}
	if doc.SchemaVersion < 1 {
		return nil, fmt.Errorf("document has no schema version")
	}

	id := GenerateSessionID()
	if doc.ID != "" {
		parsed, err := NewSessionID(doc.ID)
		if err != nil {
			return nil, err
		}
		id = parsed
	}

	calib := calibration.New()
	if doc.Calibration != nil {
		copied := *doc.Calibration
		calib = &copied
	}

	s := &Session{
		id:          id,
		imagePath:   doc.ImagePath,
		imageWidth:  doc.ImageWidth,
		imageHeight: doc.ImageHeight,
		calib:       calib,
		series:      make(map[string][]calibration.PixelPoint, len(doc.Series)),
		colors:      make(map[string]string, len(doc.Series)),
		createdAt:   doc.CreatedAt,
		updatedAt:   doc.UpdatedAt,
	}
	for i, record := range doc.Series {
		if record.Name == "" {
			return nil, fmt.Errorf("document contains a series without a name")
		}
		if _, exists := s.series[record.Name]; exists {
			return nil, fmt.Errorf("document contains duplicate series %q", record.Name)
		}
		points := make([]calibration.PixelPoint, len(record.Points))
		copy(points, record.Points)
		s.series[record.Name] = points
		color := record.Color
		if color == "" {
			color = seriesPalette[i%len(seriesPalette)]
		}
		s.colors[record.Name] = color
		s.seriesOrder = append(s.seriesOrder, record.Name)
	}

	s.active = doc.ActiveSeries
	if _, exists := s.series[s.active]; !exists {
		s.active = ""
		if len(s.seriesOrder) > 0 {
			s.active = s.seriesOrder[0]
		}
	}
	if s.createdAt.IsZero() {
		s.createdAt = time.Now()
	}
	if s.updatedAt.IsZero() {
		s.updatedAt = s.createdAt
	}
	return s, nil
}

// Save writes the session as indented JSON.
func (s *Session) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return nil
}

// Load reads a session document from r.
func Load(r io.Reader) (*Session, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode session document: %w", err)
	}
	return FromDocument(&doc)
}

// SaveFile writes the session document to path.
func (s *Session) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	return nil
}

// LoadFile reads a session document from path.
func LoadFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return s, nil
}
