package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/go-http-utils/etag"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/core/qgisrepo"
)

// Server serves a plugin repository over HTTP so QGIS can be pointed at
// it directly. Responses carry ETags, QGIS revalidates the index on
// every refresh.
type Server struct {
	target  ports.StorageTarget
	logger  ports.LoggingGateway
	authKey string

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a server for the given repository target. An empty
// auth key leaves the repository open.
func NewServer(target ports.StorageTarget, authKey string, logger ports.LoggingGateway) *Server {
	return &Server{
		target:  target,
		logger:  logger,
		authKey: authKey,
	}
}

// Handler returns the full middleware stack
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+qgisrepo.IndexFileName, s.handleFile)
	mux.HandleFunc("/packages/", s.handleFile)
	mux.HandleFunc("/", s.handleRoot)

	handler := etag.Handler(mux, false)
	if s.authKey != "" {
		handler = Auth(handler, s.authKey)
	}
	return handler
}

// Start serves until Shutdown is called
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	httpServer := s.httpServer
	s.mu.Unlock()

	s.logger.Log(ports.LogLevelInfo, "Serving plugin repository", map[string]interface{}{
		"addr":   addr,
		"target": s.target.Name(),
	})

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server, letting in-flight requests finish
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}
	return httpServer.Shutdown(ctx)
}

// handleFile streams the index or a package from the target
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if key == "" || strings.Contains(key, "..") {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	s.logger.Log(ports.LogLevelDebug, "Serving repository file", map[string]interface{}{
		"method": r.Method,
		"key":    key,
	})

	body, err := s.target.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, ports.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.logger.LogError(err, "Failed to read repository file", map[string]interface{}{"key": key})
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentTypeFor(key))
	if _, err := io.Copy(w, body); err != nil {
		s.logger.LogError(err, "Failed to write response", map[string]interface{}{"key": key})
	}
}

// handleRoot prints a short text summary of the repository
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := s.target.Get(r.Context(), qgisrepo.IndexFileName)
	if err != nil {
		http.Error(w, "Repository index not found", http.StatusNotFound)
		return
	}
	defer body.Close()

	index, err := qgisrepo.Parse(body)
	if err != nil {
		s.logger.LogError(err, "Failed to parse repository index", nil)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "QGIS plugin repository (%d plugins)\n\n", len(index.Plugins))
	for _, plugin := range index.Plugins {
		fmt.Fprintf(w, "%s %s\t%s\n", plugin.Name, plugin.Version, plugin.DownloadURL)
	}
	fmt.Fprintf(w, "\nAdd /%s to the QGIS plugin manager.\n", qgisrepo.IndexFileName)
}

func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".xml":
		return "application/xml"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// Auth requires the X-API-KEY header to match the configured key
func Auth(next http.Handler, authKey string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-KEY")
		if key == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if key != authKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
