package httpd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/logging"
	"github.com/muurk/wifiportal/internal/radio"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/scan", s.handleScan)
	mux.HandleFunc("/connect", s.handleConnect)
	mux.HandleFunc("/events", s.hub.HandleUpgrade)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// handleRoot serves the portal page on "/" and portal assets on any other
// path. Every unknown name resolves to the device, so browsers arrive here
// with arbitrary paths from their captive-portal probes.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.clientError(w, r, http.StatusMethodNotAllowed,
			fmt.Sprintf("method %s is not allowed here, use GET", r.Method))
		return
	}

	if r.URL.Path == "/" || r.URL.Path == "/index.html" {
		s.servePortalPage(w, r)
		return
	}
	s.serveStatic(w, r)
}

func (s *Server) servePortalPage(w http.ResponseWriter, r *http.Request) {
	if s.config.PortalRoot != "" {
		page := filepath.Join(s.config.PortalRoot, "index.html")
		if body, err := os.ReadFile(page); err == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(body)
			logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, http.StatusOK)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(defaultPortalPage))
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, http.StatusOK)
}

// serveStatic serves files from the configured portal root with the
// extension-based MIME map. Paths are confined to the root.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if s.config.PortalRoot == "" {
		s.notFound(w, r)
		return
	}

	rel := filepath.Clean(strings.TrimPrefix(r.URL.Path, "/"))
	if rel == "." || strings.HasPrefix(rel, "..") {
		s.notFound(w, r)
		return
	}

	body, err := os.ReadFile(filepath.Join(s.config.PortalRoot, rel))
	if err != nil {
		s.notFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(rel))
	_, _ = w.Write(body)
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, http.StatusOK)
}

// scanResponse is the structured /scan payload.
type scanResponse struct {
	Networks []radio.Network `json:"networks,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// handleScan triggers a radio scan and returns the discovered networks in
// descending signal-strength order. An overlapping scan is reported as a
// service-level error in the payload, not as an HTTP failure.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.clientError(w, r, http.StatusMethodNotAllowed,
			fmt.Sprintf("method %s is not allowed on /scan, use GET", r.Method))
		return
	}

	networks, err := s.radio.Scan(r.Context())
	w.Header().Set("Content-Type", "application/json")

	if err != nil {
		if !errors.Is(err, radio.ErrScanBusy) {
			logging.Error("Scan request failed", zap.Error(err))
		}
		_ = json.NewEncoder(w).Encode(scanResponse{Error: err.Error()})
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, http.StatusOK)
		return
	}

	if networks == nil {
		networks = []radio.Network{}
	}
	_ = json.NewEncoder(w).Encode(scanResponse{Networks: networks})
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, http.StatusOK)
}

// handleConnect parses the form body and forwards the join to the radio.
// The response is written only after the bounded join attempt completes -
// the caller legitimately waits the full duration.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.clientError(w, r, http.StatusMethodNotAllowed,
			fmt.Sprintf("method %s is not allowed on /connect, use POST", r.Method))
		return
	}

	if err := r.ParseForm(); err != nil {
		s.clientError(w, r, http.StatusBadRequest,
			"request body is not valid form data")
		return
	}
	ssid := r.PostFormValue("ssid")
	password := r.PostFormValue("password")
	if ssid == "" {
		s.clientError(w, r, http.StatusBadRequest, "ssid must not be empty")
		return
	}

	logging.Info("Join requested via portal",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("ssid", ssid),
	)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.radio.Join(r.Context(), ssid, password); err != nil {
		fmt.Fprintf(w, "Connection failed: %s\n", err.Error())
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, http.StatusOK)
		return
	}
	fmt.Fprintf(w, "Connection successful\n")
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, http.StatusOK)
}

// clientError writes a 4xx response with an explanatory body instead of
// dropping the connection.
func (s *Server) clientError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, msg)
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, status)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("<h1>404 Not Found</h1>"))
	logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, http.StatusNotFound)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
