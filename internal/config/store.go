package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/wifiportal/internal/logging"
)

// DefaultFile is the settings document name used when no path is given.
const DefaultFile = "config.yaml"

// Settings is the persisted settings document for the portal.
type Settings struct {
	NetworkName   string `yaml:"network_name"`   // SSID broadcast while in AP mode
	Passphrase    string `yaml:"passphrase"`     // empty = open network, otherwise WPA2 (8+ chars)
	DeviceAddress string `yaml:"device_address"` // IPv4 address the portal answers on

	// DeactivateAPOnJoin controls whether the access point is torn down
	// once a station-mode join succeeds. The single radio cannot serve
	// both modes well, so this defaults to true.
	DeactivateAPOnJoin bool `yaml:"deactivate_ap_on_join"`

	// PortalRoot is an optional directory of portal page assets. When
	// empty, the built-in page is served.
	PortalRoot string `yaml:"portal_root,omitempty"`

	// WatchdogTimeoutSeconds is the permitted silence window before the
	// watchdog forces a restart.
	WatchdogTimeoutSeconds int `yaml:"watchdog_timeout_seconds"`
}

// Defaults returns the built-in settings the device boots with when no
// valid settings document exists.
func Defaults() Settings {
	return Settings{
		NetworkName:            "WifiPortal-Setup",
		Passphrase:             "12345678",
		DeviceAddress:          "192.168.4.1",
		DeactivateAPOnJoin:     true,
		WatchdogTimeoutSeconds: 10,
	}
}

// Validate checks the settings invariants.
func (s *Settings) Validate() error {
	if s.NetworkName == "" {
		return fmt.Errorf("network_name must not be empty")
	}
	if n := len(s.Passphrase); n != 0 && n < 8 {
		return fmt.Errorf("passphrase must be empty (open network) or at least 8 characters, got %d", n)
	}
	ip := net.ParseIP(s.DeviceAddress)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("device_address %q is not a valid IPv4 address", s.DeviceAddress)
	}
	if s.WatchdogTimeoutSeconds <= 0 {
		return fmt.Errorf("watchdog_timeout_seconds must be positive, got %d", s.WatchdogTimeoutSeconds)
	}
	return nil
}

// Store loads and persists the settings document.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the given file path.
// If path is empty, DefaultFile in the working directory is used.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultFile
	}
	return &Store{path: path}
}

// Path returns the file path backing the store.
func (st *Store) Path() string {
	return st.path
}

// Load reads the settings document. A missing or malformed document is
// replaced by the built-in defaults, which are persisted immediately so
// subsequent loads are consistent. The device must always boot into a
// usable state, so Load never propagates a parse error.
func (st *Store) Load() (Settings, error) {
	st.mu.Lock()
	data, err := os.ReadFile(st.path)
	st.mu.Unlock()

	if err != nil {
		if os.IsNotExist(err) {
			logging.Warn("Settings document not found, writing defaults",
				zap.String("path", st.path))
		} else {
			logging.Error("Failed to read settings document, using defaults",
				zap.String("path", st.path), zap.Error(err))
		}
		return st.resetToDefaults()
	}

	// Unmarshal over the defaults so absent keys keep their built-in
	// values rather than Go zero values.
	settings := Defaults()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		logging.Error("Settings document is malformed, replacing with defaults",
			zap.String("path", st.path), zap.Error(err))
		return st.resetToDefaults()
	}
	if err := settings.Validate(); err != nil {
		logging.Error("Settings document violates invariants, replacing with defaults",
			zap.String("path", st.path), zap.Error(err))
		return st.resetToDefaults()
	}

	logging.Info("Settings loaded", zap.String("path", st.path))
	return settings, nil
}

// Save overwrites the settings document atomically: the document is written
// to a temporary file in the same directory and renamed into place, so a
// power loss mid-write cannot leave a truncated file.
func (st *Store) Save(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid settings: %w", err)
	}

	data, err := yaml.Marshal(&settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(st.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary settings file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary settings file: %w", err)
	}
	if err := os.Rename(tmpName, st.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings document: %w", err)
	}

	return nil
}

// resetToDefaults writes the built-in defaults back to disk and returns them.
// A failure to persist is logged but not fatal; the in-memory defaults still
// let the device boot.
func (st *Store) resetToDefaults() (Settings, error) {
	defaults := Defaults()
	if err := st.Save(defaults); err != nil {
		logging.Error("Failed to persist default settings", zap.Error(err))
	} else {
		logging.Info("Default settings persisted", zap.String("path", st.path))
	}
	return defaults, nil
}
