package gameconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kofuk/amcs/internal/env"
)

const FileName = "auto-server-config.json"

type Store struct {
	path string
}

func NewStore(paths env.PathProvider) *Store {
	return &Store{
		path: paths.GetDataPath(FileName),
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Exists() bool {
	st, err := os.Stat(s.path)
	return err == nil && st.Mode().IsRegular()
}

// storedConfig mirrors Config with pointers so that absent fields can be told
// apart from zero values.
type storedConfig struct {
	IP       *string `json:"ip"`
	Port     *int    `json:"port"`
	MaxMemMB *int    `json:"max_mem_mb"`
	NoGUI    *bool   `json:"nogui"`
	JarName  *string `json:"jar_name"`
}

func (sc *storedConfig) toConfig() (*Config, error) {
	verr := &ValidationError{}
	required := []struct {
		name    string
		present bool
	}{
		{"ip", sc.IP != nil},
		{"port", sc.Port != nil},
		{"max_mem_mb", sc.MaxMemMB != nil},
		{"nogui", sc.NoGUI != nil},
		{"jar_name", sc.JarName != nil},
	}
	for _, f := range required {
		if !f.present {
			verr.add(f.name, "field required")
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	cfg := &Config{
		IP:       *sc.IP,
		Port:     *sc.Port,
		MaxMemMB: *sc.MaxMemMB,
		NoGUI:    *sc.NoGUI,
		JarName:  *sc.JarName,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Decode(data []byte) (*Config, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var sc storedConfig
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("%w: trailing data after config object", ErrConfig)
	}

	return sc.toConfig()
}

func (s *Store) Load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	cfg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return cfg, nil
}

// Save writes cfg through a temporary file which is renamed over the old
// config, so a crash never leaves a truncated file behind.
func (s *Store) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".auto-server-config-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary config file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
