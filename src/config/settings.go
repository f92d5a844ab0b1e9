package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	DefaultPreprompt = "Fix typos:"
	DefaultModel     = "gemini-2.5-flash"
)

// ErrInvalidSettings marks a settings file that exists but is not a JSON object.
var ErrInvalidSettings = errors.New("invalid settings file")

// Settings are the user-editable options read at the start of every fix run.
type Settings struct {
	APIKey           string `json:"api_key"`
	Preprompt        string `json:"preprompt"`
	Model            string `json:"model"`
	TurboMode        bool   `json:"turbo_mode"`
	ShowDuck         bool   `json:"show_duck"`
	ShowNotification bool   `json:"show_notification"`
}

func DefaultSettings() Settings {
	return Settings{
		Preprompt:        DefaultPreprompt,
		Model:            DefaultModel,
		ShowDuck:         true,
		ShowNotification: true,
	}
}

// Store persists Settings as a JSON object. All access goes through one mutex so
// the settings UI and a running pipeline never observe a half-written file.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the settings file. A missing file yields defaults. Each field is
// decoded on its own: absent fields and fields of the wrong JSON type keep
// their default value.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Settings, error) {
	st := DefaultSettings()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read settings: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return st, fmt.Errorf("decode settings %s: %w: %v", s.path, ErrInvalidSettings, err)
	}

	decodeField(raw, "api_key", &st.APIKey)
	decodeField(raw, "preprompt", &st.Preprompt)
	decodeField(raw, "model", &st.Model)
	decodeField(raw, "turbo_mode", &st.TurboMode)
	decodeField(raw, "show_duck", &st.ShowDuck)
	decodeField(raw, "show_notification", &st.ShowNotification)
	return st, nil
}

// decodeField leaves dst untouched unless raw[key] decodes cleanly into it.
func decodeField[T any](raw map[string]json.RawMessage, key string, dst *T) {
	msg, ok := raw[key]
	if !ok || string(msg) == "null" {
		return
	}
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		return
	}
	*dst = v
}

// Save writes the settings atomically (temp file + rename).
func (s *Store) Save(st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(st)
}

func (s *Store) save(st Settings) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// Update loads, applies fn and saves under a single lock. A corrupt file is
// replaced, starting from defaults.
func (s *Store) Update(fn func(*Settings)) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil && !errors.Is(err, ErrInvalidSettings) {
		return st, err
	}
	fn(&st)
	if err := s.save(st); err != nil {
		return st, err
	}
	return st, nil
}
