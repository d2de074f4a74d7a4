package settingsfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/moto-intake/internal/domain/settings"
)

// Store keeps settings in a YAML file. Values are written as-is, without encryption.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load(ctx context.Context) (settings.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings.Settings{}, false, nil
	}
	if err != nil {
		return settings.Settings{}, false, fmt.Errorf("read settings: %w", err)
	}
	var out settings.Settings
	if err := yaml.Unmarshal(b, &out); err != nil {
		return settings.Settings{}, false, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	return out, true, nil
}

// Save overwrites the file through a temp file + rename.
func (s *Store) Save(ctx context.Context, in settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
