package notifier

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v2"
)

// Preferences stores client settings that survive restarts
type Preferences interface {
	AudioEnabled() bool
	SetAudioEnabled(enabled bool) error
}

type preferencesFile struct {
	AudioEnabled bool `yaml:"audio_enabled"`
}

// FilePreferences keeps preferences in a YAML file
type FilePreferences struct {
	path string
	mu   sync.RWMutex
	data preferencesFile
}

// LoadPreferences reads path. A missing file yields the defaults.
func LoadPreferences(path string) (*FilePreferences, error) {
	p := &FilePreferences{path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p.data); err != nil {
		return nil, fmt.Errorf("failed to parse preferences %s: %w", path, err)
	}
	return p, nil
}

func (p *FilePreferences) AudioEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data.AudioEnabled
}

func (p *FilePreferences) SetAudioEnabled(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.data
	next.AudioEnabled = enabled
	if err := p.save(next); err != nil {
		return err
	}
	p.data = next
	return nil
}

func (p *FilePreferences) save(data preferencesFile) error {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(p.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create preferences dir: %w", err)
		}
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return os.Rename(tmp, p.path)
}
