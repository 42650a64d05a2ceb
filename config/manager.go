package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dyike/CortexTrader/pkg/logger"
)

// Manager owns one config file. Updates are validated before they are written, and
// edits made on disk are picked up by Watch. Listeners only see validated configs.
type Manager struct {
	path     string
	debounce time.Duration
	log      *logger.Logger

	mu       sync.RWMutex
	cfg      Config
	onChange func(Config)
	watching bool
}

type managerOptions struct {
	configPath    string
	initialConfig *Config
	debounce      time.Duration
	log           *logger.Logger
}

type ManagerOption func(*managerOptions)

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.configPath = filepath.Join(dir, "config.json")
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.configPath = path
		}
	}
}

// WithDebounce sets how long Watch waits for file events to settle before reloading.
func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithInitialConfig is written when the config file does not exist yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) { o.initialConfig = cfg }
}

func WithLogger(l *logger.Logger) ManagerOption {
	return func(o *managerOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// NewManager opens the config file, creating it from defaults when missing. Without a
// path option the file lives under the user config directory.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	o := managerOptions{debounce: 300 * time.Millisecond, log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	path := o.configPath
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{path: path, debounce: o.debounce, log: o.log.WithComponent("config")}
	cfg, err := m.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = *DefaultConfigWithRoot(filepath.Dir(path))
		if o.initialConfig != nil {
			cfg = *o.initialConfig
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("write initial config: %w", err)
		}
		m.log.WithField("path", path).Info("created config file")
	case err != nil:
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) UpdateFromJSON(jsonStr string) error {
	var cfg Config
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return fmt.Errorf("parse config json: %w", err)
	}
	return m.Update(cfg)
}

// Update validates cfg, writes it to disk and notifies the listener. An update that
// changes nothing is a no-op.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	changed := ChangedKeys(m.Get(), cfg)
	if len(changed) == 0 {
		return nil
	}
	if err := writeConfigFile(m.path, cfg); err != nil {
		return err
	}
	m.apply(cfg, changed, "update")
	return nil
}

// Reload re-reads the file. An invalid file is rejected and the current config kept; a
// deleted file is recreated from defaults. The file event that follows our own write
// reloads identical content and changes nothing.
func (m *Manager) Reload() error {
	cfg, err := m.read()
	if errors.Is(err, os.ErrNotExist) {
		cfg = *DefaultConfigWithRoot(filepath.Dir(m.path))
		if err := writeConfigFile(m.path, cfg); err != nil {
			return fmt.Errorf("recreate config: %w", err)
		}
	} else if err != nil {
		return err
	}

	changed := ChangedKeys(m.Get(), cfg)
	if len(changed) == 0 {
		return nil
	}
	m.apply(cfg, changed, "file")
	return nil
}

// read loads and validates the file, filling missing keys from the defaults.
func (m *Manager) read() (Config, error) {
	cfg := *DefaultConfigWithRoot(filepath.Dir(m.path))
	if err := loadConfigFromFile(m.path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", m.path, err)
	}
	return cfg, nil
}

func (m *Manager) apply(cfg Config, changed []string, source string) {
	m.mu.Lock()
	m.cfg = cfg
	cb := m.onChange
	m.mu.Unlock()

	m.log.WithFields(map[string]any{
		"source": source,
		"keys":   strings.Join(changed, ","),
	}).Info("config changed")
	if cb != nil {
		cb(cfg)
	}
}

// Watch calls onChange with every validated change until ctx is done. A second call only
// replaces the listener.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.stopWatching()
		return err
	}
	// The directory is watched because editors and writeConfigFile replace the file.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		m.stopWatching()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) stopWatching() {
	m.mu.Lock()
	m.watching = false
	m.mu.Unlock()
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer m.stopWatching()
	defer watcher.Close()

	timer := time.NewTimer(m.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != target || evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(m.debounce)
		case <-timer.C:
			if err := m.Reload(); err != nil {
				m.log.WithError(err).Warn("config reload rejected, keeping previous config")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log.WithError(err).Warn("config watcher error")
		}
	}
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "CortexTrader", "config.json"), nil
}

// writeConfigFile replaces path atomically through a temp file in the same directory.
func writeConfigFile(path string, cfg Config) error {
	data, err := json.MarshalIndent(&cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "cfg-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
