// Package config loads dicomview.yaml, the configuration shared by the serve
// and view commands. Missing files and missing keys fall back to defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/recera/dicomview/internal/cache"
	"github.com/recera/dicomview/pkg/viewer"
)

// FileName is the configuration file looked up in the project directory
const FileName = "dicomview.yaml"

// Config represents dicomview.yaml
type Config struct {
	Server ServerConfig `yaml:"server"`
	Viewer ViewerConfig `yaml:"viewer"`
	Live   LiveConfig   `yaml:"live"`
	Cache  CacheConfig  `yaml:"cache"`
}

// ServerConfig configures dicomview serve
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// StudyDir holds one sub-directory of DICOM files per exam
	StudyDir string `yaml:"studyDir"`

	// StaticDir serves index.html, app.wasm and wasm_exec.js
	StaticDir string `yaml:"staticDir"`

	// Watch rescans StudyDir when files change
	Watch bool `yaml:"watch"`
}

// ViewerConfig tunes the viewer controller
type ViewerConfig struct {
	CineInterval       time.Duration `yaml:"cineInterval"`
	ZoomRatio          float64       `yaml:"zoomRatio"`
	DefaultWidth       float64       `yaml:"defaultWidth"`
	DefaultCenter      float64       `yaml:"defaultCenter"`
	MaxConcurrentLoads int           `yaml:"maxConcurrentLoads"`
}

// LiveConfig configures websocket sessions
type LiveConfig struct {
	CallTimeout  time.Duration `yaml:"callTimeout"`
	PingInterval time.Duration `yaml:"pingInterval"`
	Debug        bool          `yaml:"debug"`
}

// CacheConfig configures the on-disk payload cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir,omitempty"`
	MaxSizeMB int64         `yaml:"maxSizeMB"`
	MaxAge    time.Duration `yaml:"maxAge"`
	Strategy  string        `yaml:"strategy"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "localhost",
			Port:      8080,
			StudyDir:  "studies",
			StaticDir: "public",
			Watch:     true,
		},
		Viewer: ViewerConfig{
			CineInterval:       200 * time.Millisecond,
			ZoomRatio:          1.2,
			DefaultWidth:       400,
			DefaultCenter:      40,
			MaxConcurrentLoads: 8,
		},
		Live: LiveConfig{
			CallTimeout:  10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MaxSizeMB: 512,
			MaxAge:    24 * time.Hour,
			Strategy:  "lru",
		},
	}
}

// Load reads dicomview.yaml from projectPath
func Load(projectPath string) (*Config, error) {
	return LoadFile(filepath.Join(projectPath, FileName))
}

// LoadFile reads the configuration at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(&cfg)

	if _, err := cache.ParseStrategy(cfg.Cache.Strategy); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to dicomview.yaml in projectPath
func Save(cfg *Config, projectPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(projectPath, 0755); err != nil {
		return fmt.Errorf("create %s: %w", projectPath, err)
	}
	return os.WriteFile(filepath.Join(projectPath, FileName), data, 0644)
}

// applyDefaults fills zero values. Booleans are taken as written.
func applyDefaults(cfg *Config) {
	d := DefaultConfig()

	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.StudyDir == "" {
		cfg.Server.StudyDir = d.Server.StudyDir
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = d.Server.StaticDir
	}

	if cfg.Viewer.CineInterval <= 0 {
		cfg.Viewer.CineInterval = d.Viewer.CineInterval
	}
	if cfg.Viewer.ZoomRatio <= 0 {
		cfg.Viewer.ZoomRatio = d.Viewer.ZoomRatio
	}
	if cfg.Viewer.DefaultWidth == 0 {
		cfg.Viewer.DefaultWidth = d.Viewer.DefaultWidth
	}
	if cfg.Viewer.DefaultCenter == 0 {
		cfg.Viewer.DefaultCenter = d.Viewer.DefaultCenter
	}
	if cfg.Viewer.MaxConcurrentLoads <= 0 {
		cfg.Viewer.MaxConcurrentLoads = d.Viewer.MaxConcurrentLoads
	}

	if cfg.Live.CallTimeout <= 0 {
		cfg.Live.CallTimeout = d.Live.CallTimeout
	}
	if cfg.Live.PingInterval <= 0 {
		cfg.Live.PingInterval = d.Live.PingInterval
	}

	if cfg.Cache.MaxSizeMB <= 0 {
		cfg.Cache.MaxSizeMB = d.Cache.MaxSizeMB
	}
	if cfg.Cache.MaxAge <= 0 {
		cfg.Cache.MaxAge = d.Cache.MaxAge
	}
	if cfg.Cache.Strategy == "" {
		cfg.Cache.Strategy = d.Cache.Strategy
	}
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ViewerOptions converts the viewer section to controller options
func (c *Config) ViewerOptions() *viewer.Options {
	return &viewer.Options{
		CineInterval:       c.Viewer.CineInterval,
		ZoomRatio:          c.Viewer.ZoomRatio,
		DefaultWidth:       c.Viewer.DefaultWidth,
		DefaultCenter:      c.Viewer.DefaultCenter,
		MaxConcurrentLoads: c.Viewer.MaxConcurrentLoads,
	}
}

// OpenCache opens the payload cache, or returns nil when caching is disabled
func (c *Config) OpenCache() (*cache.Cache, error) {
	if !c.Cache.Enabled {
		return nil, nil
	}
	strategy, err := cache.ParseStrategy(c.Cache.Strategy)
	if err != nil {
		return nil, err
	}
	cc := cache.DefaultConfig()
	if c.Cache.Dir != "" {
		cc.Dir = c.Cache.Dir
	}
	cc.MaxSize = c.Cache.MaxSizeMB << 20
	cc.MaxAge = c.Cache.MaxAge
	cc.Strategy = strategy
	return cache.New(cc)
}
