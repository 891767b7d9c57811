package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.StudyDir != "studies" {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Viewer.CineInterval != 200*time.Millisecond || cfg.Viewer.ZoomRatio != 1.2 {
		t.Errorf("viewer defaults = %+v", cfg.Viewer)
	}
	if cfg.Viewer.DefaultWidth != 400 || cfg.Viewer.DefaultCenter != 40 {
		t.Errorf("window defaults = %v/%v", cfg.Viewer.DefaultWidth, cfg.Viewer.DefaultCenter)
	}
}

func TestLoad_PartialFile(t *testing.T) {
	dir := t.TempDir()
	yml := `server:
  port: 9000
  studyDir: /data/exams
  watch: false
viewer:
  cineInterval: 100ms
live:
  callTimeout: 2s
cache:
  enabled: false
  strategy: fifo
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9000 || cfg.Server.StudyDir != "/data/exams" || cfg.Server.Watch {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.Host != "localhost" || cfg.Server.StaticDir != "public" {
		t.Errorf("server defaults not applied: %+v", cfg.Server)
	}
	if cfg.Viewer.CineInterval != 100*time.Millisecond {
		t.Errorf("cineInterval = %v", cfg.Viewer.CineInterval)
	}
	if cfg.Viewer.ZoomRatio != 1.2 {
		t.Errorf("zoomRatio = %v", cfg.Viewer.ZoomRatio)
	}
	if cfg.Live.CallTimeout != 2*time.Second || cfg.Live.PingInterval != 30*time.Second {
		t.Errorf("live = %+v", cfg.Live)
	}
	if cfg.Addr() != "localhost:9000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}

	c, err := cfg.OpenCache()
	if err != nil || c != nil {
		t.Errorf("disabled cache should open as nil, got %v, %v", c, err)
	}
}

func TestLoad_Invalid(t *testing.T) {
	for name, yml := range map[string]string{
		"syntax":   "server: [",
		"strategy": "cache:\n  strategy: random\n",
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0644)
			if _, err := Load(dir); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")

	cfg := DefaultConfig()
	cfg.Server.Port = 8181
	cfg.Viewer.MaxConcurrentLoads = 2
	cfg.Cache.Strategy = "lfu"
	if err := Save(cfg, dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.Port != 8181 || loaded.Viewer.MaxConcurrentLoads != 2 || loaded.Cache.Strategy != "lfu" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.Viewer.CineInterval != cfg.Viewer.CineInterval {
		t.Errorf("cineInterval = %v", loaded.Viewer.CineInterval)
	}
}

func TestOpenCache(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Dir = t.TempDir()
	cfg.Cache.MaxSizeMB = 1

	c, err := cfg.OpenCache()
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	defer c.Close()

	if err := c.Put("a.dcm", make([]byte, 1<<20)); err != nil {
		t.Errorf("1 MiB instance should fit: %v", err)
	}
	if err := c.Put("b.dcm", make([]byte, 1<<20+1)); err == nil {
		t.Error("instance over MaxSizeMB should be rejected")
	}
}

func TestViewerOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Viewer.ZoomRatio = 1.5

	opts := cfg.ViewerOptions()
	if opts.ZoomRatio != 1.5 || opts.CineInterval != 200*time.Millisecond || opts.MaxConcurrentLoads != 8 {
		t.Errorf("options = %+v", opts)
	}
}
