package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:5000" {
		t.Errorf("expected 0.0.0.0:5000, got %s", cfg.Addr())
	}
	if cfg.Model.Type != "dense" || cfg.Model.Path != "./scream_detection_model.json" {
		t.Errorf("unexpected model config %+v", cfg.Model)
	}
	if cfg.Audio.FFmpegPath != "ffmpeg" || cfg.Audio.DecodeTimeout != 30*time.Second {
		t.Errorf("unexpected audio config %+v", cfg.Audio)
	}
	if cfg.Storage.UploadDir != "uploads" || cfg.Storage.TempDir != "temp" {
		t.Errorf("unexpected storage config %+v", cfg.Storage)
	}
	if !cfg.HTTP.LegacyStatusCodes {
		t.Error("expected legacy status codes by default")
	}
	if cfg.HTTP.MaxUploadBytes() != 32<<20 {
		t.Errorf("expected 32MB limit, got %d", cfg.HTTP.MaxUploadBytes())
	}
	if cfg.HTTP.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected 10s shutdown timeout, got %s", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.GinMode != "release" || cfg.Log.Level != "info" {
		t.Errorf("unexpected modes %q %q", cfg.GinMode, cfg.Log.Level)
	}
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_PATH", "/models/scream.json")
	t.Setenv("STORAGE_TEMP_DIR", "/tmp/scratch")
	t.Setenv("HTTP_LEGACY_STATUS_CODES", "false")
	t.Setenv("HTTP_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("AUDIO_FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.Model.Path != "/models/scream.json" || cfg.Storage.TempDir != "/tmp/scratch" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.HTTP.LegacyStatusCodes {
		t.Error("expected legacy status codes to be disabled")
	}
	if cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug, got %q", cfg.Log.Level)
	}
	if cfg.Audio.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("expected ffmpeg override, got %q", cfg.Audio.FFmpegPath)
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yaml := `
port: "8081"
model:
  path: ./models/v2.json
storage:
  upload_dir: /data/uploads
http:
  max_upload_mb: 8
log:
  format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "7000")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "7000" {
		t.Errorf("expected env to win over file, got %s", cfg.Port)
	}
	if cfg.Model.Path != "./models/v2.json" || cfg.Storage.UploadDir != "/data/uploads" {
		t.Errorf("file values not applied: %+v %+v", cfg.Model, cfg.Storage)
	}
	if cfg.HTTP.MaxUploadMB != 8 || cfg.Log.Format != "json" {
		t.Errorf("file values not applied: %+v %+v", cfg.HTTP, cfg.Log)
	}
}

func TestLoadFileValidation(t *testing.T) {
	tests := map[string][2]string{
		"port":     {"PORT", "http"},
		"upload":   {"HTTP_MAX_UPLOAD_MB", "0"},
		"gin mode": {"GIN_MODE", "verbose"},
		"level":    {"LOG_LEVEL", "loud"},
		"decode":   {"AUDIO_DECODE_TIMEOUT", "0s"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := LoadFile(""); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
