package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"soundguard/internal/logger"
)

// DefaultConfigFile is read when present in the working directory.
const DefaultConfigFile = "config.yml"

type Config struct {
	Host    string `validate:"required"`
	Port    string `validate:"required,numeric"`
	GinMode string `validate:"oneof=debug release test"`
	Model   ModelConfig
	Audio   AudioConfig
	Storage StorageConfig
	HTTP    HTTPConfig
	Log     logger.Config
}

type ModelConfig struct {
	Type string `validate:"required"`
	Path string `validate:"required"`
}

type AudioConfig struct {
	// FFmpegPath decodes non-WAV uploads. Empty accepts WAV only.
	FFmpegPath    string
	DecodeTimeout time.Duration `validate:"gt=0"`
}

type StorageConfig struct {
	UploadDir string `validate:"required"`
	TempDir   string `validate:"required"`
}

type HTTPConfig struct {
	MaxUploadMB int64 `validate:"gt=0"`
	// LegacyStatusCodes keeps the 200 status on /predict requests without a
	// file, which existing clients expect.
	LegacyStatusCodes bool
	ShutdownTimeout   time.Duration `validate:"gt=0"`
}

// MaxUploadBytes returns the request body limit in bytes.
func (h HTTPConfig) MaxUploadBytes() int64 {
	return h.MaxUploadMB << 20
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Load loads configuration from config.yml (if present) and environment variables
func Load() (*Config, error) {
	path := ""
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		path = DefaultConfigFile
	}
	return LoadFile(path)
}

// LoadFile loads configuration from the YAML file at path, then applies
// environment overrides. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Host:    v.GetString("host"),
		Port:    v.GetString("port"),
		GinMode: strings.ToLower(v.GetString("gin_mode")),
		Model: ModelConfig{
			Type: v.GetString("model.type"),
			Path: v.GetString("model.path"),
		},
		Audio: AudioConfig{
			FFmpegPath:    v.GetString("audio.ffmpeg_path"),
			DecodeTimeout: v.GetDuration("audio.decode_timeout"),
		},
		Storage: StorageConfig{
			UploadDir: v.GetString("storage.upload_dir"),
			TempDir:   v.GetString("storage.temp_dir"),
		},
		HTTP: HTTPConfig{
			MaxUploadMB:       v.GetInt64("http.max_upload_mb"),
			LegacyStatusCodes: v.GetBool("http.legacy_status_codes"),
			ShutdownTimeout:   v.GetDuration("http.shutdown_timeout"),
		},
		Log: logger.Config{
			Level:      strings.ToLower(v.GetString("log.level")),
			Format:     strings.ToLower(v.GetString("log.format")),
			File:       v.GetString("log.file"),
			MaxSize:    v.GetInt("log.max_size"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAge:     v.GetInt("log.max_age"),
			Compress:   v.GetBool("log.compress"),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "5000")
	v.SetDefault("gin_mode", "release")

	v.SetDefault("model.type", "dense")
	v.SetDefault("model.path", "./scream_detection_model.json")

	v.SetDefault("audio.ffmpeg_path", "ffmpeg")
	v.SetDefault("audio.decode_timeout", 30*time.Second)

	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.temp_dir", "temp")

	v.SetDefault("http.max_upload_mb", 32)
	v.SetDefault("http.legacy_status_codes", true)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
}
