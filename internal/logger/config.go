package logger

// Config contains logging configuration. A non-empty File adds a rotated
// JSON log file next to the stdout output.
type Config struct {
	Level      string `validate:"oneof=trace debug info warn error fatal"`
	Format     string `validate:"oneof=json console"`
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.MaxSize == 0 {
		c.MaxSize = 100
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAge == 0 {
		c.MaxAge = 28
	}
}
