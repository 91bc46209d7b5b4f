package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Config represents the logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" json:"level" yaml:"level" default:"info"`

	// Format is the log format (json or console).
	Format string `mapstructure:"format" json:"format" yaml:"format" default:"json" validate:"oneof=json console"`

	// Director is the directory where log files are stored. Empty disables file output.
	Director string `mapstructure:"director" json:"director" yaml:"director"`

	// FileName is the log file name inside Director.
	FileName string `mapstructure:"file-name" json:"fileName" yaml:"file-name" default:"recipemedia.log"`

	// LogInTerminal also writes entries to stdout.
	LogInTerminal bool `mapstructure:"log-in-terminal" json:"logInTerminal" yaml:"log-in-terminal" default:"true"`

	// MaxSize is the size in megabytes at which the file is rotated.
	MaxSize int `mapstructure:"max-size" json:"maxSize" yaml:"max-size" default:"100"`

	// MaxAge is the number of days rotated files are kept.
	MaxAge int `mapstructure:"max-age" json:"maxAge" yaml:"max-age" default:"7"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `mapstructure:"max-backups" json:"maxBackups" yaml:"max-backups" default:"10"`

	// Compress gzips rotated files.
	Compress bool `mapstructure:"compress" json:"compress" yaml:"compress"`

	// TimeFormat is the Go time layout for the timestamp field.
	TimeFormat string `mapstructure:"time-format" json:"timeFormat" yaml:"time-format" default:"2006-01-02T15:04:05.000Z07:00"`

	// ShowLineNumber adds caller information to entries.
	ShowLineNumber bool `mapstructure:"show-line-number" json:"showLineNumber" yaml:"show-line-number"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		Format:        "json",
		FileName:      "recipemedia.log",
		LogInTerminal: true,
		MaxSize:       100,
		MaxAge:        7,
		MaxBackups:    10,
		TimeFormat:    "2006-01-02T15:04:05.000Z07:00",
	}
}

// ZapLevel converts the string level to zapcore.Level.
func (c Config) ZapLevel() zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// applyDefaults applies default values to empty fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Level == "" {
		c.Level = defaults.Level
	}
	if c.Format == "" {
		c.Format = defaults.Format
	}
	if c.FileName == "" {
		c.FileName = defaults.FileName
	}
	if c.MaxSize == 0 {
		c.MaxSize = defaults.MaxSize
	}
	if c.MaxAge == 0 {
		c.MaxAge = defaults.MaxAge
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = defaults.MaxBackups
	}
	if c.TimeFormat == "" {
		c.TimeFormat = defaults.TimeFormat
	}
}
