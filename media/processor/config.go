package processor

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is bound from the media.processor key.
type Config struct {
	Native NativeConfig `mapstructure:"native"`
	Bitmap BitmapConfig `mapstructure:"bitmap"`

	Thumbnail SizeConfig `mapstructure:"thumbnail" default:"{\"width\":300,\"height\":200}"`
	Optimized SizeConfig `mapstructure:"optimized" default:"{\"width\":1000,\"height\":750}"`
	Banner    SizeConfig `mapstructure:"banner" default:"{\"width\":1200,\"height\":400}"`

	Quality         int   `mapstructure:"quality" default:"85" validate:"min=1,max=100"`
	FallbackQuality int   `mapstructure:"fallback-quality" default:"90" validate:"min=1,max=100"`
	QualityStep     int   `mapstructure:"quality-step" default:"10" validate:"min=0,max=100"`
	MinQuality      int   `mapstructure:"min-quality" default:"70" validate:"min=1,max=100"`
	SizeBudget      int64 `mapstructure:"size-budget" default:"307200" validate:"gt=0"`

	MaxUploadSize int64    `mapstructure:"max-upload-size" default:"10485760" validate:"gt=0"`
	AllowedTypes  []string `mapstructure:"allowed-types" default:"[\"image/jpeg\",\"image/png\",\"image/gif\",\"image/webp\"]" validate:"min=1,dive,required"`
}

type NativeConfig struct {
	Enabled      bool          `mapstructure:"enabled" default:"true"`
	Binary       string        `mapstructure:"binary" default:"convert" validate:"required_if=Enabled true"`
	Timeout      time.Duration `mapstructure:"timeout" default:"10s" validate:"gt=0"`
	ProbeTimeout time.Duration `mapstructure:"probe-timeout" default:"5s" validate:"gt=0"`
}

type BitmapConfig struct {
	Enabled bool `mapstructure:"enabled" default:"true"`
}

type SizeConfig struct {
	Width  int `mapstructure:"width" json:"width" validate:"gt=0"`
	Height int `mapstructure:"height" json:"height" validate:"gt=0"`
}

// DefaultConfig returns the configuration used when nothing is bound.
func DefaultConfig() Config {
	return Config{
		Native: NativeConfig{
			Enabled:      true,
			Binary:       "convert",
			Timeout:      10 * time.Second,
			ProbeTimeout: 5 * time.Second,
		},
		Bitmap:          BitmapConfig{Enabled: true},
		Thumbnail:       SizeConfig{Width: 300, Height: 200},
		Optimized:       SizeConfig{Width: 1000, Height: 750},
		Banner:          SizeConfig{Width: 1200, Height: 400},
		Quality:         85,
		FallbackQuality: 90,
		QualityStep:     10,
		MinQuality:      70,
		SizeBudget:      300 * 1024,
		MaxUploadSize:   10 * 1024 * 1024,
		AllowedTypes:    []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.MinQuality > c.Quality {
		return fmt.Errorf("min-quality %d is above quality %d", c.MinQuality, c.Quality)
	}
	return nil
}

// Presets returns the fixed preset set, smallest first.
func (c Config) Presets() []Preset {
	return []Preset{
		{Name: PresetThumbnail, Suffix: "_thumb", Width: c.Thumbnail.Width, Height: c.Thumbnail.Height, Crop: true},
		{Name: PresetOptimized, Suffix: "_optimized", Width: c.Optimized.Width, Height: c.Optimized.Height, Crop: true},
		{Name: PresetBanner, Suffix: "_banner", Width: c.Banner.Width, Height: c.Banner.Height, Crop: true},
	}
}

func (c Config) allowed(mimeType string) bool {
	mimeType = normalizeMIME(mimeType)
	for _, t := range c.AllowedTypes {
		if normalizeMIME(t) == mimeType {
			return true
		}
	}
	return false
}

// retryQuality is the single reduced quality used when an encode is over
// budget.
func (c Config) retryQuality(q int) int {
	return max(c.MinQuality, q-c.QualityStep)
}

func normalizeMIME(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "image/jpg" || s == "image/pjpeg" {
		return "image/jpeg"
	}
	return s
}
