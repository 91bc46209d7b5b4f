package handler

// Config is bound from the media.http key.
type Config struct {
	UploadDir string `mapstructure:"upload-dir" default:"./uploads/recipes" validate:"required"`
	FormField string `mapstructure:"form-field" default:"image" validate:"required"`
	// MaxBodySize caps the whole multipart request; it should leave room
	// above the pipeline's upload limit for the form envelope.
	MaxBodySize int64 `mapstructure:"max-body-size" default:"11534336" validate:"gt=0"`
	// MaxMemory is the part of the form kept in memory before spooling.
	MaxMemory int64 `mapstructure:"max-memory" default:"8388608" validate:"gt=0"`
	// MaxConcurrent is the number of uploads processed at once; further
	// requests wait for a slot until their context ends.
	MaxConcurrent int `mapstructure:"max-concurrent" default:"2" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		UploadDir:     "./uploads/recipes",
		FormField:     "image",
		MaxBodySize:   11 << 20,
		MaxMemory:     8 << 20,
		MaxConcurrent: 2,
	}
}

func (c *Config) Validate() error {
	return newValidator().Struct(c)
}
