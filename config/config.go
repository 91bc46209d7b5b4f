package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/leeforge/recipemedia/env_mode"
	"github.com/leeforge/recipemedia/utils"
	"github.com/spf13/viper"
)

func DefaultConfigOptions() ConfigOptions {
	basePath := os.Getenv("RECIPEMEDIA_CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return ConfigOptions{
		BasePath:  basePath,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: "RECIPEMEDIA",
		Optional:  true,
	}
}

func NewConfig(optsArr ...ConfigOptions) (*Config, error) {
	opts := DefaultConfigOptions()
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}

	instance, err := CreateConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Config{
		instance: instance,
		opts:     opts,
	}, nil
}

// BindKey decodes the sub-tree under key into out. An empty key binds the
// whole document.
func (c *Config) BindKey(key string, out any) error {
	if c == nil || c.instance == nil {
		return fmt.Errorf("config instance is nil")
	}
	if out == nil {
		return fmt.Errorf("target instance is nil")
	}

	c.watchMutex.RLock()
	err := c.unmarshal(key, out)
	c.watchMutex.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to unmarshal config key %q (path: %s, file: %s.%s): %w",
			key, c.opts.BasePath, c.opts.FileName, c.opts.FileType, err)
	}

	if c.opts.WatchAble {
		c.watchOnce.Do(func() {
			c.instance.OnConfigChange(func(e fsnotify.Event) {
				c.watchMutex.Lock()
				defer c.watchMutex.Unlock()
				if err := c.instance.ReadInConfig(); err != nil {
					return
				}
				if c.opts.OnChange != nil {
					c.opts.OnChange(e)
				}
			})
			c.instance.WatchConfig()
		})
	}
	return nil
}

// BindKeyWithDefaults applies `default:` tags, decodes key over them and
// runs Validate when out implements Validator.
func (c *Config) BindKeyWithDefaults(key string, out any) error {
	if err := defaults.Set(out); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}
	// Unmarshal on top of the defaults: keys absent from the sources keep
	// their default, explicit zero values (enabled: false) survive.
	if err := c.BindKey(key, out); err != nil {
		return err
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config %q validation failed: %w", key, err)
		}
	}
	return nil
}

func (c *Config) unmarshal(key string, out any) error {
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if key == "" {
		return c.instance.Unmarshal(out, hook)
	}
	return c.instance.UnmarshalKey(key, out, hook)
}

func (c *Config) Get(key string) any {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()
	return c.instance.Get(key)
}

func (c *Config) Set(key string, value any) {
	c.watchMutex.Lock()
	defer c.watchMutex.Unlock()
	c.instance.Set(key, value)
}

func CreateConfig(opts ConfigOptions) (*viper.Viper, error) {
	configPaths := getConfigFilePaths(opts)
	if len(configPaths) == 0 && !opts.Optional {
		return nil, fmt.Errorf("no valid configuration files found in path: %s", opts.BasePath)
	}

	v := viper.New()
	v.SetConfigType(opts.FileType)

	for i, configPath := range configPaths {
		if i == 0 {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
			}
			continue
		}
		overlay := viper.New()
		overlay.SetConfigFile(configPath)
		if err := overlay.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
		if err := v.MergeConfigMap(overlay.AllSettings()); err != nil {
			return nil, fmt.Errorf("error merging config file %s: %w", configPath, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	applyEnvOverrides(v, opts.EnvPrefix)

	return v, nil
}

// applyEnvOverrides copies environment values over keys already present in
// the files so that Unmarshal sees them; AutomaticEnv alone only affects Get.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	replacer := strings.NewReplacer(".", "_", "-", "_")

	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(replacer.Replace(key))
		if envPrefix != "" {
			envKey = envPrefix + "_" + envKey
		}
		if envValue, ok := os.LookupEnv(envKey); ok && envValue != "" {
			v.Set(key, envValue)
		}
	}
}

func getConfigFilePaths(opts ConfigOptions) (configFiles []string) {
	env := env_mode.Mode()
	fileNames := []string{
		opts.FileName,
		fmt.Sprintf("%s.local", opts.FileName),
		fmt.Sprintf("%s.%s", opts.FileName, env),
		fmt.Sprintf("%s.%s.local", opts.FileName, env),
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if isDir, exists, _ := utils.Exists(file); exists && !isDir {
			configFiles = append(configFiles, file)
		}
	}

	return configFiles
}
