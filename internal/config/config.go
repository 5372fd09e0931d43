package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"

	"github.com/tuannm99/novaextract/internal/record"
	"github.com/tuannm99/novaextract/internal/storage"
)

const (
	EnvPrefix       = "NOVAEXTRACT"
	DefaultFilename = "order-go.extract"
)

var ErrInvalidConfig = errors.New("config: invalid value")

type NovaExtractConfig struct {
	AppName string `mapstructure:"app_name"`

	Extract struct {
		Filename       string `mapstructure:"filename"`
		MaxStringBytes int    `mapstructure:"max_string_bytes"`
		Compression    string `mapstructure:"compression"`
	} `mapstructure:"extract"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Metrics struct {
		File string `mapstructure:"file"`
	} `mapstructure:"metrics"`
}

// NewViper returns a viper instance carrying the defaults and the
// NOVAEXTRACT_ environment binding. Callers may bind flags on it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("app_name", "novaextract")
	v.SetDefault("extract.filename", DefaultFilename)
	v.SetDefault("extract.max_string_bytes", record.DefaultMaxStringBytes)
	v.SetDefault("extract.compression", storage.CompressionNone.String())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path into v and unmarshals the result.
func Load(v *viper.Viper, path string) (*NovaExtractConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg NovaExtractConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig(path string) (*NovaExtractConfig, error) {
	return Load(NewViper(), path)
}

func (c *NovaExtractConfig) Validate() error {
	if c.Extract.Filename == "" {
		return fmt.Errorf("%w: extract.filename is empty", ErrInvalidConfig)
	}
	if c.Extract.MaxStringBytes <= 0 || int64(c.Extract.MaxStringBytes) > math.MaxUint32 {
		return fmt.Errorf("%w: extract.max_string_bytes=%d", ErrInvalidConfig, c.Extract.MaxStringBytes)
	}
	if _, err := storage.ParseCompression(c.Extract.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Compression returns the parsed extract.compression value.
func (c *NovaExtractConfig) Compression() storage.Compression {
	comp, _ := storage.ParseCompression(c.Extract.Compression)
	return comp
}
