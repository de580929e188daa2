// Package config loads the s3pipe configuration from an optional YAML file and S3PIPE_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Clarilab/s3-stream/stream"
)

const envPrefix = "S3PIPE"

// Backends.
const (
	BackendMinio = "minio"
	BackendAWS   = "aws"
)

// Config is the s3pipe configuration.
type Config struct {
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required,oneof=minio aws"`
	Bucket  string `yaml:"bucket" mapstructure:"bucket" validate:"required"`

	// Endpoint is host:port for minio and a URL for aws, where it may be left empty.
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint" validate:"required_if=Backend minio"`
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"accessKey" mapstructure:"accessKey" validate:"required_if=Backend minio"`
	SecretKey string `yaml:"secretKey" mapstructure:"secretKey" validate:"required_if=Backend minio"`
	Secure    bool   `yaml:"secure" mapstructure:"secure"`
	PathStyle bool   `yaml:"pathStyle" mapstructure:"pathStyle"`

	Upload Upload `yaml:"upload" mapstructure:"upload"`
	Log    Log    `yaml:"log" mapstructure:"log"`
}

// Upload configures the streaming upload.
// PartSize must lie between stream.MinPartSize and stream.MaxSinglePutSize.
type Upload struct {
	PartSize    int    `yaml:"partSize" mapstructure:"partSize" validate:"gte=5242880,lte=5368709120"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1"`
	ContentType string `yaml:"contentType" mapstructure:"contentType"`
}

// Log configures the logger.
type Log struct {
	Level     string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format    string `yaml:"format" mapstructure:"format" validate:"required,oneof=json text"`
	AddSource bool   `yaml:"addSource" mapstructure:"addSource"`
}

var defaults = map[string]any{
	"backend":            BackendMinio,
	"bucket":             "",
	"endpoint":           "",
	"region":             "",
	"accessKey":          "",
	"secretKey":          "",
	"secure":             false,
	"pathStyle":          false,
	"upload.partSize":    stream.DefaultPartSize,
	"upload.concurrency": stream.DefaultConcurrency,
	"upload.contentType": "",
	"log.level":          "info",
	"log.format":         "text",
	"log.addSource":      false,
}

// Load reads the configuration. path may be empty, in which case only defaults and the environment are used.
// An environment variable overrides the file; nested keys use an underscore, e.g. S3PIPE_UPLOAD_PARTSIZE.
func Load(path string) (*Config, error) {
	const errMessage = "failed to load config: %w"

	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf(errMessage, err)
		}
	}

	cfg := new(Config)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf(errMessage, err)
	}

	return cfg, nil
}

// Validate checks the struct tags of cfg.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// StreamOptions returns the upload settings as stream options.
func (c *Config) StreamOptions() []stream.Option {
	options := []stream.Option{
		stream.WithPartSize(c.Upload.PartSize),
		stream.WithConcurrency(c.Upload.Concurrency),
	}

	if c.Upload.ContentType != "" {
		options = append(options, stream.WithContentType(c.Upload.ContentType))
	}

	return options
}
