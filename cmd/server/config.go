package main

import (
	"context"
	"os"
	"time"

	"github.com/fnproject/rust-images/internal/imagebuild"
	"github.com/fnproject/rust-images/internal/toolchain"

	"github.com/aws/aws-sdk-go-v2/aws"
	gconfig "github.com/gookit/config/v2"
	gyaml "github.com/gookit/config/v2/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const DefaultConfigPath = "config.yaml"

const (
	PrettyLogFormat = "pretty"
	JSONLogFormat   = "json"
)

type Config struct {
	Namespace  string `mapstructure:"namespace"`
	ImagesRoot string `mapstructure:"images_root"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	API API `mapstructure:"api"`

	PrometheusExportAddress string `mapstructure:"prometheus_address"`

	Docker Docker `mapstructure:"docker"`

	Toolchain Toolchain `mapstructure:"toolchain"`

	AWS AWS `mapstructure:"aws"`
}

type API struct {
	ListeningAddress string        `mapstructure:"address"`
	ServerTimeout    time.Duration `mapstructure:"server_timeout"`
}

type Docker struct {
	DaemonURL    *string       `mapstructure:"daemon_url"`
	BuildTimeout time.Duration `mapstructure:"build_timeout"`
}

type Toolchain struct {
	Verify bool `mapstructure:"verify"`

	Repositories []string `mapstructure:"repositories"`
	OS           string   `mapstructure:"os"`
	Architecture string   `mapstructure:"architecture"`

	Auth string `mapstructure:"auth"`

	CacheExpirationTime time.Duration `mapstructure:"tags_cache_expiration_time"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`

	BuildRunsTable string `mapstructure:"build_runs_table"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultConfigPath
	}

	gconfig.WithOptions(
		gconfig.ParseEnv,
		gconfig.Readonly,
		func(opts *gconfig.Options) {
			opts.DecoderConfig = &mapstructure.DecoderConfig{
				TagName:          "mapstructure",
				WeaklyTypedInput: true,
				DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			}
		},
	)
	gconfig.AddDriver(gyaml.Driver)

	err := gconfig.LoadFiles(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	cfg := new(Config)
	err = gconfig.BindStruct("", cfg)
	if err != nil {
		return nil, errors.Wrap(err, "config binding failed")
	}

	err = cfg.validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// validate verifies the loaded config and sets default values for missed fields.
func (c *Config) validate() error {
	if c.Namespace == "" {
		c.Namespace = imagebuild.DefaultConfig.Namespace
	}
	if c.ImagesRoot == "" {
		c.ImagesRoot = imagebuild.DefaultConfig.ImagesRoot
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = JSONLogFormat
	}
	if c.LogFormat != PrettyLogFormat && c.LogFormat != JSONLogFormat {
		return errors.Errorf("unknown log format %s (supported: %s, %s)", c.LogFormat, PrettyLogFormat, JSONLogFormat)
	}

	if c.API.ListeningAddress == "" {
		c.API.ListeningAddress = ":9000"
	}
	if c.API.ServerTimeout == 0 {
		c.API.ServerTimeout = 45 * time.Minute
	}

	if c.PrometheusExportAddress == "" {
		c.PrometheusExportAddress = ":2112"
	}

	if c.Docker.BuildTimeout == 0 {
		c.Docker.BuildTimeout = imagebuild.DefaultConfig.BuildTimeout
	}

	if len(c.Toolchain.Repositories) == 0 {
		c.Toolchain.Repositories = []string{toolchain.DefaultRepository}
	}
	if c.Toolchain.OS == "" {
		c.Toolchain.OS = "linux"
	}
	if c.Toolchain.Architecture == "" {
		c.Toolchain.Architecture = "amd64"
	}
	if c.Toolchain.CacheExpirationTime == 0 {
		c.Toolchain.CacheExpirationTime = toolchain.DefaultExpirationTime
	}

	if c.AWS.BuildRunsTable != "" && c.AWS.Region == "" {
		return errors.New("aws.region is required when aws.build_runs_table is set")
	}

	return nil
}

func (c *Config) Retrieve(_ context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		Source:          "local config",
	}, nil
}
