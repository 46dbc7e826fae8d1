// Package config loads tablectl configuration from a YAML file overlaid by
// TABLEMAP_* environment variables.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Table   TableConfig   `yaml:"table"`
	Query   QueryConfig   `yaml:"query"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// TableConfig locates the DynamoDB table.
type TableConfig struct {
	Name     string `yaml:"name" validate:"required,min=3,max=255"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"` // DynamoDB Local, for example
}

// QueryConfig tunes paged reads and batched writes.
type QueryConfig struct {
	PageSize  int `yaml:"page_size" validate:"gte=1,lte=1000"`
	BatchSize int `yaml:"batch_size" validate:"gte=1,lte=100"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig configures Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true"`
}

// Default returns the configuration used when no file or variable overrides a value.
func Default() *Config {
	return &Config{
		Query: QueryConfig{PageSize: 1000, BatchSize: 100},
		Log:   LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{
			Namespace: "tablemap",
		},
	}
}

// Load reads the YAML file at path, if path is not empty, applies environment
// overrides found through lookup and validates the result. A nil lookup uses
// os.LookupEnv.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays TABLEMAP_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"TABLEMAP_TABLE":             &c.Table.Name,
		"TABLEMAP_REGION":            &c.Table.Region,
		"TABLEMAP_ENDPOINT":          &c.Table.Endpoint,
		"TABLEMAP_LOG_LEVEL":         &c.Log.Level,
		"TABLEMAP_LOG_FORMAT":        &c.Log.Format,
		"TABLEMAP_METRICS_NAMESPACE": &c.Metrics.Namespace,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TABLEMAP_PAGE_SIZE":  &c.Query.PageSize,
		"TABLEMAP_BATCH_SIZE": &c.Query.BatchSize,
	}
	for name, dst := range ints {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = n
	}

	if v, ok := lookup("TABLEMAP_METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TABLEMAP_METRICS_ENABLED: %w", err)
		}
		c.Metrics.Enabled = b
	}
	return nil
}

// Validate checks the struct tags of the configuration.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// NewLogger builds a zap logger for the configured level and format.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// NewDynamoDBClient loads the default AWS configuration, applying the configured
// region and endpoint.
func (c *Config) NewDynamoDBClient(ctx context.Context) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Table.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Table.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if c.Table.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Table.Endpoint)
		}
	}), nil
}
