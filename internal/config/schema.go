package config

import (
	"time"

	"github.com/spf13/viper"
)

// Operation names used as keys under "operations".
const (
	OpCompendio     = "compendio_to_markdown"
	OpProjectBrief  = "project_brief_to_markdown"
	OpReferences    = "mapping_referencias"
	OpCitations     = "mapping_citas"
	OpTables        = "mapping_tablas"
	OpMappingLogic  = "mapping_logic"
	OpThemeSelector = "theme_selector"
	OpChapter       = "chapter_creator"
	OpAssembly      = "table_generator"
)

// OperationNames lists every configured remote operation in pipeline order.
var OperationNames = []string{
	OpCompendio,
	OpProjectBrief,
	OpReferences,
	OpCitations,
	OpTables,
	OpMappingLogic,
	OpThemeSelector,
	OpChapter,
	OpAssembly,
}

// Config holds chapterinator configuration.
// Stored at: ~/.chapterinator/config.yaml
type Config struct {
	Service    ServiceCfg              `mapstructure:"service" yaml:"service"`
	Operations map[string]OperationCfg `mapstructure:"operations" yaml:"operations"`
	Upload     UploadCfg               `mapstructure:"upload" yaml:"upload"`
	Defaults   DefaultsCfg             `mapstructure:"defaults" yaml:"defaults"`
}

// ServiceCfg configures the remote generation service.
type ServiceCfg struct {
	BaseURL            string `mapstructure:"base_url" yaml:"base_url"`
	APIKey             string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	ReadTimeoutSeconds int    `mapstructure:"read_timeout_seconds" yaml:"read_timeout_seconds"`
}

// OperationCfg identifies one released app on the generation service.
type OperationCfg struct {
	ID string `mapstructure:"id" yaml:"id"`
	// ResultField names the output field holding text for text-contract operations.
	ResultField string `mapstructure:"result_field" yaml:"result_field,omitempty"`
}

// UploadCfg configures the blob upload fallback chain.
type UploadCfg struct {
	TimeoutSeconds int               `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Backends       []string          `mapstructure:"backends" yaml:"backends"`   // tried in order
	Endpoints      map[string]string `mapstructure:"endpoints" yaml:"endpoints"` // per-backend URL overrides
	S3             S3Cfg             `mapstructure:"s3" yaml:"s3"`
}

// S3Cfg configures the optional S3-compatible backend.
type S3Cfg struct {
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	AccessKey      string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey      string `mapstructure:"secret_key" yaml:"secret_key"`
	UseSSL         bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	PublicURL      string `mapstructure:"public_url" yaml:"public_url"`
	PresignSeconds int    `mapstructure:"presign_seconds" yaml:"presign_seconds"`
}

// DefaultsCfg specifies default run parameters.
type DefaultsCfg struct {
	MaxConcurrency int    `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	ReferenceCount int    `mapstructure:"reference_count" yaml:"reference_count"`
	PageCount      string `mapstructure:"page_count" yaml:"page_count"`
}

// DefaultConfig returns configuration with sensible defaults.
// Values come from DefaultEntries so the file written by `config init`
// matches what viper falls back to.
func DefaultConfig() *Config {
	v := viper.New()
	seedDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return &Config{}
	}
	return &cfg
}

// Operation returns the operation config by name.
func (c *Config) Operation(name string) (OperationCfg, bool) {
	op, ok := c.Operations[name]
	return op, ok && op.ID != ""
}

// ResolvedAPIKey returns the service API key with ${ENV_VAR} references expanded.
func (c *Config) ResolvedAPIKey() string {
	return ResolveEnvVars(c.Service.APIKey)
}

// ReadTimeout returns the generation service read timeout.
func (c *Config) ReadTimeout() time.Duration {
	if c.Service.ReadTimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Service.ReadTimeoutSeconds) * time.Second
}

// UploadTimeout returns the per-backend upload timeout.
func (c *Config) UploadTimeout() time.Duration {
	if c.Upload.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Upload.TimeoutSeconds) * time.Second
}

func secondsOr(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
