package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/Pablogarciag02/ChapterInator2.0/internal/pipeline"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/providers"
	"github.com/Pablogarciag02/ChapterInator2.0/internal/upload"
)

// EnvPrefix is the prefix for environment overrides, e.g. CHAPTERINATOR_SERVICE_API_KEY.
const EnvPrefix = "CHAPTERINATOR"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches "." and homeDir for config.yaml.
func NewManager(cfgFile, homeDir string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, homeDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, homeDir string) error {
	seedDefaults(cm.v)

	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		if homeDir != "" {
			cm.v.AddConfigPath(homeDir)
		}
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Value returns the effective raw value for a key.
func (cm *Manager) Value(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if !cm.v.IsSet(key) {
		return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return cm.v.Get(key), nil
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. A missing file is not an error; existing variables win.
func LoadEnvFile(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToClientConfig converts the config to a providers.Config.
// It resolves ${ENV_VAR} references in the API key.
func (c *Config) ToClientConfig() providers.Config {
	return providers.Config{
		BaseURL:     c.Service.BaseURL,
		APIKey:      c.ResolvedAPIKey(),
		ReadTimeout: c.ReadTimeout(),
	}
}

// ToUploadConfig converts the config to an upload.ChainConfig.
// Unknown backend names are reported as errors.
func (c *Config) ToUploadConfig() (upload.ChainConfig, error) {
	cfg := upload.ChainConfig{
		Timeout: c.UploadTimeout(),
	}
	for _, name := range c.Upload.Backends {
		endpoint := c.Upload.Endpoints[name]
		switch name {
		case upload.BackendZeroXZero:
			cfg.Backends = append(cfg.Backends, upload.NewZeroXZero(endpoint))
		case upload.BackendCatbox:
			cfg.Backends = append(cfg.Backends, upload.NewCatbox(endpoint))
		case upload.BackendTmpfiles:
			cfg.Backends = append(cfg.Backends, upload.NewTmpfiles(endpoint))
		case upload.BackendS3:
			s3 := c.Upload.S3
			backend, err := upload.NewS3(upload.S3Config{
				Endpoint:      s3.Endpoint,
				Bucket:        s3.Bucket,
				Region:        s3.Region,
				AccessKey:     ResolveEnvVars(s3.AccessKey),
				SecretKey:     ResolveEnvVars(s3.SecretKey),
				UseSSL:        s3.UseSSL,
				PublicURL:     s3.PublicURL,
				PresignExpiry: secondsOr(s3.PresignSeconds, 3600),
			})
			if err != nil {
				return upload.ChainConfig{}, fmt.Errorf("s3 backend: %w", err)
			}
			cfg.Backends = append(cfg.Backends, backend)
		default:
			return upload.ChainConfig{}, fmt.Errorf("unknown upload backend %q", name)
		}
	}
	return cfg, nil
}

// ToOperations maps the configured operations onto pipeline roles.
func (c *Config) ToOperations() pipeline.Operations {
	op := func(name string) pipeline.Operation {
		o := c.Operations[name]
		return pipeline.Operation{ID: o.ID, ResultField: o.ResultField}
	}
	return pipeline.Operations{
		Compendio:    op(OpCompendio),
		ProjectBrief: op(OpProjectBrief),
		References:   op(OpReferences),
		Citations:    op(OpCitations),
		Tables:       op(OpTables),
		Combine:      op(OpMappingLogic),
		Skeleton:     op(OpThemeSelector),
		Chapter:      op(OpChapter),
		Assembly:     op(OpAssembly),
	}
}

// OperationLabels maps operation ids to operation names.
func (c *Config) OperationLabels() map[string]string {
	labels := make(map[string]string, len(c.Operations))
	for name, o := range c.Operations {
		if o.ID != "" {
			labels[o.ID] = name
		}
	}
	return labels
}

// MissingOperations lists operations that have no id configured.
func (c *Config) MissingOperations() []string {
	var missing []string
	for _, name := range OperationNames {
		if _, ok := c.Operation(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Chapterinator configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell or ~/.chapterinator/.env: export WORDWARE_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
