// Package config provides configuration management for the parser framework
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/structdoc/structdoc/pkg/errors"
	"github.com/structdoc/structdoc/pkg/parsers"
)

// DefaultSchemaVersion marks the current on-disk configuration layout.
const DefaultSchemaVersion = "structdoc/v1"

// validate is shared across all configuration types; the validator
// instance caches struct metadata and is safe for concurrent use.
var validate = validator.New()

// BaseConfig carries the fields shared by every top-level configuration
type BaseConfig struct {
	SchemaVersion string `yaml:"schema_version,omitempty" json:"schema_version,omitempty" validate:"required"`
}

// NewBaseConfig creates a new base configuration
func NewBaseConfig() *BaseConfig {
	return &BaseConfig{
		SchemaVersion: DefaultSchemaVersion,
	}
}

// ParserDefaultsConfig carries the parsing defaults applied when a request
// does not override them.
type ParserDefaultsConfig struct {
	DefaultStrategy    string   `yaml:"default_strategy,omitempty" json:"default_strategy,omitempty" validate:"omitempty,oneof=auto pdf_text universal ocr remote"`
	EnableOCR          bool     `yaml:"enable_ocr" json:"enable_ocr"`
	OCRLanguages       []string `yaml:"ocr_languages,omitempty" json:"ocr_languages,omitempty"`
	ExtractTables      bool     `yaml:"extract_tables" json:"extract_tables"`
	ExtractImages      bool     `yaml:"extract_images" json:"extract_images"`
	ExtractMetadata    bool     `yaml:"extract_metadata" json:"extract_metadata"`
	PreserveFormatting bool     `yaml:"preserve_formatting" json:"preserve_formatting"`
	ChunkSize          int      `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty" validate:"omitempty,gt=0"`
	OverlapSize        int      `yaml:"overlap_size,omitempty" json:"overlap_size,omitempty" validate:"omitempty,gte=0"`
	QualityThreshold   float64  `yaml:"quality_threshold,omitempty" json:"quality_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	TimeoutSeconds     int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty" validate:"omitempty,gt=0"`
}

// NewParserDefaultsConfig creates parser defaults matching a fresh
// ParserConfiguration.
func NewParserDefaultsConfig() *ParserDefaultsConfig {
	return &ParserDefaultsConfig{
		DefaultStrategy:    string(parsers.StrategyAuto),
		EnableOCR:          false,
		OCRLanguages:       []string{"eng"},
		ExtractTables:      true,
		ExtractImages:      true,
		ExtractMetadata:    true,
		PreserveFormatting: true,
		ChunkSize:          1000,
		OverlapSize:        200,
		QualityThreshold:   0.8,
		TimeoutSeconds:     300,
	}
}

// ParserConfiguration converts the defaults into the configuration value
// handed to the parser factory.
func (c *ParserDefaultsConfig) ParserConfiguration() *parsers.ParserConfiguration {
	pc := parsers.NewParserConfiguration()
	if c.DefaultStrategy != "" {
		pc.Strategy = parsers.ParsingStrategy(c.DefaultStrategy)
	}
	pc.EnableOCR = c.EnableOCR
	if len(c.OCRLanguages) > 0 {
		pc.OCRLanguages = append([]string(nil), c.OCRLanguages...)
	}
	pc.ExtractTables = c.ExtractTables
	pc.ExtractImages = c.ExtractImages
	pc.ExtractMetadata = c.ExtractMetadata
	pc.PreserveFormatting = c.PreserveFormatting
	if c.ChunkSize > 0 {
		pc.ChunkSize = c.ChunkSize
	}
	if c.OverlapSize > 0 {
		pc.OverlapSize = c.OverlapSize
	}
	if c.QualityThreshold > 0 {
		pc.QualityThreshold = c.QualityThreshold
	}
	if c.TimeoutSeconds > 0 {
		pc.TimeoutSeconds = c.TimeoutSeconds
	}
	return pc
}

// OCRConfig represents OCR engine configuration
type OCRConfig struct {
	Languages      []string `yaml:"languages,omitempty" json:"languages,omitempty"`
	TessdataPrefix string   `yaml:"tessdata_prefix,omitempty" json:"tessdata_prefix,omitempty"`
	PageSegMode    int      `yaml:"page_seg_mode,omitempty" json:"page_seg_mode,omitempty" validate:"omitempty,gte=0,lte=13"`
	MinConfidence  float64  `yaml:"min_confidence,omitempty" json:"min_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// NewOCRConfig creates a new OCR configuration
func NewOCRConfig() *OCRConfig {
	return &OCRConfig{
		Languages:     []string{"eng"},
		PageSegMode:   3,
		MinConfidence: 0.5,
	}
}

// ApplyTo copies the OCR engine settings onto a parser configuration.
// Engine-level options travel through CustomOptions so only the OCR
// strategy reads them.
func (c *OCRConfig) ApplyTo(pc *parsers.ParserConfiguration) {
	if c == nil || pc == nil {
		return
	}
	if len(c.Languages) > 0 {
		pc.OCRLanguages = append([]string(nil), c.Languages...)
	}
	if pc.CustomOptions == nil {
		pc.CustomOptions = make(map[string]interface{})
	}
	if c.TessdataPrefix != "" {
		pc.CustomOptions["ocr_tessdata_prefix"] = c.TessdataPrefix
	}
	if c.PageSegMode > 0 {
		pc.CustomOptions["ocr_page_seg_mode"] = c.PageSegMode
	}
	if c.MinConfidence > 0 {
		pc.CustomOptions["ocr_min_confidence"] = c.MinConfidence
	}
}

// RemoteConfig represents remote parsing backend configuration
type RemoteConfig struct {
	BaseURL       string        `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`
	APIKey        string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	PollInterval  time.Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`
	MaxPollTime   time.Duration `yaml:"max_poll_time,omitempty" json:"max_poll_time,omitempty"`
	RetryAttempts int           `yaml:"retry_attempts,omitempty" json:"retry_attempts,omitempty" validate:"omitempty,gte=0"`
}

// NewRemoteConfig creates a new remote backend configuration
func NewRemoteConfig() *RemoteConfig {
	return &RemoteConfig{
		Timeout:       30 * time.Second,
		PollInterval:  2 * time.Second,
		MaxPollTime:   5 * time.Minute,
		RetryAttempts: 3,
	}
}

// Options converts the section into the remote parser's option struct.
func (c *RemoteConfig) Options() parsers.RemoteOptions {
	if c == nil {
		return parsers.RemoteOptions{}
	}
	opts := parsers.RemoteOptions{
		BaseURL:      c.BaseURL,
		APIKey:       c.APIKey,
		Timeout:      c.Timeout,
		PollInterval: c.PollInterval,
		MaxPollTime:  c.MaxPollTime,
	}
	if c.RetryAttempts > 0 {
		opts.RetryAttempts = uint(c.RetryAttempts)
	}
	return opts
}

// APIConfig represents API server configuration
type APIConfig struct {
	Host        string        `yaml:"host" json:"host" validate:"required"`
	Port        int           `yaml:"port" json:"port" validate:"required,gt=0"`
	TLSEnabled  bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCert     string        `yaml:"tls_cert,omitempty" json:"tls_cert,omitempty"`
	TLSKey      string        `yaml:"tls_key,omitempty" json:"tls_key,omitempty"`
	CORSEnabled bool          `yaml:"cors_enabled" json:"cors_enabled"`
	CORSOrigins []string      `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`
	RateLimit   int           `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	JWTSecret   string        `yaml:"jwt_secret,omitempty" json:"jwt_secret,omitempty"`
	TokenTTL    time.Duration `yaml:"token_ttl,omitempty" json:"token_ttl,omitempty"`
	MaxUploadMB int           `yaml:"max_upload_mb,omitempty" json:"max_upload_mb,omitempty" validate:"omitempty,gt=0"`
}

// NewAPIConfig creates a new API configuration
func NewAPIConfig() *APIConfig {
	return &APIConfig{
		Host:        "localhost",
		Port:        8080,
		TLSEnabled:  false,
		CORSEnabled: true,
		CORSOrigins: []string{"*"},
		RateLimit:   100,
		Timeout:     30 * time.Second,
		TokenTTL:    24 * time.Hour,
		MaxUploadMB: 64,
	}
}

// FrameworkConfig is the top-level configuration for the framework
type FrameworkConfig struct {
	BaseConfig          `yaml:",inline"`
	LogLevel            string                `yaml:"log_level,omitempty" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogFile             string                `yaml:"log_file,omitempty" json:"log_file,omitempty"`
	Parser              *ParserDefaultsConfig `yaml:"parser,omitempty" json:"parser,omitempty"`
	OCR                 *OCRConfig            `yaml:"ocr,omitempty" json:"ocr,omitempty"`
	Remote              *RemoteConfig         `yaml:"remote,omitempty" json:"remote,omitempty"`
	API                 *APIConfig            `yaml:"api,omitempty" json:"api,omitempty"`
	ExtensionStrategies map[string][]string   `yaml:"extension_strategies,omitempty" json:"extension_strategies,omitempty"`
}

// NewFrameworkConfig creates a fully populated default configuration
func NewFrameworkConfig() *FrameworkConfig {
	return &FrameworkConfig{
		BaseConfig: *NewBaseConfig(),
		LogLevel:   "info",
		Parser:     NewParserDefaultsConfig(),
		OCR:        NewOCRConfig(),
		Remote:     NewRemoteConfig(),
		API:        NewAPIConfig(),
	}
}

// Validate validates the configuration
func (c *FrameworkConfig) Validate() error {
	return validate.Struct(c)
}

// Get retrieves a top-level configuration value by its yaml key
func (c *FrameworkConfig) Get(key string, defaultValue interface{}) interface{} {
	val := reflect.ValueOf(c).Elem()
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanInterface() {
			continue
		}

		tagName := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if tagName == "" {
			tagName = strings.ToLower(fieldType.Name)
		}

		if tagName == key {
			return field.Interface()
		}
	}

	return defaultValue
}

// ExtensionTable converts the configured extension overrides into the
// strategy-typed table the parser factory consumes. Returns nil when no
// overrides are configured so the factory keeps its built-in table.
func (c *FrameworkConfig) ExtensionTable() map[string][]parsers.ParsingStrategy {
	if len(c.ExtensionStrategies) == 0 {
		return nil
	}

	table := make(map[string][]parsers.ParsingStrategy, len(c.ExtensionStrategies))
	for ext, names := range c.ExtensionStrategies {
		strategies := make([]parsers.ParsingStrategy, 0, len(names))
		for _, name := range names {
			strategies = append(strategies, parsers.ParsingStrategy(name))
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		table[strings.ToLower(ext)] = strategies
	}
	return table
}

// FromYAMLFile loads the configuration from a YAML file
func (c *FrameworkConfig) FromYAMLFile(path string) error {
	return loadFile(path, "yaml", c)
}

// FromJSONFile loads the configuration from a JSON file
func (c *FrameworkConfig) FromJSONFile(path string) error {
	return loadFile(path, "json", c)
}

// ToYAMLFile saves the configuration to a YAML file
func (c *FrameworkConfig) ToYAMLFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// ToJSONFile saves the configuration to a JSON file
func (c *FrameworkConfig) ToJSONFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// loadFile reads a config file through viper into target. The decoder is
// pointed at the yaml tags so snake_case keys bind to multiword fields, and
// embedded structs are squashed to keep inline sections at the top level.
func loadFile(path, format string, target interface{}) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(format)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return v.Unmarshal(target, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.Squash = true
	})
}

// Load reads, decodes and validates a configuration file, dispatching on
// the file extension.
func Load(path string) (*FrameworkConfig, error) {
	cfg := NewFrameworkConfig()

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = cfg.FromJSONFile(path)
	case ".yaml", ".yml":
		err = cfg.FromYAMLFile(path)
	default:
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("unsupported config format: %s", filepath.Ext(path)))
	}
	if err != nil {
		return nil, errors.NewConfigInvalidError("failed to load configuration", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigInvalidError("configuration failed validation", err)
	}

	return cfg, nil
}

// ConfigManager provides dynamic key-value access to a configuration file
type ConfigManager struct {
	config map[string]interface{}
	mu     sync.RWMutex
	viper  *viper.Viper
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: make(map[string]interface{}),
		viper:  viper.New(),
	}
}

// Load loads configuration from a file
func (cm *ConfigManager) Load(ctx context.Context, path string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.viper.SetConfigFile(path)

	if err := cm.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cm.config = cm.viper.AllSettings()
	return nil
}

// Get retrieves a configuration value
func (cm *ConfigManager) Get(key string) interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.viper.Get(key)
}

// Set sets a configuration value
func (cm *ConfigManager) Set(key string, value interface{}) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.viper.Set(key, value)
	cm.config[key] = value
	return nil
}

// Save saves configuration to a file
func (cm *ConfigManager) Save(ctx context.Context, path string) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return cm.viper.WriteConfigAs(path)
}

// Watch watches for configuration changes
func (cm *ConfigManager) Watch(ctx context.Context, callback func(key string, value interface{})) error {
	cm.viper.WatchConfig()
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		cm.mu.Lock()
		defer cm.mu.Unlock()

		cm.config = cm.viper.AllSettings()

		for key, value := range cm.config {
			callback(key, value)
		}
	})

	return nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(prefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

// MergeConfigs merges multiple configurations
func MergeConfigs(configs ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	for _, config := range configs {
		for key, value := range config {
			result[key] = value
		}
	}

	return result
}
