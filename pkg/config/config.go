package config

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ssargent/podkit/pkg/pod"
	"github.com/ssargent/podkit/pkg/podlog"
	"gopkg.in/yaml.v3"
)

// Config represents the podkit configuration
type Config struct {
	Format  Format  `yaml:"format"`
	Store   Store   `yaml:"store"`
	Log     Log     `yaml:"log"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Format holds the wire parameters producer and consumer must agree on
type Format struct {
	ByteOrder string            `yaml:"byte_order"`
	MaxDepth  int               `yaml:"max_depth"`
	Types     map[string]uint32 `yaml:"types,omitempty"`
}

// Store configures the pebble-backed pod store
type Store struct {
	DataDir string `yaml:"data_dir"`
}

// Log configures the append-only pod log
type Log struct {
	Path          string        `yaml:"path"`
	FsyncInterval time.Duration `yaml:"fsync_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Compression   string        `yaml:"compression"`
}

// Server contains HTTP API configuration
type Server struct {
	Bind   string `yaml:"bind"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Format: Format{
			ByteOrder: "little",
			MaxDepth:  pod.MaxDepth,
		},
		Store: Store{
			DataDir: "./data",
		},
		Log: Log{
			Path:        "./data/pods.log",
			BufferSize:  4096,
			Compression: "none",
		},
		Server: Server{
			Bind:   "127.0.0.1",
			Port:   9300,
			APIKey: "auto",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// FillDefaults sets any zero-value fields to their default values
func (c *Config) FillDefaults() {
	def := DefaultConfig()
	if c.Format.ByteOrder == "" {
		c.Format.ByteOrder = def.Format.ByteOrder
	}
	if c.Format.MaxDepth == 0 {
		c.Format.MaxDepth = def.Format.MaxDepth
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = def.Store.DataDir
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(c.Store.DataDir, "pods.log")
	}
	if c.Log.BufferSize == 0 {
		c.Log.BufferSize = def.Log.BufferSize
	}
	if c.Log.Compression == "" {
		c.Log.Compression = def.Log.Compression
	}
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.APIKey == "" {
		c.Server.APIKey = def.Server.APIKey
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate checks the configuration for values the codec cannot honour
func (c *Config) Validate() error {
	if _, err := c.Format.Options(); err != nil {
		return err
	}
	if _, err := podlog.ParseCompression(c.Log.Compression); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	return nil
}

// ByteOrderOf resolves a byte order name
func ByteOrderOf(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "little", "le", "little-endian":
		return binary.LittleEndian, nil
	case "big", "be", "big-endian":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("invalid byte order %q", name)
}

// TypeMap builds the pod type numbering with any configured overrides
func (f Format) TypeMap() (*pod.TypeMap, error) {
	if len(f.Types) == 0 {
		return pod.DefaultTypes, nil
	}
	overrides := make(map[pod.Kind]uint32, len(f.Types))
	for name, id := range f.Types {
		kind, err := pod.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("format.types: %w", err)
		}
		overrides[kind] = id
	}
	types, err := pod.NewTypeMap(overrides)
	if err != nil {
		return nil, fmt.Errorf("format.types: %w", err)
	}
	return types, nil
}

// Options converts the format section into codec options
func (f Format) Options() ([]pod.Option, error) {
	order, err := ByteOrderOf(f.ByteOrder)
	if err != nil {
		return nil, err
	}
	if f.MaxDepth != 0 && (f.MaxDepth < 1 || f.MaxDepth > pod.MaxDepth) {
		return nil, fmt.Errorf("invalid max depth %d: must be between 1 and %d", f.MaxDepth, pod.MaxDepth)
	}
	types, err := f.TypeMap()
	if err != nil {
		return nil, err
	}
	return []pod.Option{
		pod.WithByteOrder(order),
		pod.WithMaxDepth(f.MaxDepth),
		pod.WithTypes(types),
	}, nil
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.FillDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return &config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// the file may carry the API key
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a new configuration with a generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.Store.DataDir = dataDir
		config.Log.Path = filepath.Join(dataDir, "pods.log")
	}

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./podkit.yaml"
	}

	return filepath.Join(homeDir, ".config", "podkit", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
