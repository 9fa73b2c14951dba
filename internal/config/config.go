package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models taskline.yml.
type Config struct {
	Server struct {
		Bind     string `yaml:"bind"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret         string `yaml:"jwt_secret"`
		AllowLegacyHeader bool   `yaml:"allow_legacy_header"`
	} `yaml:"auth"`
	Listing struct {
		DefaultLimit    int  `yaml:"default_limit"`
		IncludeArchived bool `yaml:"include_archived"`
	} `yaml:"listing"`
	Roles struct {
		Privileged []string `yaml:"privileged"`
	} `yaml:"roles"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with tl config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Listing.DefaultLimit < 0 {
		return fmt.Errorf("config.listing.default_limit must not be negative")
	}
	if c.Server.BasePath == "" {
		return fmt.Errorf("config.server.base_path is required")
	}
	for _, role := range c.Roles.Privileged {
		if role == "" {
			return fmt.Errorf("config.roles.privileged contains empty role")
		}
	}
	return nil
}

// DefaultLimit returns the listing page size, falling back when unset.
func (c *Config) DefaultLimit() int {
	if c == nil || c.Listing.DefaultLimit == 0 {
		return 50
	}
	return c.Listing.DefaultLimit
}

// PrivilegedRoles returns the roles allowed to assign tasks and manage
// project task lists.
func (c *Config) PrivilegedRoles() []string {
	if c == nil || len(c.Roles.Privileged) == 0 {
		return []string{"Executive", "PA", "COO", "PM"}
	}
	return c.Roles.Privileged
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  bind: 127.0.0.1:8787
  base_path: /v0

auth:
  jwt_secret: ""
  allow_legacy_header: true

listing:
  default_limit: 50
  include_archived: false

roles:
  privileged: [Executive, PA, COO, PM]
`
