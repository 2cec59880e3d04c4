package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources   Sources   `yaml:"sources"`
	Labelling Labelling `yaml:"labelling"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

type Sources struct {
	// Names are the newspaper identifiers tasks are routed across.
	Names []string `yaml:"names"`
	Feeds []Feed   `yaml:"feeds"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Labelling struct {
	ConsensusThreshold  float64 `yaml:"consensus_threshold"`
	CountThreshold      int     `yaml:"count_threshold"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	ArticleLoads        int     `yaml:"article_loads"`
	MinParagraphLength  int     `yaml:"min_paragraph_length"`
	TestFraction        float64 `yaml:"test_fraction"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
	// AdminKeyEnv names the environment variable holding the admin key.
	AdminKeyEnv string `yaml:"admin_key_env"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for quotelab.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "quotelab")
}

// DataDir returns the XDG data directory for quotelab.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "quotelab")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/quotelab/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'quotelab init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Labelling: Labelling{
			ConsensusThreshold:  0.75,
			CountThreshold:      4,
			ConfidenceThreshold: 0.8,
			ArticleLoads:        10,
			MinParagraphLength:  2,
			TestFraction:        0.1,
		},
		Server:  Server{Port: 8000, AdminKeyEnv: "QUOTELAB_ADMIN_KEY"},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// AdminKey returns the admin key from the configured environment variable,
// or empty when none is set.
func (c *Config) AdminKey() string {
	if c.Server.AdminKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Server.AdminKeyEnv)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
