package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"outlookmcp/pkg/logging"
)

const (
	userConfigDir  = ".config/outlook-mcp"
	configFileName = "config.yaml"
)

// osUserHomeDir is a package variable so tests can point it elsewhere.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPath returns ~/.config/outlook-mcp.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from configPath (a directory containing
// config.yaml, or the file itself) and overlays the process environment.
// An empty configPath means the default user config directory.
func LoadConfig(configPath string) (Config, error) {
	return LoadConfigWithEnv(configPath, nil)
}

// LoadConfigWithEnv is LoadConfig with an explicit environment. A nil map
// means the process environment.
func LoadConfigWithEnv(configPath string, environ map[string]string) (Config, error) {
	config := GetDefaultConfig()

	configFilePath, err := resolveConfigFile(configPath)
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, ConfigurationError{
			FilePath:  configFilePath,
			FileName:  filepath.Base(configFilePath),
			ErrorType: "io",
			Message:   "cannot read configuration file",
			Details:   err.Error(),
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, newParseError(configFilePath, err)
		}
		logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	}

	if err := env.ParseWithOptions(&config, env.Options{Environment: environ}); err != nil {
		return Config{}, ConfigurationError{
			FileName:    "environment",
			ErrorType:   "parse",
			Message:     "invalid environment variable",
			Details:     err.Error(),
			Suggestions: []string{"Boolean variables accept true/false/1/0", "Durations use Go syntax such as 10m or 30s"},
		}
	}

	if err := config.resolvePaths(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func resolveConfigFile(configPath string) (string, error) {
	if configPath == "" {
		dir, err := GetDefaultConfigPath()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, configFileName), nil
	}
	if strings.HasSuffix(configPath, ".yaml") || strings.HasSuffix(configPath, ".yml") {
		return configPath, nil
	}
	return filepath.Join(configPath, configFileName), nil
}

// resolvePaths expands "~" and fills the token directory default.
func (c *Config) resolvePaths() error {
	homeDir, err := osUserHomeDir()
	if err != nil && (c.Tokens.Dir == "" || strings.HasPrefix(c.Tokens.Dir, "~")) {
		return fmt.Errorf("could not determine home directory for token storage: %w", err)
	}

	switch {
	case c.Tokens.Dir == "":
		c.Tokens.Dir = homeDir
	case c.Tokens.Dir == "~":
		c.Tokens.Dir = homeDir
	case strings.HasPrefix(c.Tokens.Dir, "~/"):
		c.Tokens.Dir = filepath.Join(homeDir, c.Tokens.Dir[2:])
	}
	return nil
}
