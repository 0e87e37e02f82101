package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "lineal.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "lineal.yml"

// defaults are the built-in configuration values.
var defaults = map[string]any{
	"state_path":     "lineal.db",
	"log_level":      "info",
	"workers":        4,
	"strict":         false,
	"retry_attempts": 3,
}

// Load builds the configuration for the given working directory. The
// project file is searched from dir upward. flags may be nil.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, err
	}

	if configPath := findConfigFile(FindProjectRoot(dir)); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// LINEAL_STATE_PATH -> state_path
	err := k.Load(env.Provider("LINEAL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LINEAL_"))
	}), nil)
	if err != nil {
		return nil, err
	}

	// --state-path -> state_path
	if flags != nil {
		p := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func findConfigFile(dir string) string {
	if dir == "" {
		return ""
	}
	yamlPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}

	ymlPath := filepath.Join(dir, ConfigFileNameAlt)
	if _, err := os.Stat(ymlPath); err == nil {
		return ymlPath
	}

	return ""
}

// FindProjectRoot walks up from the given directory to find a directory
// containing lineal.yaml or lineal.yml. Falls back to startDir when no
// project file exists anywhere up the tree.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if findConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
