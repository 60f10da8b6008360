package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		Service: ServiceConfig{
			Name:     "apkbridge",
			LogLevel: "INFO",
		},
		Workspace: WorkspaceConfig{
			Dir: filepath.Join(home, "apkbridge_workspace"),
		},
		Apktool: ApktoolConfig{
			Path: "apktool",
		},
		Timeouts: TimeoutsConfig{
			Process:  300 * time.Second,
			Metadata: 30 * time.Second,
			Grace:    5 * time.Second,
		},
		Capture: CaptureConfig{
			MaxBytes: 64 * 1024,
		},
		History: HistoryConfig{
			Retention: 7 * 24 * time.Hour,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8722",
		},
	}
}

// Load reads and parses configuration from a file, applying defaults for any
// field the file leaves unset. `${VAR}` references are expanded from the
// environment before parsing.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	expanded := expandEnvVars(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}

	applyDerivedDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Discover finds a config file by checking standard locations.
// Priority order: $APKBRIDGE_CONFIG, ~/.config/apkbridge/config.yaml.
// An empty return means "run on defaults".
func Discover() string {
	if path := os.Getenv("APKBRIDGE_CONFIG"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(homeDir, ".config", "apkbridge", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// LoadOrDefaults loads the given path, falling back to discovery and finally
// to built-in defaults when no config file exists anywhere.
func LoadOrDefaults(configPath string) (*Config, error) {
	if configPath != "" {
		return Load(configPath)
	}
	if discovered := Discover(); discovered != "" {
		return Load(discovered)
	}
	cfg := Defaults()
	applyDerivedDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// applyDerivedDefaults fills fields whose defaults depend on other fields.
func applyDerivedDefaults(cfg *Config) {
	if cfg.History.Path == "" && cfg.Workspace.Dir != "" {
		cfg.History.Path = filepath.Join(cfg.Workspace.Dir, "apkbridge.db")
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Workspace.Dir) == "" {
		return fmt.Errorf("workspace.dir must not be empty")
	}
	if strings.TrimSpace(cfg.Apktool.Path) == "" {
		return fmt.Errorf("apktool.path must not be empty")
	}
	if cfg.Timeouts.Process <= 0 {
		return fmt.Errorf("timeouts.process must be positive")
	}
	if cfg.Timeouts.Metadata <= 0 {
		return fmt.Errorf("timeouts.metadata must be positive")
	}
	if cfg.Timeouts.Grace <= 0 {
		return fmt.Errorf("timeouts.grace must be positive")
	}
	if cfg.Capture.MaxBytes <= 0 {
		return fmt.Errorf("capture.max_bytes must be positive")
	}
	if cfg.API.Enabled && strings.TrimSpace(cfg.API.Listen) == "" {
		return fmt.Errorf("api.listen must be set when api.enabled is true")
	}
	return nil
}
