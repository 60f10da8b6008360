package config

import "time"

// Config represents the complete apkbridge configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Apktool   ApktoolConfig   `yaml:"apktool"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts,omitempty"`
	Capture   CaptureConfig   `yaml:"capture,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	API       APIConfig       `yaml:"api,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// WorkspaceConfig defines where decoded projects live.
type WorkspaceConfig struct {
	// Dir is the root under which decode output directories are created.
	Dir string `yaml:"dir"`
}

// ApktoolConfig locates the external decode/build executable.
type ApktoolConfig struct {
	// Path is the apktool executable; a bare name is resolved via PATH.
	Path string `yaml:"path"`
}

// TimeoutsConfig defines per-tool-class timeouts.
// Process tools (decode/build) run the external executable and default much
// higher than metadata tools (list/read/search).
type TimeoutsConfig struct {
	Process  time.Duration `yaml:"process"`
	Metadata time.Duration `yaml:"metadata"`
	// Grace is the window between SIGTERM and SIGKILL on timeout or cancel.
	Grace time.Duration `yaml:"grace"`
}

// CaptureConfig bounds subprocess output retention.
type CaptureConfig struct {
	// MaxBytes caps each captured stream; output past the cap is dropped and
	// a truncation marker appended.
	MaxBytes int `yaml:"max_bytes"`
}

// HistoryConfig defines the invocation log database.
type HistoryConfig struct {
	// Path of the SQLite database. Empty means <workspace.dir>/apkbridge.db.
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// APIKey is an optional bearer token; empty disables auth.
	APIKey string `yaml:"api_key"`
}
