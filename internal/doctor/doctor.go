// Package doctor validates the bridge's configuration and environment: the
// external executable, the workspace directory, and the server settings.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apkbridge/apkbridge/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration against the host environment.
type Doctor struct {
	cfg *config.Config
	// lookPath is swappable in tests.
	lookPath func(string) (string, error)
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, lookPath: exec.LookPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.checkApktool(r)
	d.checkWorkspace(r)
	d.checkTimeouts(r)
	d.checkLogLevel(r)
	d.checkAPI(r)
	d.checkHistory(r)
	d.warnUnresolvedEnvVars(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// checkApktool verifies the external executable resolves.
func (d *Doctor) checkApktool(r *Result) {
	path := d.cfg.Apktool.Path
	if path == "" {
		d.addError(r, "apktool", "apktool.path", "apktool.path is required")
		return
	}
	resolved, err := d.lookPath(path)
	if err != nil {
		d.addError(r, "apktool", "apktool.path",
			fmt.Sprintf("apktool executable %q not found or not executable; install apktool or set apktool.path", path))
		return
	}
	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		d.addError(r, "apktool", "apktool.path",
			fmt.Sprintf("apktool.path %q resolves to a directory", path))
	}
}

// checkWorkspace verifies the workspace root is a writable directory. A
// missing directory is fine; the bridge creates it at startup.
func (d *Doctor) checkWorkspace(r *Result) {
	dir := d.cfg.Workspace.Dir
	if dir == "" {
		d.addError(r, "workspace", "workspace.dir", "workspace.dir is required")
		return
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		d.addError(r, "workspace", "workspace.dir",
			fmt.Sprintf("cannot stat workspace dir %q: %v", dir, err))
		return
	}
	if !info.IsDir() {
		d.addError(r, "workspace", "workspace.dir",
			fmt.Sprintf("workspace.dir %q exists but is not a directory", dir))
		return
	}

	probe, err := os.CreateTemp(dir, ".doctor-probe-*")
	if err != nil {
		d.addError(r, "workspace", "workspace.dir",
			fmt.Sprintf("workspace dir %q is not writable: %v", dir, err))
		return
	}
	probe.Close()
	_ = os.Remove(probe.Name())
}

// checkTimeouts verifies the timeout budget is coherent.
func (d *Doctor) checkTimeouts(r *Result) {
	if d.cfg.Timeouts.Process <= 0 {
		d.addError(r, "timeouts", "timeouts.process", "timeouts.process must be positive")
	}
	if d.cfg.Timeouts.Metadata <= 0 {
		d.addError(r, "timeouts", "timeouts.metadata", "timeouts.metadata must be positive")
	}
	if d.cfg.Timeouts.Grace <= 0 {
		d.addError(r, "timeouts", "timeouts.grace", "timeouts.grace must be positive")
	}
	if d.cfg.Timeouts.Metadata > 0 && d.cfg.Timeouts.Process > 0 &&
		d.cfg.Timeouts.Metadata >= d.cfg.Timeouts.Process {
		d.addWarning(r, "timeouts", "timeouts.metadata",
			"metadata timeout is not shorter than the process timeout; metadata calls should be fast")
	}
	if d.cfg.Capture.MaxBytes <= 0 {
		d.addError(r, "capture", "capture.max_bytes", "capture.max_bytes must be positive")
	}
}

func (d *Doctor) checkLogLevel(r *Result) {
	switch strings.ToUpper(d.cfg.Service.LogLevel) {
	case "", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		d.addError(r, "service", "service.log_level",
			fmt.Sprintf("unknown log level %q (expected DEBUG, INFO, WARN, or ERROR)", d.cfg.Service.LogLevel))
	}
}

// checkAPI checks HTTP server settings.
func (d *Doctor) checkAPI(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when the API is enabled")
	}
	if d.cfg.API.APIKey == "" {
		d.addWarning(r, "api", "api.api_key",
			"API enabled but no API key configured; every protected route will reject requests")
	}
}

// checkHistory verifies the invocation log location.
func (d *Doctor) checkHistory(r *Result) {
	if d.cfg.History.Path == "" {
		return
	}
	parent := filepath.Dir(d.cfg.History.Path)
	if info, err := os.Stat(parent); err == nil && !info.IsDir() {
		d.addError(r, "history", "history.path",
			fmt.Sprintf("history.path parent %q is not a directory", parent))
	}
	if d.cfg.History.Retention <= 0 {
		d.addWarning(r, "history", "history.retention",
			"history.retention is not positive; invocation log entries will never be pruned")
	}
}

// warnUnresolvedEnvVars flags ${VAR} references that survived config loading,
// which means the variable was unset at load time.
func (d *Doctor) warnUnresolvedEnvVars(r *Result) {
	envVarRe := regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

	for field, value := range map[string]string{
		"api.api_key":   d.cfg.API.APIKey,
		"apktool.path":  d.cfg.Apktool.Path,
		"workspace.dir": d.cfg.Workspace.Dir,
	} {
		for _, m := range envVarRe.FindAllStringSubmatch(value, -1) {
			d.addWarning(r, "env_vars", field,
				fmt.Sprintf("environment variable ${%s} not set", m[1]))
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
