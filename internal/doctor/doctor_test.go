package doctor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apkbridge/apkbridge/internal/config"
)

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Workspace.Dir = t.TempDir()
	cfg.Apktool.Path = "apktool"
	return cfg
}

func newDoctor(cfg *config.Config, lookPathErr error) *Doctor {
	d := New(cfg)
	d.lookPath = func(name string) (string, error) {
		if lookPathErr != nil {
			return "", lookPathErr
		}
		return "/usr/bin/" + name, nil
	}
	return d
}

func findIssue(issues []Issue, field string) *Issue {
	for i := range issues {
		if issues[i].Field == field {
			return &issues[i]
		}
	}
	return nil
}

func TestValidConfigPasses(t *testing.T) {
	r := newDoctor(validConfig(t), nil).Validate()
	assert.True(t, r.Valid, "unexpected errors: %+v", r.Errors)
	assert.Empty(t, r.Errors)
}

func TestApktoolMissing(t *testing.T) {
	r := newDoctor(validConfig(t), errors.New("not found")).Validate()
	require.False(t, r.Valid)
	issue := findIssue(r.Errors, "apktool.path")
	require.NotNil(t, issue)
	assert.Contains(t, issue.Message, "not found")
}

func TestApktoolPathEmpty(t *testing.T) {
	cfg := validConfig(t)
	cfg.Apktool.Path = ""
	r := newDoctor(cfg, nil).Validate()
	assert.False(t, r.Valid)
	assert.NotNil(t, findIssue(r.Errors, "apktool.path"))
}

func TestWorkspaceDirIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg.Workspace.Dir = file

	r := newDoctor(cfg, nil).Validate()
	require.False(t, r.Valid)
	issue := findIssue(r.Errors, "workspace.dir")
	require.NotNil(t, issue)
	assert.Contains(t, issue.Message, "not a directory")
}

func TestWorkspaceDirMissingIsFine(t *testing.T) {
	cfg := validConfig(t)
	cfg.Workspace.Dir = filepath.Join(t.TempDir(), "does-not-exist-yet")

	r := newDoctor(cfg, nil).Validate()
	assert.True(t, r.Valid)
}

func TestTimeoutChecks(t *testing.T) {
	cfg := validConfig(t)
	cfg.Timeouts.Process = 0
	cfg.Timeouts.Metadata = 0
	cfg.Timeouts.Grace = 0
	cfg.Capture.MaxBytes = 0

	r := newDoctor(cfg, nil).Validate()
	require.False(t, r.Valid)
	assert.NotNil(t, findIssue(r.Errors, "timeouts.process"))
	assert.NotNil(t, findIssue(r.Errors, "timeouts.metadata"))
	assert.NotNil(t, findIssue(r.Errors, "timeouts.grace"))
	assert.NotNil(t, findIssue(r.Errors, "capture.max_bytes"))
}

func TestMetadataLongerThanProcessWarns(t *testing.T) {
	cfg := validConfig(t)
	cfg.Timeouts.Metadata = cfg.Timeouts.Process * 2

	r := newDoctor(cfg, nil).Validate()
	assert.True(t, r.Valid)
	assert.NotNil(t, findIssue(r.Warnings, "timeouts.metadata"))
}

func TestUnknownLogLevel(t *testing.T) {
	cfg := validConfig(t)
	cfg.Service.LogLevel = "LOUD"

	r := newDoctor(cfg, nil).Validate()
	assert.False(t, r.Valid)
	assert.NotNil(t, findIssue(r.Errors, "service.log_level"))
}

func TestAPIEnabledWithoutKeyWarns(t *testing.T) {
	cfg := validConfig(t)
	cfg.API.Enabled = true
	cfg.API.Listen = "127.0.0.1:8722"
	cfg.API.APIKey = ""

	r := newDoctor(cfg, nil).Validate()
	assert.True(t, r.Valid)
	assert.NotNil(t, findIssue(r.Warnings, "api.api_key"))
}

func TestAPIEnabledWithoutListen(t *testing.T) {
	cfg := validConfig(t)
	cfg.API.Enabled = true
	cfg.API.Listen = ""

	r := newDoctor(cfg, nil).Validate()
	assert.False(t, r.Valid)
	assert.NotNil(t, findIssue(r.Errors, "api.listen"))
}

func TestUnresolvedEnvVarWarns(t *testing.T) {
	cfg := validConfig(t)
	cfg.API.Enabled = true
	cfg.API.Listen = "127.0.0.1:8722"
	cfg.API.APIKey = "${APKBRIDGE_MISSING_KEY}"

	r := newDoctor(cfg, nil).Validate()
	issue := findIssue(r.Warnings, "api.api_key")
	require.NotNil(t, issue)
	assert.Contains(t, issue.Message, "APKBRIDGE_MISSING_KEY")
}

func TestFormatHuman(t *testing.T) {
	r := &Result{Valid: true}
	assert.Equal(t, "Configuration valid.\n", FormatHuman(r))

	r = &Result{
		Errors:   []Issue{{Category: "apktool", Field: "apktool.path", Message: "not found"}},
		Warnings: []Issue{{Category: "api", Message: "no key"}},
	}
	out := FormatHuman(r)
	assert.True(t, strings.Contains(out, "ERROR [apktool] apktool.path: not found"))
	assert.True(t, strings.Contains(out, "WARN  [api] no key"))
}

func TestFormatJSON(t *testing.T) {
	out, err := FormatJSON(&Result{Valid: true})
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)
}
