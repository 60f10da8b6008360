package apktool

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apkbridge/apkbridge/internal/protocol"
	"github.com/apkbridge/apkbridge/internal/runner"
	"github.com/apkbridge/apkbridge/internal/tool"
)

var packagePattern = regexp.MustCompile(`package="([^"]+)"`)

// listProjects enumerates apktool projects under the workspace root.
func (s *Service) listProjects(_ context.Context, _ *tool.Invocation) (map[string]any, error) {
	baseDir := s.workspaces.BaseDir()

	entries, err := os.ReadDir(baseDir)
	if os.IsNotExist(err) {
		return map[string]any{"projects": []any{}, "workspace": baseDir, "count": 0}, nil
	}
	if err != nil {
		return nil, protocol.WrapError(protocol.KindInternal, err,
			"read workspace root: %v", err)
	}

	projects := make([]any, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(baseDir, entry.Name())
		manifestPath := filepath.Join(dir, "AndroidManifest.xml")
		hasManifest := fileExists(manifestPath)
		hasApktoolYML := fileExists(filepath.Join(dir, "apktool.yml"))
		if !hasManifest && !hasApktoolYML {
			continue
		}

		info := map[string]any{
			"name":            entry.Name(),
			"path":            dir,
			"has_manifest":    hasManifest,
			"has_apktool_yml": hasApktoolYML,
		}
		if hasManifest {
			if pkg := packageNameFromManifest(manifestPath); pkg != "" {
				info["package_name"] = pkg
			}
		}
		projects = append(projects, info)
	}

	return map[string]any{
		"projects":  projects,
		"workspace": baseDir,
		"count":     len(projects),
	}, nil
}

// getManifest returns the AndroidManifest.xml of a decoded project.
func (s *Service) getManifest(_ context.Context, inv *tool.Invocation) (map[string]any, error) {
	manifestPath := filepath.Join(inv.Workspace.DecodeDir(), "AndroidManifest.xml")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, protocol.WrapError(protocol.KindPathNotFound, err,
			"AndroidManifest.xml not found in %s", inv.Workspace.DecodeDir())
	}

	result := map[string]any{
		"manifest": string(data),
		"path":     manifestPath,
	}
	if pkg := packagePattern.FindSubmatch(data); pkg != nil {
		result["package_name"] = string(pkg[1])
	}
	return result, nil
}

// cleanProject removes build/ and dist/ so the next build starts fresh.
func (s *Service) cleanProject(_ context.Context, inv *tool.Invocation) (map[string]any, error) {
	projectDir := inv.Workspace.DecodeDir()

	cleaned := make([]string, 0, 2)
	for _, name := range []string{"build", "dist"} {
		dir := filepath.Join(projectDir, name)
		if !fileExists(dir) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return nil, protocol.WrapError(protocol.KindInternal, err,
				"remove %s: %v", dir, err)
		}
		cleaned = append(cleaned, name)
	}

	return map[string]any{
		"cleaned": cleaned,
		"count":   len(cleaned),
	}, nil
}

// deleteProject removes a decoded project directory and evicts its workspace
// record. Without force, directories that no longer carry an apktool.yml are
// refused.
func (s *Service) deleteProject(_ context.Context, inv *tool.Invocation) (map[string]any, error) {
	ws := inv.Workspace
	projectDir := ws.DecodeDir()

	if !inv.Args.BoolOr("force", false) && !fileExists(filepath.Join(projectDir, "apktool.yml")) {
		return nil, protocol.NewError(protocol.KindInvalidPrecond,
			"%s does not look like an apktool project; pass force to delete anyway", projectDir)
	}

	if err := os.RemoveAll(projectDir); err != nil {
		return nil, protocol.WrapError(protocol.KindInternal, err,
			"delete project %s: %v", projectDir, err)
	}

	s.workspaces.Remove(ws)
	s.logger.Info("deleted project", "dir", projectDir)

	return map[string]any{
		"deleted": projectDir,
	}, nil
}

// version runs `apktool --version`, doubling as a liveness probe for the
// external binary.
func (s *Service) version(ctx context.Context, _ *tool.Invocation) (map[string]any, error) {
	out, err := s.runner.Run(ctx, runner.Invocation{
		Executable: s.executable,
		Args:       []string{"--version"},
		Timeout:    s.metadataTimeout,
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"version": strings.TrimSpace(out.Stdout),
	}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func packageNameFromManifest(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if m := packagePattern.FindSubmatch(data); m != nil {
		return string(m[1])
	}
	return ""
}
