package apktool

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/apkbridge/apkbridge/internal/protocol"
	"github.com/apkbridge/apkbridge/internal/tool"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

// listResources walks the project's res/ tree and returns project-relative
// paths in sorted order, so repeated calls over an unchanged tree are
// byte-identical.
func (s *Service) listResources(_ context.Context, inv *tool.Invocation) (map[string]any, error) {
	projectDir := inv.Workspace.DecodeDir()
	resDir := filepath.Join(projectDir, "res")

	if _, err := os.Stat(resDir); err != nil {
		return nil, protocol.WrapError(protocol.KindPathNotFound, err,
			"resources directory not found: %s (decoded with no_res?)", resDir)
	}

	glob := inv.Args.StringOr("glob", "")
	var paths []string
	err := filepath.WalkDir(resDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(resDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if glob != "" && !matchGlob(glob, rel) {
			return nil
		}
		paths = append(paths, path.Join("res", rel))
		return nil
	})
	if err != nil {
		return nil, protocol.WrapError(protocol.KindInternal, err,
			"walk resources: %v", err)
	}

	sort.Strings(paths)
	return map[string]any{
		"paths": paths,
		"count": len(paths),
	}, nil
}

// matchGlob matches pattern against the res-relative path; a bare pattern
// without a separator matches against the file name alone.
func matchGlob(pattern, rel string) bool {
	target := rel
	if !strings.Contains(pattern, "/") {
		target = path.Base(rel)
	}
	ok, err := path.Match(pattern, target)
	return err == nil && ok
}

// readFile returns the content of a text file inside the decode directory.
func (s *Service) readFile(_ context.Context, inv *tool.Invocation) (map[string]any, error) {
	resolved, err := workspace.ResolveInside(inv.Workspace.DecodeDir(), inv.Args.String("relative_path"))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, protocol.WrapError(protocol.KindPathNotFound, err,
				"file not found: %s", inv.Args.String("relative_path"))
		}
		return nil, protocol.WrapError(protocol.KindInternal, err,
			"read %s: %v", resolved, err)
	}

	if !utf8.Valid(data) {
		return nil, protocol.NewError(protocol.KindInvalidArguments,
			"%s appears to be binary and cannot be read as text", inv.Args.String("relative_path")).
			WithDetail("is_binary", true).
			WithDetail("size", len(data))
	}

	return map[string]any{
		"content": string(data),
		"size":    len(data),
	}, nil
}

// writeFile replaces (or creates) a file inside the decode directory.
func (s *Service) writeFile(_ context.Context, inv *tool.Invocation) (map[string]any, error) {
	resolved, err := workspace.ResolveInside(inv.Workspace.DecodeDir(), inv.Args.String("relative_path"))
	if err != nil {
		return nil, err
	}

	content := []byte(inv.Args.String("content"))
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, protocol.WrapError(protocol.KindInternal, err,
			"create parent directory: %v", err)
	}
	if err := os.WriteFile(resolved, content, 0o644); err != nil {
		return nil, protocol.WrapError(protocol.KindInternal, err,
			"write %s: %v", resolved, err)
	}

	return map[string]any{
		"path":         inv.Args.String("relative_path"),
		"bytesWritten": len(content),
	}, nil
}

// searchFiles does a bounded substring search across project files with the
// requested extensions.
func (s *Service) searchFiles(_ context.Context, inv *tool.Invocation) (map[string]any, error) {
	projectDir := inv.Workspace.DecodeDir()
	pattern := inv.Args.String("pattern")
	maxResults := inv.Args.IntOr("max_results", 100)

	extensions := strings.Split(inv.Args.StringOr("extensions", ".smali,.xml"), ",")
	for i := range extensions {
		extensions[i] = strings.TrimSpace(extensions[i])
	}

	var matches []string
	truncated := false
	err := filepath.WalkDir(projectDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if len(matches) >= maxResults {
			truncated = true
			return fs.SkipAll
		}
		if !hasAnyExtension(d.Name(), extensions) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if !utf8.Valid(data) {
			return nil
		}
		if strings.Contains(string(data), pattern) {
			rel, err := filepath.Rel(projectDir, p)
			if err != nil {
				return err
			}
			matches = append(matches, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, protocol.WrapError(protocol.KindInternal, err,
			"search project files: %v", err)
	}

	return map[string]any{
		"matches":     matches,
		"count":       len(matches),
		"max_reached": truncated,
	}, nil
}

func hasAnyExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if ext != "" && strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
