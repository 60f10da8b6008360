package workspace

import (
	"path/filepath"
	"strings"

	"github.com/apkbridge/apkbridge/internal/protocol"
)

// ResolveInside resolves rel against root and confirms the result stays
// inside root. Escapes are a security boundary, not a convenience check:
// both lexical traversal (../..) and symlink hops out of the tree are
// rejected with PathTraversal. The returned path may name a file that does
// not exist yet, as long as it would land inside root.
func ResolveInside(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", protocol.NewError(protocol.KindPathTraversal,
			"path %q must be relative to the project directory", rel)
	}

	rootResolved, err := canonicalize(root)
	if err != nil {
		return "", protocol.WrapError(protocol.KindPathNotFound, err,
			"project directory not found: %s", root)
	}

	candidate := filepath.Join(rootResolved, rel)
	if !within(rootResolved, candidate) {
		return "", protocol.NewError(protocol.KindPathTraversal,
			"path %q escapes the project directory", rel)
	}

	// The lexical check above is not enough: a symlink inside the tree can
	// point anywhere. Resolve the candidate (or, for files being created,
	// its parent) and re-check containment.
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		if !within(rootResolved, resolved) {
			return "", protocol.NewError(protocol.KindPathTraversal,
				"path %q resolves outside the project directory", rel)
		}
		return resolved, nil
	}

	parent := filepath.Dir(candidate)
	if resolvedParent, err := filepath.EvalSymlinks(parent); err == nil {
		if !within(rootResolved, resolvedParent) {
			return "", protocol.NewError(protocol.KindPathTraversal,
				"path %q resolves outside the project directory", rel)
		}
		return filepath.Join(resolvedParent, filepath.Base(candidate)), nil
	}

	// Deeper ancestors missing too; the caller's I/O will surface the error.
	return candidate, nil
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
