package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apkbridge/apkbridge/internal/protocol"
)

// Registry maps canonical APK source paths to workspace records. Records are
// created lazily on first reference, grow monotonically for the process
// lifetime, and carry their own locks so unrelated APKs never serialize.
type Registry struct {
	mu      sync.Mutex
	byPath  map[string]*Workspace // canonical source path -> workspace
	byDir   map[string]*Workspace // canonical decode dir -> workspace
	baseDir string
}

// NewRegistry creates a registry whose decode directories live under baseDir.
func NewRegistry(baseDir string) *Registry {
	return &Registry{
		byPath:  make(map[string]*Workspace),
		byDir:   make(map[string]*Workspace),
		baseDir: filepath.Clean(baseDir),
	}
}

// BaseDir returns the workspace root under which decode output lives.
func (r *Registry) BaseDir() string {
	return r.baseDir
}

// GetOrCreate returns the workspace for sourcePath, creating one in Unopened
// state on first reference. The path is canonicalized (absolute, symlinks
// resolved) so two spellings of the same APK share one record.
func (r *Registry) GetOrCreate(sourcePath string) (*Workspace, error) {
	canonical, err := canonicalize(sourcePath)
	if err != nil {
		return nil, protocol.WrapError(protocol.KindPathNotFound, err,
			"APK file not found: %s", sourcePath)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.byPath[canonical]; ok {
		return ws, nil
	}

	ws := &Workspace{
		sourcePath: canonical,
		state:      StateUnopened,
		updatedAt:  time.Now(),
	}
	r.byPath[canonical] = ws
	return ws, nil
}

// ByProjectDir resolves a decode directory back to its workspace. Directories
// unknown to this process that contain an apktool.yml are adopted in Decoded
// state, reconstructing workspace records after a restart.
func (r *Registry) ByProjectDir(dir string) (*Workspace, error) {
	canonical, err := canonicalize(dir)
	if err != nil {
		return nil, protocol.WrapError(protocol.KindPathNotFound, err,
			"project directory not found: %s", dir)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.byDir[canonical]; ok {
		return ws, nil
	}

	if !isDecodedProject(canonical) {
		return nil, protocol.NewError(protocol.KindPathNotFound,
			"%s is not a decoded apktool project (no apktool.yml)", dir)
	}

	ws := &Workspace{
		decodeDir:   canonical,
		state:       StateDecoded,
		decodedOnce: true,
		updatedAt:   time.Now(),
	}
	r.byDir[canonical] = ws
	return ws, nil
}

// AdoptDecodeDir records dir as the decode output of ws and indexes it for
// ByProjectDir lookups. Called on successful decode.
func (r *Registry) AdoptDecodeDir(ws *Workspace, dir string) {
	canonical := dir
	if resolved, err := canonicalize(dir); err == nil {
		canonical = resolved
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ws.SetDecodeDir(canonical)
	r.byDir[canonical] = ws
}

// Remove drops a workspace record, typically after its project directory was
// deleted. The on-disk source APK is untouched.
func (r *Registry) Remove(ws *Workspace) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := ws.Snapshot()
	if snap.SourcePath != "" {
		delete(r.byPath, snap.SourcePath)
	}
	if snap.DecodeDir != "" {
		delete(r.byDir, snap.DecodeDir)
	}
}

// DecodeDirFor returns the directory a decode of sourcePath writes into:
// the workspace root joined with the APK base name minus its extension.
func (r *Registry) DecodeDirFor(sourcePath string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(r.baseDir, stem)
}

// Snapshots returns a copy of every known workspace's observable fields.
func (r *Registry) Snapshots() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[*Workspace]bool, len(r.byPath))
	out := make([]Info, 0, len(r.byPath)+len(r.byDir))
	for _, ws := range r.byPath {
		seen[ws] = true
		out = append(out, ws.Snapshot())
	}
	for _, ws := range r.byDir {
		if !seen[ws] {
			out = append(out, ws.Snapshot())
		}
	}
	return out
}

// canonicalize resolves path to an absolute, symlink-free form.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

func isDecodedProject(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "apktool.yml"))
	return err == nil && info.Mode().IsRegular()
}
