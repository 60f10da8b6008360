package apktool

import (
	"context"

	"github.com/apkbridge/apkbridge/internal/runner"
	"github.com/apkbridge/apkbridge/internal/tool"
)

// decode runs `apktool d <apk> -o <dir>`. The dispatcher has already moved
// the workspace to Decoding under the exclusive lock; a nil return moves it
// to Decoded.
func (s *Service) decode(ctx context.Context, inv *tool.Invocation) (map[string]any, error) {
	ws := inv.Workspace
	apkPath := ws.SourcePath()
	outDir := s.workspaces.DecodeDirFor(apkPath)

	args := []string{"d", apkPath, "-o", outDir}
	if inv.Args.BoolOr("force", true) {
		args = append(args, "-f")
	}
	if inv.Args.BoolOr("no_res", false) {
		args = append(args, "-r")
	}
	if inv.Args.BoolOr("no_src", false) {
		args = append(args, "-s")
	}

	fingerprint, err := Fingerprint(apkPath)
	if err != nil {
		return nil, err
	}
	ws.SetFingerprint(fingerprint)

	// Claim the output directory up front so reads targeting it while the
	// decode is in flight hit this workspace's lock, not a fresh record.
	s.workspaces.AdoptDecodeDir(ws, outDir)

	s.logger.Info("decoding APK", "apk", apkPath, "out", outDir)

	out, err := s.runner.Run(ctx, runner.Invocation{
		Executable: s.executable,
		Args:       args,
		Timeout:    s.processTimeout,
	})
	if err != nil {
		return nil, err
	}

	// Re-canonicalize now that the directory exists on disk.
	s.workspaces.AdoptDecodeDir(ws, outDir)

	return map[string]any{
		"decode_dir":  ws.DecodeDir(),
		"fingerprint": fingerprint,
		"duration_ms": out.Duration.Milliseconds(),
	}, nil
}
