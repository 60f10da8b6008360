package apktool

import (
	"context"
	"os"
	"path/filepath"

	"github.com/apkbridge/apkbridge/internal/runner"
	"github.com/apkbridge/apkbridge/internal/tool"
)

// build runs `apktool b <project>`. The dispatcher rejects builds before a
// successful decode via the Building transition edge.
func (s *Service) build(ctx context.Context, inv *tool.Invocation) (map[string]any, error) {
	ws := inv.Workspace
	projectDir := ws.DecodeDir()

	outputAPK := inv.Args.StringOr("output_apk", "")
	if outputAPK == "" {
		outputAPK = filepath.Join(projectDir, "dist", filepath.Base(projectDir)+".apk")
	}

	args := []string{"b", projectDir, "-o", outputAPK}
	if inv.Args.BoolOr("debug", false) {
		args = append(args, "-d")
	}
	if inv.Args.BoolOr("force_all", false) {
		args = append(args, "-f")
	}

	s.logger.Info("building APK", "project", projectDir, "out", outputAPK)

	out, err := s.runner.Run(ctx, runner.Invocation{
		Executable: s.executable,
		Args:       args,
		Timeout:    s.processTimeout,
	})
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"output_apk_path": outputAPK,
		"duration_ms":     out.Duration.Milliseconds(),
	}
	if _, err := os.Stat(outputAPK); err != nil {
		// apktool reported success but the artifact is not where expected;
		// surface it rather than guessing.
		result["warning"] = "build succeeded but APK not found at expected path"
	}
	return result, nil
}
