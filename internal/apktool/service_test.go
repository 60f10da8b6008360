package apktool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apkbridge/apkbridge/internal/config"
	"github.com/apkbridge/apkbridge/internal/log"
	"github.com/apkbridge/apkbridge/internal/protocol"
	"github.com/apkbridge/apkbridge/internal/runner"
	"github.com/apkbridge/apkbridge/internal/runner/mocks"
	"github.com/apkbridge/apkbridge/internal/tool"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func newTestService(t *testing.T, r runner.Runner) (*Service, *workspace.Registry) {
	t.Helper()

	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Workspace.Dir = base
	cfg.Apktool.Path = "apktool"
	cfg.Timeouts.Process = 30 * time.Second
	cfg.Timeouts.Metadata = 5 * time.Second

	ws := workspace.NewRegistry(base)
	return NewService(cfg, r, ws), ws
}

// makeProject lays down a minimal decoded project tree and returns its
// adopted workspace.
func makeProject(t *testing.T, reg *workspace.Registry, name string) (*workspace.Workspace, string) {
	t.Helper()

	dir := filepath.Join(reg.BaseDir(), name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "res", "values"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "apktool.yml"), []byte("version: 2.9.0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AndroidManifest.xml"),
		[]byte(`<manifest package="com.example.app"/>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "res", "values", "strings.xml"),
		[]byte("<resources/>"), 0o644))

	ws, err := reg.ByProjectDir(dir)
	require.NoError(t, err)
	return ws, dir
}

func invocation(ws *workspace.Workspace, args map[string]any) *tool.Invocation {
	return &tool.Invocation{Args: tool.Args(args), Workspace: ws}
}

func TestDecodeArgumentConstruction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mr := mocks.NewMockRunner(ctrl)
	svc, reg := newTestService(t, mr)

	apk := filepath.Join(reg.BaseDir(), "app.apk")
	require.NoError(t, os.WriteFile(apk, []byte("PK\x03\x04payload"), 0o644))
	ws, err := reg.GetOrCreate(apk)
	require.NoError(t, err)

	var got runner.Invocation
	mr.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inv runner.Invocation) (runner.Outcome, error) {
			got = inv
			return runner.Outcome{Duration: 42 * time.Millisecond}, nil
		})

	result, err := svc.decode(context.Background(), invocation(ws, map[string]any{
		"no_res": true,
	}))
	require.NoError(t, err)

	expectedDir := filepath.Join(reg.BaseDir(), "app")
	assert.Equal(t, []string{"d", apk, "-o", expectedDir, "-f", "-r"}, got.Args)
	assert.Equal(t, "apktool", got.Executable)
	assert.Equal(t, 30*time.Second, got.Timeout)

	assert.Equal(t, expectedDir, result["decode_dir"])
	assert.NotEmpty(t, result["fingerprint"])
	assert.Equal(t, result["fingerprint"], ws.Snapshot().Fingerprint)
}

func TestDecodeForceDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mr := mocks.NewMockRunner(ctrl)
	svc, reg := newTestService(t, mr)

	apk := filepath.Join(reg.BaseDir(), "app.apk")
	require.NoError(t, os.WriteFile(apk, []byte("PK"), 0o644))
	ws, err := reg.GetOrCreate(apk)
	require.NoError(t, err)

	mr.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inv runner.Invocation) (runner.Outcome, error) {
			assert.NotContains(t, inv.Args, "-f")
			assert.Contains(t, inv.Args, "-s")
			return runner.Outcome{}, nil
		})

	_, err = svc.decode(context.Background(), invocation(ws, map[string]any{
		"force":  false,
		"no_src": true,
	}))
	require.NoError(t, err)
}

func TestDecodeRunnerErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mr := mocks.NewMockRunner(ctrl)
	svc, reg := newTestService(t, mr)

	apk := filepath.Join(reg.BaseDir(), "app.apk")
	require.NoError(t, os.WriteFile(apk, []byte("PK"), 0o644))
	ws, err := reg.GetOrCreate(apk)
	require.NoError(t, err)

	mr.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(runner.Outcome{ExitCode: 1}, protocol.NewError(protocol.KindProcessFailure, "apktool exited with code 1"))

	_, err = svc.decode(context.Background(), invocation(ws, map[string]any{}))
	require.Error(t, err)
	assert.Equal(t, protocol.KindProcessFailure, protocol.KindOf(err))
}

func TestBuildDefaultOutputPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mr := mocks.NewMockRunner(ctrl)
	svc, reg := newTestService(t, mr)
	ws, dir := makeProject(t, reg, "app")

	expectedOut := filepath.Join(dir, "dist", "app.apk")
	mr.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inv runner.Invocation) (runner.Outcome, error) {
			assert.Equal(t, []string{"b", dir, "-o", expectedOut}, inv.Args)
			require.NoError(t, os.MkdirAll(filepath.Dir(expectedOut), 0o755))
			require.NoError(t, os.WriteFile(expectedOut, []byte("apk"), 0o644))
			return runner.Outcome{}, nil
		})

	result, err := svc.build(context.Background(), invocation(ws, map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, expectedOut, result["output_apk_path"])
	assert.NotContains(t, result, "warning")
}

func TestBuildFlagsAndMissingArtifactWarning(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mr := mocks.NewMockRunner(ctrl)
	svc, reg := newTestService(t, mr)
	ws, dir := makeProject(t, reg, "app")

	custom := filepath.Join(reg.BaseDir(), "out.apk")
	mr.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inv runner.Invocation) (runner.Outcome, error) {
			assert.Equal(t, []string{"b", dir, "-o", custom, "-d", "-f"}, inv.Args)
			return runner.Outcome{}, nil // exits clean but writes nothing
		})

	result, err := svc.build(context.Background(), invocation(ws, map[string]any{
		"output_apk": custom,
		"debug":      true,
		"force_all":  true,
	}))
	require.NoError(t, err)
	assert.Contains(t, result, "warning")
}

func TestVersionTrimsOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mr := mocks.NewMockRunner(ctrl)
	svc, _ := newTestService(t, mr)

	mr.EXPECT().Run(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inv runner.Invocation) (runner.Outcome, error) {
			assert.Equal(t, []string{"--version"}, inv.Args)
			assert.Equal(t, 5*time.Second, inv.Timeout)
			return runner.Outcome{Stdout: "2.9.0\n"}, nil
		})

	result, err := svc.version(context.Background(), invocation(nil, map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "2.9.0", result["version"])
}

func TestListResourcesSortedAndFiltered(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "res", "layout"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "res", "layout", "main.xml"), []byte("<x/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "res", "icon.png"), []byte{0x89}, 0o644))

	result, err := svc.listResources(context.Background(), invocation(ws, map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"res/icon.png",
		"res/layout/main.xml",
		"res/values/strings.xml",
	}, result["paths"])
	assert.Equal(t, 3, result["count"])

	filtered, err := svc.listResources(context.Background(), invocation(ws, map[string]any{
		"glob": "*.xml",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"res/layout/main.xml", "res/values/strings.xml"}, filtered["paths"])
}

func TestListResourcesMissingResDir(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "res")))

	_, err := svc.listResources(context.Background(), invocation(ws, map[string]any{}))
	require.Error(t, err)
	assert.Equal(t, protocol.KindPathNotFound, protocol.KindOf(err))
}

func TestReadFileBinaryRejected(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "classes.dex"),
		[]byte{0x64, 0x65, 0x78, 0x0a, 0xff, 0xfe}, 0o644))

	_, err := svc.readFile(context.Background(), invocation(ws, map[string]any{
		"relative_path": "classes.dex",
	}))
	require.Error(t, err)
	assert.Equal(t, protocol.KindInvalidArguments, protocol.KindOf(err))
	ce := protocol.AsCallError(err)
	assert.Equal(t, true, ce.Details["is_binary"])
}

func TestReadFileMissing(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, _ := makeProject(t, reg, "app")

	_, err := svc.readFile(context.Background(), invocation(ws, map[string]any{
		"relative_path": "nope.xml",
	}))
	require.Error(t, err)
	assert.Equal(t, protocol.KindPathNotFound, protocol.KindOf(err))
}

func TestWriteFileCreatesParents(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")

	result, err := svc.writeFile(context.Background(), invocation(ws, map[string]any{
		"relative_path": "smali/com/example/Main.smali",
		"content":       ".class public Lcom/example/Main;",
	}))
	require.NoError(t, err)
	assert.Equal(t, 32, result["bytesWritten"])

	data, err := os.ReadFile(filepath.Join(dir, "smali", "com", "example", "Main.smali"))
	require.NoError(t, err)
	assert.Equal(t, ".class public Lcom/example/Main;", string(data))
}

func TestSearchFilesDefaultsAndCap(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "smali"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smali", "a.smali"), []byte("const-string v0, \"secret\""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "smali", "b.smali"), []byte("const-string v0, \"secret\""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("secret"), 0o644))

	result, err := svc.searchFiles(context.Background(), invocation(ws, map[string]any{
		"pattern": "secret",
	}))
	require.NoError(t, err)
	matches := result["matches"].([]string)
	assert.Len(t, matches, 2, "default extensions must exclude .txt")
	assert.Equal(t, false, result["max_reached"])

	capped, err := svc.searchFiles(context.Background(), invocation(ws, map[string]any{
		"pattern":     "secret",
		"max_results": 1,
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, capped["count"])
	assert.Equal(t, true, capped["max_reached"])
}

func TestSearchFilesCustomExtensions(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("needle"), 0o644))

	result, err := svc.searchFiles(context.Background(), invocation(ws, map[string]any{
		"pattern":    "needle",
		"extensions": ".txt",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, result["matches"])
}

func TestGetManifestExtractsPackage(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, _ := makeProject(t, reg, "app")

	result, err := svc.getManifest(context.Background(), invocation(ws, map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", result["package_name"])
	assert.True(t, strings.Contains(result["manifest"].(string), "<manifest"))
}

func TestGetManifestMissing(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")
	require.NoError(t, os.Remove(filepath.Join(dir, "AndroidManifest.xml")))

	_, err := svc.getManifest(context.Background(), invocation(ws, map[string]any{}))
	require.Error(t, err)
	assert.Equal(t, protocol.KindPathNotFound, protocol.KindOf(err))
}

func TestListProjects(t *testing.T) {
	svc, reg := newTestService(t, nil)
	makeProject(t, reg, "alpha")
	makeProject(t, reg, "beta")
	require.NoError(t, os.MkdirAll(filepath.Join(reg.BaseDir(), "random"), 0o755))

	result, err := svc.listProjects(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result["count"])

	projects := result["projects"].([]any)
	first := projects[0].(map[string]any)
	assert.Equal(t, "alpha", first["name"])
	assert.Equal(t, "com.example.app", first["package_name"])
	assert.Equal(t, true, first["has_apktool_yml"])
}

func TestCleanProject(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build", "apk"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dist"), 0o755))

	result, err := svc.cleanProject(context.Background(), invocation(ws, map[string]any{}))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"build", "dist"}, result["cleaned"])
	assert.NoDirExists(t, filepath.Join(dir, "build"))
	assert.NoDirExists(t, filepath.Join(dir, "dist"))
	assert.FileExists(t, filepath.Join(dir, "apktool.yml"))
}

func TestDeleteProjectRefusesNonProject(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")
	require.NoError(t, os.Remove(filepath.Join(dir, "apktool.yml")))

	_, err := svc.deleteProject(context.Background(), invocation(ws, map[string]any{}))
	require.Error(t, err)
	assert.Equal(t, protocol.KindInvalidPrecond, protocol.KindOf(err))
	assert.DirExists(t, dir)
}

func TestDeleteProjectForce(t *testing.T) {
	svc, reg := newTestService(t, nil)
	ws, dir := makeProject(t, reg, "app")
	require.NoError(t, os.Remove(filepath.Join(dir, "apktool.yml")))

	result, err := svc.deleteProject(context.Background(), invocation(ws, map[string]any{
		"force": true,
	}))
	require.NoError(t, err)
	assert.Equal(t, dir, result["deleted"])
	assert.NoDirExists(t, dir)

	// The registry record is gone: the dir no longer resolves.
	_, err = reg.ByProjectDir(dir)
	require.Error(t, err)
}

func TestMatchGlob(t *testing.T) {
	assert.True(t, matchGlob("*.xml", "layout/main.xml"))
	assert.True(t, matchGlob("layout/*.xml", "layout/main.xml"))
	assert.False(t, matchGlob("values/*.xml", "layout/main.xml"))
	assert.False(t, matchGlob("*.png", "layout/main.xml"))
}

func TestRegisterInstallsAllTools(t *testing.T) {
	svc, _ := newTestService(t, nil)

	registry := tool.NewRegistry()
	require.NoError(t, svc.Register(registry))

	names := registry.Names()
	assert.Len(t, names, 11)
	assert.Contains(t, names, "decode_apk")
	assert.Contains(t, names, "build_apk")
	assert.Contains(t, names, "apktool_version")

	// Double registration must fail loudly, not silently overwrite.
	err := svc.Register(registry)
	require.Error(t, err)
	assert.Equal(t, protocol.KindDuplicateTool, protocol.KindOf(err))
}
