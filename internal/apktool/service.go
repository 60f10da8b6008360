// Package apktool implements the bridge's tool set against the external
// apktool executable and the decoded project trees it produces.
package apktool

import (
	"log/slog"
	"time"

	"github.com/apkbridge/apkbridge/internal/config"
	"github.com/apkbridge/apkbridge/internal/log"
	"github.com/apkbridge/apkbridge/internal/runner"
	"github.com/apkbridge/apkbridge/internal/tool"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

// Service binds the tool handlers to their collaborators.
type Service struct {
	executable      string
	processTimeout  time.Duration
	metadataTimeout time.Duration

	runner     runner.Runner
	workspaces *workspace.Registry
	logger     *slog.Logger
}

// NewService creates the handler set.
func NewService(cfg *config.Config, r runner.Runner, ws *workspace.Registry) *Service {
	return &Service{
		executable:      cfg.Apktool.Path,
		processTimeout:  cfg.Timeouts.Process,
		metadataTimeout: cfg.Timeouts.Metadata,
		runner:          r,
		workspaces:      ws,
		logger:          log.WithComponent("apktool"),
	}
}

// Register installs every tool descriptor into reg. Called once at startup.
func (s *Service) Register(reg *tool.Registry) error {
	descriptors := []*tool.Descriptor{
		{
			Name:        "decode_apk",
			Description: "Decode an APK into an editable project directory using apktool",
			Args: []tool.ArgSpec{
				{Name: "apk_path", Type: tool.TypeString, Required: true, Description: "Path to the APK file"},
				{Name: "force", Type: tool.TypeBool, Description: "Overwrite an existing decode directory (default true)"},
				{Name: "no_res", Type: tool.TypeBool, Description: "Skip resource decoding"},
				{Name: "no_src", Type: tool.TypeBool, Description: "Skip source decoding"},
			},
			WorkspaceScoped: true,
			PathArg:         "apk_path",
			Mutating:        true,
			Begin:           workspace.StateDecoding,
			Done:            workspace.StateDecoded,
			Class:           tool.ClassProcess,
			Handler:         s.decode,
		},
		{
			Name:        "build_apk",
			Description: "Rebuild an APK from a decoded project directory",
			Args: []tool.ArgSpec{
				{Name: "project_dir", Type: tool.TypeString, Required: true, Description: "Decoded project directory"},
				{Name: "output_apk", Type: tool.TypeString, Description: "Output APK path (default <project>/dist/<name>.apk)"},
				{Name: "debug", Type: tool.TypeBool, Description: "Build with debug info"},
				{Name: "force_all", Type: tool.TypeBool, Description: "Force rebuild of all files"},
			},
			WorkspaceScoped: true,
			PathArg:         "project_dir",
			Mutating:        true,
			Begin:           workspace.StateBuilding,
			Done:            workspace.StateBuilt,
			Class:           tool.ClassProcess,
			Handler:         s.build,
		},
		{
			Name:        "list_resources",
			Description: "List files under a decoded project's res/ directory",
			Args: []tool.ArgSpec{
				{Name: "project_dir", Type: tool.TypeString, Required: true},
				{Name: "glob", Type: tool.TypeString, Description: "Optional pattern, matched against res-relative paths"},
			},
			WorkspaceScoped: true,
			PathArg:         "project_dir",
			Class:           tool.ClassMetadata,
			Handler:         s.listResources,
		},
		{
			Name:        "read_file",
			Description: "Read a text file inside a decoded project",
			Args: []tool.ArgSpec{
				{Name: "project_dir", Type: tool.TypeString, Required: true},
				{Name: "relative_path", Type: tool.TypeString, Required: true},
			},
			WorkspaceScoped: true,
			PathArg:         "project_dir",
			Class:           tool.ClassMetadata,
			Handler:         s.readFile,
		},
		{
			Name:        "write_file",
			Description: "Write a text file inside a decoded project",
			Args: []tool.ArgSpec{
				{Name: "project_dir", Type: tool.TypeString, Required: true},
				{Name: "relative_path", Type: tool.TypeString, Required: true},
				{Name: "content", Type: tool.TypeString, Required: true},
			},
			WorkspaceScoped: true,
			PathArg:         "project_dir",
			Mutating:        true,
			Class:           tool.ClassMetadata,
			Handler:         s.writeFile,
		},
		{
			Name:        "list_projects",
			Description: "List decoded apktool projects in the workspace root",
			Class:       tool.ClassMetadata,
			Handler:     s.listProjects,
		},
		{
			Name:        "get_manifest",
			Description: "Read AndroidManifest.xml from a decoded project",
			Args: []tool.ArgSpec{
				{Name: "project_dir", Type: tool.TypeString, Required: true},
			},
			WorkspaceScoped: true,
			PathArg:         "project_dir",
			Class:           tool.ClassMetadata,
			Handler:         s.getManifest,
		},
		{
			Name:        "search_files",
			Description: "Search project files for a substring pattern",
			Args: []tool.ArgSpec{
				{Name: "project_dir", Type: tool.TypeString, Required: true},
				{Name: "pattern", Type: tool.TypeString, Required: true},
				{Name: "extensions", Type: tool.TypeString, Description: "Comma-separated extensions (default .smali,.xml)"},
				{Name: "max_results", Type: tool.TypeInt, Description: "Result cap (default 100)"},
			},
			WorkspaceScoped: true,
			PathArg:         "project_dir",
			Class:           tool.ClassMetadata,
			Handler:         s.searchFiles,
		},
		{
			Name:        "clean_project",
			Description: "Remove build/ and dist/ from a project ahead of a rebuild",
			Args: []tool.ArgSpec{
				{Name: "project_dir", Type: tool.TypeString, Required: true},
			},
			WorkspaceScoped: true,
			PathArg:         "project_dir",
			Mutating:        true,
			Class:           tool.ClassMetadata,
			Handler:         s.cleanProject,
		},
		{
			Name:        "delete_project",
			Description: "Delete a decoded project directory",
			Args: []tool.ArgSpec{
				{Name: "project_dir", Type: tool.TypeString, Required: true},
				{Name: "force", Type: tool.TypeBool, Description: "Delete even if the directory lacks apktool.yml"},
			},
			WorkspaceScoped: true,
			PathArg:         "project_dir",
			Mutating:        true,
			Class:           tool.ClassMetadata,
			Handler:         s.deleteProject,
		},
		{
			Name:        "apktool_version",
			Description: "Report the installed apktool version",
			Class:       tool.ClassMetadata,
			Handler:     s.version,
		},
	}

	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}
