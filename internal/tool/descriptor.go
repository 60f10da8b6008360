// Package tool holds the static registry of operations the bridge exposes:
// each tool's argument schema, scoping, timeout class, and handler.
package tool

import (
	"context"

	"github.com/apkbridge/apkbridge/internal/workspace"
)

// Class groups tools by expected runtime, which selects the timeout budget.
type Class string

const (
	// ClassProcess tools invoke the external executable (decode/build).
	ClassProcess Class = "process"
	// ClassMetadata tools do plain filesystem I/O (list/read/write/search).
	ClassMetadata Class = "metadata"
)

// ArgType enumerates the wire types an argument may carry.
type ArgType string

const (
	TypeString ArgType = "string"
	TypeBool   ArgType = "bool"
	TypeInt    ArgType = "int"
	TypeEnum   ArgType = "enum"
)

// ArgSpec describes one named parameter of a tool.
type ArgSpec struct {
	Name        string
	Type        ArgType
	Required    bool
	Description string
	// Enum lists the legal values for TypeEnum arguments.
	Enum []string
}

// Invocation is what a handler receives: validated arguments plus the
// resolved workspace for workspace-scoped tools (nil otherwise).
type Invocation struct {
	Args      Args
	Workspace *workspace.Workspace
}

// Handler implements one tool. Handlers may read the filesystem, invoke the
// external process, or mutate workspace state; the dispatcher owns locking
// and state transitions around them.
type Handler func(ctx context.Context, inv *Invocation) (map[string]any, error)

// Descriptor represents one registered operation. Descriptors are registered
// once at startup and immutable afterward.
type Descriptor struct {
	Name        string
	Description string
	Args        []ArgSpec

	// WorkspaceScoped tools resolve and lock a workspace, keyed by PathArg.
	WorkspaceScoped bool
	// PathArg names the argument carrying the workspace key
	// (apk_path for decode, project_dir for everything else).
	PathArg string
	// Mutating tools take the exclusive lock and drive state transitions;
	// non-mutating scoped tools take a shared lock.
	Mutating bool

	// Begin/Done drive the workspace state machine around the handler:
	// the dispatcher transitions to Begin before invoking it and to Done on
	// success (decode: Decoding/Decoded, build: Building/Built). Zero values
	// mean the tool does not move the state machine. An illegal Begin edge
	// doubles as the precondition check (build before decode, double decode).
	Begin workspace.State
	Done  workspace.State

	Class   Class
	Handler Handler
}
