// Package dispatch turns parsed tool-call requests into handler executions:
// it validates arguments, acquires workspace locks, drives the workspace
// state machine around the handler, and normalizes every outcome into the
// typed response envelope. Each call walks
// Received -> Validated -> WorkspaceAcquired -> Executing -> {Succeeded, Failed}
// and emits exactly one response.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apkbridge/apkbridge/internal/history"
	"github.com/apkbridge/apkbridge/internal/log"
	"github.com/apkbridge/apkbridge/internal/protocol"
	"github.com/apkbridge/apkbridge/internal/tool"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

// Dispatcher routes tool calls. It is safe for concurrent use: unrelated
// workspaces never serialize, and only the per-workspace locks guard shared
// mutable state.
type Dispatcher struct {
	tools      *tool.Registry
	workspaces *workspace.Registry
	history    *history.Store // nil disables recording
	logger     *slog.Logger

	metadataTimeout time.Duration
}

// New creates a Dispatcher. hist may be nil.
func New(tools *tool.Registry, workspaces *workspace.Registry, hist *history.Store, metadataTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		tools:           tools,
		workspaces:      workspaces,
		history:         hist,
		logger:          log.WithComponent("dispatch"),
		metadataTimeout: metadataTimeout,
	}
}

// Dispatch executes one tool call and always returns a response envelope;
// failures are typed, never raw.
func (d *Dispatcher) Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	callID := uuid.NewString()
	logger := d.logger.With("call_id", callID, "tool", req.Tool)
	start := time.Now()

	result, ws, err := d.call(ctx, req)
	duration := time.Since(start)

	d.record(req.Tool, ws, err, duration)

	if err != nil {
		ce := protocol.AsCallError(err)
		logger.Warn("tool call failed", "kind", ce.Kind, "error", ce.Message, "duration", duration)
		return protocol.Failure(ce)
	}

	logger.Info("tool call succeeded", "duration", duration)
	return protocol.OK(result)
}

func (d *Dispatcher) call(ctx context.Context, req *protocol.Request) (map[string]any, *workspace.Workspace, error) {
	desc, err := d.tools.Resolve(req.Tool)
	if err != nil {
		return nil, nil, err
	}

	// Validation happens before any lock: an invalid call never touches a
	// workspace.
	args, err := tool.Validate(desc, req.Arguments)
	if err != nil {
		return nil, nil, err
	}

	var ws *workspace.Workspace
	if desc.WorkspaceScoped {
		ws, err = d.resolveWorkspace(desc, args)
		if err != nil {
			return nil, nil, err
		}

		if desc.Mutating {
			if err := ws.TryLock(); err != nil {
				return nil, ws, err
			}
			defer ws.Unlock()
		} else {
			// Reads run concurrently with each other but must not race an
			// in-flight decode/build.
			if err := ws.TryRLock(); err != nil {
				return nil, ws, err
			}
			defer ws.RUnlock()
		}

		if desc.Begin != "" {
			if err := ws.Transition(desc.Begin); err != nil {
				return nil, ws, err
			}
		}
	}

	hctx := ctx
	if desc.Class == tool.ClassMetadata && d.metadataTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, d.metadataTimeout)
		defer cancel()
	}

	result, err := desc.Handler(hctx, &tool.Invocation{Args: args, Workspace: ws})
	if err != nil {
		// A failed in-flight operation lands in Failed, never stuck in
		// Decoding/Building; the deferred unlock releases the workspace.
		if ws != nil && desc.Begin != "" {
			ws.Fail(err)
		}
		return nil, ws, protocol.AsCallError(err)
	}

	if desc.Done != "" {
		if err := ws.Transition(desc.Done); err != nil {
			return nil, ws, protocol.AsCallError(err)
		}
	}
	return result, ws, nil
}

// resolveWorkspace maps the call's path argument to a workspace record.
// Decode keys on the APK source path; everything else keys on the decode
// directory.
func (d *Dispatcher) resolveWorkspace(desc *tool.Descriptor, args tool.Args) (*workspace.Workspace, error) {
	key := args.String(desc.PathArg)

	if desc.PathArg == "apk_path" {
		return d.workspaces.GetOrCreate(key)
	}

	ws, err := d.workspaces.ByProjectDir(key)
	if err != nil && desc.Begin == workspace.StateBuilding && protocol.KindOf(err) == protocol.KindPathNotFound {
		// Building against a directory no decode has produced is a
		// precondition failure, not a lookup miss.
		return nil, protocol.WrapError(protocol.KindInvalidPrecond, err,
			"no completed decode for %s; run decode_apk first", key)
	}
	return ws, err
}

// record appends the call to the invocation log; failures here are logged
// and swallowed, never surfaced to the client.
func (d *Dispatcher) record(toolName string, ws *workspace.Workspace, callErr error, duration time.Duration) {
	if d.history == nil {
		return
	}

	entry := history.Entry{
		Tool:     toolName,
		Status:   "ok",
		Duration: duration,
	}
	if ws != nil {
		snap := ws.Snapshot()
		entry.Target = snap.SourcePath
		if entry.Target == "" {
			entry.Target = snap.DecodeDir
		}
		entry.Fingerprint = snap.Fingerprint
	}
	if callErr != nil {
		ce := protocol.AsCallError(callErr)
		entry.Status = "error"
		entry.ErrorKind = string(ce.Kind)
		entry.Message = ce.Message
		if code, ok := ce.Details["exit_code"].(int); ok {
			entry.ExitCode = &code
		}
		if tail, ok := ce.Details["stderr_tail"].(string); ok {
			entry.StderrTail = tail
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := d.history.Record(ctx, entry); err != nil {
		d.logger.Error("failed to record invocation", "tool", toolName, "error", err)
	}
}
