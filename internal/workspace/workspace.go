package workspace

import (
	"sync"
	"time"

	"github.com/apkbridge/apkbridge/internal/protocol"
)

// State is a workspace's position in the decode/build lifecycle.
type State string

const (
	StateUnopened State = "Unopened"
	StateDecoding State = "Decoding"
	StateDecoded  State = "Decoded"
	StateBuilding State = "Building"
	StateBuilt    State = "Built"
	StateFailed   State = "Failed"
)

// InFlight reports whether the state represents a mutating operation in
// progress.
func (s State) InFlight() bool {
	return s == StateDecoding || s == StateBuilding
}

/// Workspace tracks one APK under management: its canonical source path, the
// decode output directory, and the lifecycle state. Records live in memory
// for the process lifetime; decoded files on disk outlive the process.
type Workspace struct {
	// opMu serializes mutating operations (decode/build) against readers.
	// Acquisition is fail-fast: a held lock yields ConcurrentOperationConflict,
	// never an unbounded queue.
	opMu sync.RWMutex

	// stateMu guards the snapshot fields below; it is never held across an
	// operation, only across field access.
	stateMu sync.Mutex

	sourcePath  string
	decodeDir   string
	state       State
	lastError   string
	updatedAt   time.Time
	fingerprint string

	// decodedOnce latches after the first successful decode; a Failed
	// workspace that has decoded before may still be built.
	decodedOnce bool
}

// Info is a point-in-time copy of a workspace's observable fields.
type Info struct {
	SourcePath  string    `json:"source_path,omitempty"`
	DecodeDir   string    `json:"decode_dir,omitempty"`
	State       State     `json:"state"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// SourcePath returns the canonical path of the source APK. Empty for
// workspaces adopted from an existing decode directory after a restart.
func (w *Workspace) SourcePath() string {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.sourcePath
}

// DecodeDir returns the decode output directory, or "" before any decode.
func (w *Workspace) DecodeDir() string {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.decodeDir
}

// State returns the current lifecycle state.
func (w *Workspace) State() State {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.state
}

// Snapshot returns a copy of the observable fields.
func (w *Workspace) Snapshot() Info {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return Info{
		SourcePath:  w.sourcePath,
		DecodeDir:   w.decodeDir,
		State:       w.state,
		LastError:   w.lastError,
		UpdatedAt:   w.updatedAt,
		Fingerprint: w.fingerprint,
	}
}

// CanBuild reports whether a build may be attempted: the workspace is in
// Decoded or Built state, or Failed after at least one successful decode.
func (w *Workspace) CanBuild() bool {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	switch w.state {
	case StateDecoded, StateBuilt:
		return true
	case StateFailed:
		return w.decodedOnce
	default:
		return false
	}
}

// Transition moves the workspace to next, enforcing the legal edges:
//
//	{Unopened,Decoded,Built,Failed} -> Decoding
//	Decoding -> {Decoded, Failed}
//	{Decoded,Built} -> Building; Failed -> Building after a prior decode
//	Building -> {Built, Failed}
//
// Failed is reachable from any in-flight state and is itself re-enterable.
func (w *Workspace) Transition(next State) error {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	if !w.legalEdge(next) {
		return protocol.NewError(protocol.KindInvalidPrecond,
			"illegal workspace transition %s -> %s", w.state, next)
	}

	w.state = next
	w.updatedAt = time.Now()

	switch next {
	case StateDecoded:
		w.decodedOnce = true
		w.lastError = ""
	case StateBuilt:
		w.lastError = ""
	}
	return nil
}

func (w *Workspace) legalEdge(next State) bool {
	switch next {
	case StateDecoding:
		return !w.state.InFlight()
	case StateDecoded:
		return w.state == StateDecoding
	case StateBuilding:
		if w.state == StateDecoded || w.state == StateBuilt {
			return true
		}
		return w.state == StateFailed && w.decodedOnce
	case StateBuilt:
		return w.state == StateBuilding
	case StateFailed:
		return w.state.InFlight()
	default:
		return false
	}
}

// Fail transitions to Failed and records err as the last error.
func (w *Workspace) Fail(err error) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.state = StateFailed
	w.updatedAt = time.Now()
	if err != nil {
		w.lastError = err.Error()
	}
}

// SetDecodeDir records the decode output directory.
func (w *Workspace) SetDecodeDir(dir string) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.decodeDir = dir
}

// SetFingerprint records the source APK content hash taken at decode time.
func (w *Workspace) SetFingerprint(sum string) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.fingerprint = sum
}

// TryLock acquires the exclusive operation lock, failing fast with
// ConcurrentOperationConflict if any operation or read is in flight.
func (w *Workspace) TryLock() error {
	if !w.opMu.TryLock() {
		return protocol.NewError(protocol.KindConcurrentOp,
			"an operation is already in flight for %s", w.describe())
	}
	return nil
}

// Unlock releases the exclusive operation lock.
func (w *Workspace) Unlock() {
	w.opMu.Unlock()
}

// TryRLock acquires a shared read lock. Reads run concurrently with each
// other but fail fast while a decode/build holds the exclusive lock.
func (w *Workspace) TryRLock() error {
	if !w.opMu.TryRLock() {
		return protocol.NewError(protocol.KindConcurrentOp,
			"a mutating operation is in flight for %s", w.describe())
	}
	return nil
}

// RUnlock releases a shared read lock.
func (w *Workspace) RUnlock() {
	w.opMu.RUnlock()
}

func (w *Workspace) describe() string {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.sourcePath != "" {
		return w.sourcePath
	}
	return w.decodeDir
}
