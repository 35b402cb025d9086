// Package storage persists scan artifacts: results, checkpoints, snapshots,
// deltas, session logs, and streaming scan output. Every JSON write is
// atomic (temp file in the target directory, fsync, rename), so a crash
// never leaves a partial artifact behind.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
)

// Artifact kinds, one subdirectory each.
const (
	KindResult     = "result"
	KindScan       = "scan"
	KindSession    = "session"
	KindCheckpoint = "checkpoint"
	KindDelta      = "delta"
	KindSnapshot   = "snapshot"
)

// kindDirs maps artifact kinds to their subdirectories.
var kindDirs = map[string]string{
	KindResult:     "results",
	KindScan:       "scans",
	KindSession:    "sessions",
	KindCheckpoint: "checkpoints",
	KindDelta:      "deltas",
	KindSnapshot:   "snapshots",
}

// streamDir holds append-only JSONL scan output.
const streamDir = "stream"

// Store is a directory-rooted artifact store.
type Store struct {
	root string
}

// New creates a store rooted at dir (a leading ~ expands to the home
// directory) and ensures every artifact subdirectory exists.
func New(dir string) (*Store, error) {
	root, err := expandHome(dir)
	if err != nil {
		return nil, err
	}

	for _, sub := range kindDirs {
		if err := os.MkdirAll(filepath.Join(root, sub), constants.DirPermissions); err != nil {
			return nil, errors.WrapPersist("mkdir", filepath.Join(root, sub), err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, streamDir), constants.DirPermissions); err != nil {
		return nil, errors.WrapPersist("mkdir", filepath.Join(root, streamDir), err)
	}

	return &Store{root: root}, nil
}

// Root returns the expanded storage root.
func (s *Store) Root() string { return s.root }

// NewID mints an artifact id: <kind>_<UTC stamp>_<uuid fragment>.
func NewID(kind string) string {
	stamp := utc.Now().Format(constants.TimeFormatFilename)
	return fmt.Sprintf("%s_%s_%s", kind, stamp, uuid.NewString()[:8])
}

// WriteJSON atomically writes one artifact and returns its path.
func (s *Store) WriteJSON(kind, id string, v any) (string, error) {
	path, err := s.artifactPath(kind, id)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.WrapPersist("encode", path, err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ReadJSON loads one artifact by id.
func (s *Store) ReadJSON(kind, id string, out any) error {
	path, err := s.artifactPath(kind, id)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError(kind, id)
		}
		return errors.WrapPersist("read", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.WrapPersist("decode", path, err)
	}
	return nil
}

// List returns the ids of one kind, sorted ascending. Timestamped ids sort
// chronologically.
func (s *Store) List(kind string) ([]string, error) {
	sub, ok := kindDirs[kind]
	if !ok {
		return nil, errors.NewValidationError("kind", kind, "unknown artifact kind")
	}

	entries, err := os.ReadDir(filepath.Join(s.root, sub))
	if err != nil {
		return nil, errors.WrapPersist("list", sub, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Remove deletes one artifact. Missing artifacts are not an error.
func (s *Store) Remove(kind, id string) error {
	path, err := s.artifactPath(kind, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WrapPersist("remove", path, err)
	}
	return nil
}

// SaveCheckpoint persists a checkpoint under its own id.
func (s *Store) SaveCheckpoint(cp *catalog.Checkpoint) (string, error) {
	return s.WriteJSON(KindCheckpoint, cp.CheckpointID, cp)
}

// LoadCheckpoint loads a checkpoint by id.
func (s *Store) LoadCheckpoint(id string) (*catalog.Checkpoint, error) {
	var cp catalog.Checkpoint
	if err := s.ReadJSON(KindCheckpoint, id, &cp); err != nil {
		if errors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrCheckpointNotFound, id)
		}
		return nil, err
	}
	return &cp, nil
}

// SaveSnapshot persists a provider snapshot under its own id.
func (s *Store) SaveSnapshot(snap *catalog.Snapshot) (string, error) {
	return s.WriteJSON(KindSnapshot, snap.SnapshotID, snap)
}

// LoadSnapshot loads a snapshot by id.
func (s *Store) LoadSnapshot(id string) (*catalog.Snapshot, error) {
	var snap catalog.Snapshot
	if err := s.ReadJSON(KindSnapshot, id, &snap); err != nil {
		if errors.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrSnapshotNotFound, id)
		}
		return nil, err
	}
	return &snap, nil
}

// SaveDelta persists a delta record under its own id.
func (s *Store) SaveDelta(d *catalog.DeltaRecord) (string, error) {
	return s.WriteJSON(KindDelta, d.DeltaID, d)
}

// LoadDelta loads a delta record by id.
func (s *Store) LoadDelta(id string) (*catalog.DeltaRecord, error) {
	var d catalog.DeltaRecord
	if err := s.ReadJSON(KindDelta, id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// AppendSessionLog appends a finished session to the session log. The log
// is JSONL so finished sessions accumulate without rewrites.
func (s *Store) AppendSessionLog(sess *catalog.ScanSession) error {
	path := filepath.Join(s.root, kindDirs[KindSession], "sessions.jsonl")

	data, err := json.Marshal(sess)
	if err != nil {
		return errors.WrapPersist("encode", path, err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.FilePermissions)
	if err != nil {
		return errors.WrapPersist("open", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		return errors.WrapPersist("append", path, err)
	}
	return nil
}

// SessionLog reads every session appended to the session log.
func (s *Store) SessionLog() ([]catalog.ScanSession, error) {
	path := filepath.Join(s.root, kindDirs[KindSession], "sessions.jsonl")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapPersist("read", path, err)
	}

	var sessions []catalog.ScanSession
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var sess catalog.ScanSession
		if err := json.Unmarshal([]byte(line), &sess); err != nil {
			return nil, errors.WrapPersist("decode", path, err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// artifactPath validates the kind and builds the artifact file path.
func (s *Store) artifactPath(kind, id string) (string, error) {
	sub, ok := kindDirs[kind]
	if !ok {
		return "", errors.NewValidationError("kind", kind, "unknown artifact kind")
	}
	if id == "" {
		return "", errors.NewValidationError("id", id, "artifact id required")
	}
	return filepath.Join(s.root, sub, id+".json"), nil
}

// writeFileAtomic writes data through a temp file in the same directory,
// fsyncs, then renames over the target.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return errors.WrapPersist("create", path, err)
	}
	tmpPath := tmp.Name()

	cleanup := func(op string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errors.WrapPersist(op, path, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapPersist("close", path, err)
	}
	if err := os.Chmod(tmpPath, constants.FilePermissions); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapPersist("chmod", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.WrapPersist("rename", path, err)
	}
	return nil
}

// expandHome resolves a leading ~ to the user's home directory.
func expandHome(dir string) (string, error) {
	if dir == "" {
		dir = constants.DefaultStorageDir
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.WrapPersist("resolve", dir, err)
		}
		return filepath.Join(home, strings.TrimPrefix(dir[1:], "/")), nil
	}
	return dir, nil
}
