package fault

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/slonana-labs/validator-core/internal/types"
)

const checkpointMagic = "SLONANA_CHECKPOINT"
const checkpointVersion = "1.0"

// Checkpoint is the capability every recoverable component implements:
// save/restore/list/verify against a named id.
type Checkpoint interface {
	Save(id string, data []byte) error
	Restore(id string) ([]byte, error)
	List() ([]string, error)
	Verify(id string) (bool, error)
}

// FileCheckpoint stores one "<id>.checkpoint" data file and one "<id>.meta"
// metadata file per id under dir.
type FileCheckpoint struct {
	dir string
}

// NewFileCheckpoint returns a FileCheckpoint rooted at dir. The directory is
// created if it does not exist.
func NewFileCheckpoint(dir string) (*FileCheckpoint, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	return &FileCheckpoint{dir: dir}, nil
}

func (f *FileCheckpoint) dataPath(id string) string { return filepath.Join(f.dir, id+".checkpoint") }
func (f *FileCheckpoint) metaPath(id string) string { return filepath.Join(f.dir, id+".meta") }

// Save writes data and its metadata file for id.
func (f *FileCheckpoint) Save(id string, data []byte) error {
	if err := os.WriteFile(f.dataPath(id), data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write data: %w", err)
	}
	hash := sha256.Sum256(data)
	meta := fmt.Sprintf("timestamp=%d\nhash=%x\nversion=%s\nmagic=%s\n",
		time.Now().Unix(), hash, checkpointVersion, checkpointMagic)
	if err := os.WriteFile(f.metaPath(id), []byte(meta), 0o644); err != nil {
		return fmt.Errorf("checkpoint: write meta: %w", err)
	}
	return nil
}

// Restore reads id's data file.
func (f *FileCheckpoint) Restore(id string) ([]byte, error) {
	data, err := os.ReadFile(f.dataPath(id))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read data: %w", err)
	}
	return data, nil
}

// List returns every checkpoint id present, newest-modified first.
func (f *FileCheckpoint) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read dir: %w", err)
	}
	type stamped struct {
		id      string
		modTime time.Time
	}
	var all []stamped
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".checkpoint") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		all = append(all, stamped{id: strings.TrimSuffix(e.Name(), ".checkpoint"), modTime: info.ModTime()})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].modTime.After(all[j].modTime) })
	ids := make([]string, len(all))
	for i, a := range all {
		ids[i] = a.id
	}
	return ids, nil
}

// Verify recomputes the data file's hash and compares it to the recorded
// metadata.
func (f *FileCheckpoint) Verify(id string) (bool, error) {
	data, err := os.ReadFile(f.dataPath(id))
	if err != nil {
		return false, fmt.Errorf("checkpoint: read data: %w", err)
	}
	metaRaw, err := os.ReadFile(f.metaPath(id))
	if err != nil {
		return false, fmt.Errorf("checkpoint: read meta: %w", err)
	}
	meta, err := parseMeta(string(metaRaw))
	if err != nil {
		return false, err
	}
	if meta["magic"] != checkpointMagic || meta["version"] != checkpointVersion {
		return false, nil
	}
	hash := sha256.Sum256(data)
	return meta["hash"] == fmt.Sprintf("%x", hash), nil
}

// CleanupOldCheckpoints removes all but the n most-recent checkpoints by
// file modification time.
func (f *FileCheckpoint) CleanupOldCheckpoints(n int) error {
	ids, err := f.List()
	if err != nil {
		return err
	}
	if len(ids) <= n {
		return nil
	}
	for _, id := range ids[n:] {
		_ = os.Remove(f.dataPath(id))
		_ = os.Remove(f.metaPath(id))
	}
	return nil
}

func parseMeta(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[parts[0]] = parts[1]
	}
	if _, ok := out["hash"]; !ok {
		return nil, types.NewError(types.KindInvalidInput, "checkpoint: malformed metadata", nil)
	}
	return out, nil
}

// RecoveryManager aggregates registered components into one system-wide
// checkpoint, with id "<system_id>_<component>" per component.
type RecoveryManager struct {
	systemID   string
	components map[string]Checkpoint
}

// NewRecoveryManager returns a RecoveryManager for systemID.
func NewRecoveryManager(systemID string) *RecoveryManager {
	return &RecoveryManager{systemID: systemID, components: make(map[string]Checkpoint)}
}

// Register adds a named component's Checkpoint capability.
func (r *RecoveryManager) Register(component string, cp Checkpoint) {
	r.components[component] = cp
}

func (r *RecoveryManager) checkpointID(component string) string {
	return r.systemID + "_" + component
}

// SaveAll checkpoints every registered component under its system-wide id.
func (r *RecoveryManager) SaveAll(snapshots map[string][]byte) error {
	for component, cp := range r.components {
		data, ok := snapshots[component]
		if !ok {
			continue
		}
		if err := cp.Save(r.checkpointID(component), data); err != nil {
			return fmt.Errorf("recovery: save %s: %w", component, err)
		}
	}
	return nil
}

// RestoreSystemCheckpoint restores every registered component from the
// explicitly named systemID, returning component -> data. Unlike
// AutoRecover, the caller picks which checkpoint generation to restore.
func (r *RecoveryManager) RestoreSystemCheckpoint(systemID string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for component, cp := range r.components {
		data, err := cp.Restore(r.checkpointIDFor(systemID, component))
		if err != nil {
			return nil, fmt.Errorf("recovery: restore %s: %w", component, err)
		}
		out[component] = data
	}
	return out, nil
}

func (r *RecoveryManager) checkpointIDFor(systemID, component string) string {
	return systemID + "_" + component
}

// GetRecoveryStatus reports, per registered component, whether it currently
// has at least one checkpoint available to recover from.
func (r *RecoveryManager) GetRecoveryStatus() map[string]bool {
	status := make(map[string]bool, len(r.components))
	for component, cp := range r.components {
		ids, err := cp.List()
		status[component] = err == nil && len(ids) > 0
	}
	return status
}

// ErrNoCheckpoints is returned by AutoRecover when no component has any
// checkpoint to recover from.
var ErrNoCheckpoints = types.NewError(types.KindInvalidInput, "recovery: no checkpoints found", nil)

// AutoRecover finds the newest system id present in any component's List()
// and restores every component from it, returning component -> data.
func (r *RecoveryManager) AutoRecover() (map[string][]byte, error) {
	bestSystemID := ""
	bestRank := -1
	for component, cp := range r.components {
		ids, err := cp.List()
		if err != nil {
			continue
		}
		suffix := "_" + component
		for rank, id := range ids {
			if !strings.HasSuffix(id, suffix) {
				continue
			}
			// List() is newest-first, so a lower rank means more recent.
			if bestRank == -1 || rank < bestRank {
				bestSystemID = strings.TrimSuffix(id, suffix)
				bestRank = rank
			}
			break
		}
	}
	if bestSystemID == "" {
		return nil, ErrNoCheckpoints
	}

	out := make(map[string][]byte)
	for component, cp := range r.components {
		data, err := cp.Restore(bestSystemID + "_" + component)
		if err != nil {
			continue
		}
		out[component] = data
	}
	return out, nil
}
