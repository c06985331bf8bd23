package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// stateFile is the checkpoint filename inside the temp directory.
const stateFile = "state.yaml"

// Checkpoint records completed pipeline progress: the last finished step,
// its name, and a hash of the input files the run was computed from. A
// checkpoint whose hash no longer matches the inputs is stale and must
// not gate a resume, otherwise persisted state silently desynchronizes
// from the artifacts on disk.
type Checkpoint struct {
	Step       int       `yaml:"step"`
	Name       string    `yaml:"name"`
	InputsHash string    `yaml:"inputs_hash"`
	UpdatedAt  time.Time `yaml:"updated_at"`
}

// loadCheckpoint reads the persisted checkpoint. A missing file means a
// fresh run and is not an error.
func loadCheckpoint(tempDir string) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(tempDir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	cp := &Checkpoint{}
	if err := yaml.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("parsing checkpoint: %w", err)
	}
	return cp, nil
}

// save persists the checkpoint atomically: write aside, then rename.
func (c *Checkpoint) save(tempDir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	path := filepath.Join(tempDir, stateFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing checkpoint: %w", err)
	}
	return nil
}

// hashInputs digests the engine's read-only input files: name and content
// of each, in the given order. Optional files that do not exist are
// folded in as absent, so creating one later invalidates the checkpoint.
func hashInputs(tempDir string, names []string) (string, error) {
	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s\n", name)
		f, err := os.Open(filepath.Join(tempDir, name))
		if err != nil {
			if os.IsNotExist(err) {
				io.WriteString(h, "absent\n")
				continue
			}
			return "", fmt.Errorf("hashing input %s: %w", name, err)
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", fmt.Errorf("hashing input %s: %w", name, err)
		}
		f.Close()
		io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
