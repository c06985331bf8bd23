package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cp, err := loadCheckpoint(dir)
	require.NoError(t, err)
	assert.Nil(t, cp, "missing checkpoint means a fresh run")

	want := &Checkpoint{
		Step:       1,
		Name:       "callgraph",
		InputsHash: "abc123",
		UpdatedAt:  time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, want.save(dir))

	got, err := loadCheckpoint(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Saving again overwrites in place.
	want.Step = 2
	want.Name = "cfg"
	require.NoError(t, want.save(dir))
	got, err = loadCheckpoint(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Step)
}

func TestCheckpointCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFile), []byte("{not yaml"), 0644))

	_, err := loadCheckpoint(dir)
	assert.Error(t, err)
}

func TestHashInputs(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a.txt", "b.txt"}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one"), 0644))

	h1, err := hashInputs(dir, names)
	require.NoError(t, err)
	h2, err := hashInputs(dir, names)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "hashing is stable for unchanged inputs")

	// Editing a present file changes the hash.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("two"), 0644))
	h3, err := hashInputs(dir, names)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	// Creating a previously absent file changes the hash.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("late"), 0644))
	h4, err := hashInputs(dir, names)
	require.NoError(t, err)
	assert.NotEqual(t, h3, h4)
}
