package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianzuo526/pathfuzz/internal/config"
)

// The end-to-end fixtures model a tiny program: main calls parse, parse
// calls handle, and handle is the target. Dumps are pre-created so the
// pipeline never shells out to a real toolchain.
const testCallGraph = `digraph "Call graph: fuzz.bc" {
	label="Call graph: fuzz.bc";

	Node0x1 [shape=record,label="{main}"];
	Node0x1 -> Node0x2;
	Node0x2 [shape=record,label="{parse}"];
	Node0x2 -> Node0x3;
	Node0x3 [shape=record,label="{handle}"];
}
`

const testCFGMain = `digraph "CFG for 'main' function" {
	label="CFG for 'main' function";

	Node0xa [shape=record,label="{m.c:1:\l  entry\l}"];
	Node0xa -> Node0xb;
	Node0xb [shape=record,label="{m.c:2:\l  call parse\l}"];
}
`

const testCFGParse = `digraph "CFG for 'parse' function" {
	label="CFG for 'parse' function";

	Node0xa [shape=record,label="{p.c:1:\l  call handle\l}"];
	Node0xa -> Node0xb;
	Node0xb [shape=record,label="{p.c:2:\l  ret\l}"];
}
`

type fixture struct {
	binDir  string
	tempDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fx := fixture{binDir: t.TempDir(), tempDir: t.TempDir()}

	touch(t, filepath.Join(fx.binDir, "fuzz.bc"))

	dumpDir := filepath.Join(fx.tempDir, dumpDirName)
	require.NoError(t, os.MkdirAll(dumpDir, 0755))
	fx.write(t, filepath.Join(dumpDirName, "fuzz.bc.callgraph.dot"), testCallGraph)
	fx.writeCFGs(t)

	fx.write(t, fnamesFile, "main\nparse\nhandle\n")
	fx.write(t, ftargetsFile, "handle\n")
	fx.write(t, bbnamesFile, "m.c:1\nm.c:2\np.c:1\np.c:2\n")
	fx.write(t, bbtargetsFile, "p.c:2\n")
	fx.write(t, bbcallsFile, "p.c:1,handle\nm.c:2,parse\n")
	return fx
}

func (fx fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(fx.tempDir, rel), []byte(content), 0644))
}

func (fx fixture) writeCFGs(t *testing.T) {
	t.Helper()
	fx.write(t, filepath.Join(dumpDirName, "cfg.main.dot"), testCFGMain)
	fx.write(t, filepath.Join(dumpDirName, "cfg.parse.dot"), testCFGParse)
}

func (fx fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(fx.tempDir, rel))
	require.NoError(t, err)
	return string(data)
}

func (fx fixture) run(t *testing.T) error {
	t.Helper()
	o, err := New(Options{
		BinariesDir: fx.binDir,
		TempDir:     fx.tempDir,
		Source:      WholeProgram(),
		Config:      quietConfig(),
	})
	require.NoError(t, err)
	return o.Run(context.Background())
}

// quietConfig never reaches the extraction tool because every dump is
// pre-created, but the command must still name a resolvable binary.
func quietConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.ExtractCommand = "true"
	return cfg
}

func TestPipelineEndToEnd(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.run(t))

	assert.Equal(t, "main,2\nparse,1\nhandle,0\n", fx.read(t, funcDistFile))

	// Block distances: p.c:2 is the target. p.c:1 sees it directly at 1
	// and through its call to handle at 0+1, harmonic mean 1. In main,
	// the call site m.c:2 bridges through parse at distance 1+1 and
	// m.c:1 is one hop behind it.
	assert.Equal(t, "m.c:1,3\nm.c:2,2\np.c:1,1\np.c:2,0\n", fx.read(t, blockDistFile))

	// Both steps checkpointed and a reloadable graph artifact persisted.
	cp, err := loadCheckpoint(fx.tempDir)
	require.NoError(t, err)
	assert.Equal(t, 2, cp.Step)
	assert.Equal(t, "cfg", cp.Name)
	info, err := os.Stat(filepath.Join(fx.tempDir, callGraphBinFile))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPipelineResumesAfterStepFailure(t *testing.T) {
	fx := newFixture(t)

	// Sabotage step 2: without CFG dumps it fails after step 1 succeeded.
	require.NoError(t, os.Remove(filepath.Join(fx.tempDir, dumpDirName, "cfg.main.dot")))
	require.NoError(t, os.Remove(filepath.Join(fx.tempDir, dumpDirName, "cfg.parse.dot")))

	err := fx.run(t)
	var serr *StepError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 2, serr.Step)
	assert.Equal(t, "cfg", serr.Name)
	assert.Contains(t, serr.Resume, fx.binDir)
	assert.Contains(t, serr.Resume, fx.tempDir)
	assert.NotEmpty(t, serr.LogTail)

	cp, err := loadCheckpoint(fx.tempDir)
	require.NoError(t, err)
	require.Equal(t, 1, cp.Step, "step 1 completed before the failure")

	// Restore the dumps and remove the bytecode: a resumed run must skip
	// step 1 entirely, so the missing artifact goes unnoticed.
	fx.writeCFGs(t)
	require.NoError(t, os.Remove(filepath.Join(fx.binDir, "fuzz.bc")))

	require.NoError(t, fx.run(t))
	assert.Equal(t, "m.c:1,3\nm.c:2,2\np.c:1,1\np.c:2,0\n", fx.read(t, blockDistFile))
}

func TestPipelineStaleCheckpointRestarts(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.run(t))

	// Changing an input invalidates the checkpoint: the next run must
	// recompute rather than skip, so the deleted output reappears.
	fx.write(t, bbtargetsFile, "m.c:2\n")
	require.NoError(t, os.Remove(filepath.Join(fx.tempDir, blockDistFile)))

	require.NoError(t, fx.run(t))
	// m.c:1 reaches the new target directly at 1 and through the parse
	// bridge at 3; parse's blocks only see the handle bridge.
	assert.Equal(t, "m.c:1,1.5\nm.c:2,0\np.c:1,1\np.c:2,2\n", fx.read(t, blockDistFile))
}

func TestPipelineWhitelistFiltersFunctions(t *testing.T) {
	fx := newFixture(t)
	fx.write(t, whitelistFile, "parse\n")

	require.NoError(t, fx.run(t))
	assert.Equal(t, "p.c:1,1\np.c:2,0\n", fx.read(t, blockDistFile),
		"functions outside the instrumented set are skipped")
}

func TestPipelineNoTargetsFails(t *testing.T) {
	fx := newFixture(t)
	fx.write(t, ftargetsFile, "")

	err := fx.run(t)
	var serr *StepError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 1, serr.Step)
}

func TestNewValidatesOptions(t *testing.T) {
	var uerr *UsageError

	_, err := New(Options{BinariesDir: "/no/such/dir", TempDir: t.TempDir()})
	require.True(t, errors.As(err, &uerr))

	_, err = New(Options{BinariesDir: t.TempDir(), TempDir: "/no/such/dir"})
	require.True(t, errors.As(err, &uerr))

	cfg := config.DefaultConfig()
	cfg.Aggregation = "median"
	_, err = New(Options{BinariesDir: t.TempDir(), TempDir: t.TempDir(), Config: cfg})
	require.True(t, errors.As(err, &uerr))
}
