package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianzuo526/pathfuzz/internal/log"
)

// Extractor invokes the external toolchain to dump one module's call
// graph from its bytecode artifact. Extraction is the flaky spot of the
// pipeline — the tool occasionally fails on a module and succeeds on the
// next attempt — so failures are retried with exponential backoff up to a
// bounded attempt count, then escalated to the caller as terminal.
type Extractor struct {
	// Command is the tool invocation, e.g. "opt -passes=dot-callgraph".
	// The artifact path is appended as the final argument and the
	// command runs inside the dump directory, where the tool writes
	// <artifact>.callgraph.dot.
	Command     string
	MaxAttempts int
	Backoff     time.Duration
	Logger      log.Logger
}

// CallGraphDump produces dumpDir/<base>.callgraph.dot for the given
// artifact and returns the dump path. The tool binary being absent is an
// environment error and is not retried.
func (e *Extractor) CallGraphDump(ctx context.Context, artifact, dumpDir string) (string, error) {
	parts := strings.Fields(e.Command)
	if len(parts) == 0 {
		return "", &EnvError{Msg: "extract command is empty"}
	}
	tool := parts[0]
	if _, err := exec.LookPath(tool); err != nil {
		return "", &EnvError{Msg: fmt.Sprintf("extraction tool %q not found", tool), Err: err}
	}

	dumpPath := filepath.Join(dumpDir, filepath.Base(artifact)+".callgraph.dot")
	args := append(append([]string{}, parts[1:]...), artifact)

	backoff := e.Backoff
	var lastErr error
	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		if attempt > 1 {
			e.Logger.Warn("retrying call-graph extraction",
				"artifact", artifact, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}

		cmd := exec.CommandContext(ctx, tool, args...)
		cmd.Dir = dumpDir
		out, err := cmd.CombinedOutput()
		if err != nil {
			lastErr = fmt.Errorf("extraction tool failed: %w (output: %s)",
				err, strings.TrimSpace(string(out)))
			continue
		}
		if info, err := os.Stat(dumpPath); err != nil || info.Size() == 0 {
			lastErr = fmt.Errorf("extraction tool exited 0 but wrote no dump at %s", dumpPath)
			continue
		}
		return dumpPath, nil
	}
	return "", fmt.Errorf("extracting call graph of %s: gave up after %d attempts: %w",
		artifact, e.MaxAttempts, lastErr)
}
