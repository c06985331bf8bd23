// Package instrument computes the set of functions worth instrumenting
// for a directed fuzzing build: the call path from the entry function to
// each target, the functions invoked before each target inside the same
// caller, and the recursive callee closure of those. The resulting
// whitelist is what the CFG distance stage filters on.
package instrument

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Site is one call site inside a caller: the callee and the source line
// the call occurs on.
type Site struct {
	Callee string
	Line   int
}

// CallGraph is the caller-to-callee relation with call-site line numbers,
// parsed from the instrumentation pass's call_graph.txt.
type CallGraph struct {
	Callees map[string][]string
	Sites   map[string][]Site
}

// ParseCallGraph reads rows of the form "caller,callee:line". Rows that
// do not match are skipped and counted, matching how the upstream pass
// tolerates partial graph data.
func ParseCallGraph(r io.Reader) (cg *CallGraph, skipped int, err error) {
	cg = &CallGraph{
		Callees: make(map[string][]string),
		Sites:   make(map[string][]Site),
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		caller, rest, ok := strings.Cut(line, ",")
		if !ok {
			skipped++
			continue
		}
		callee, lineno, ok := strings.Cut(rest, ":")
		if !ok {
			skipped++
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(lineno))
		if err != nil {
			skipped++
			continue
		}
		caller = strings.TrimSpace(caller)
		callee = strings.TrimSpace(callee)
		if caller == "" || callee == "" {
			skipped++
			continue
		}
		cg.Callees[caller] = append(cg.Callees[caller], callee)
		cg.Sites[caller] = append(cg.Sites[caller], Site{Callee: callee, Line: n})
	}
	if err := sc.Err(); err != nil {
		return nil, skipped, fmt.Errorf("reading call graph: %w", err)
	}
	return cg, skipped, nil
}

// ForwardPath returns the first depth-first call path from entry to
// target, or nil when no path exists. Callee order follows call order in
// the input, so the result is deterministic.
func (cg *CallGraph) ForwardPath(entry, target string) []string {
	visited := make(map[string]struct{})
	var path []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		if _, seen := visited[node]; seen {
			return false
		}
		visited[node] = struct{}{}
		path = append(path, node)
		if node == target {
			return true
		}
		for _, callee := range cg.Callees[node] {
			if dfs(callee) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if !dfs(entry) {
		return nil
	}
	return path
}

// PrecedingDependents collects functions that some caller invokes on an
// earlier line than its call to target. Those functions set up state the
// target may depend on, so they need instrumentation too.
func (cg *CallGraph) PrecedingDependents(target string) map[string]struct{} {
	deps := make(map[string]struct{})
	for _, sites := range cg.Sites {
		var targetLines []int
		for _, s := range sites {
			if s.Callee == target {
				targetLines = append(targetLines, s.Line)
			}
		}
		if len(targetLines) == 0 {
			continue
		}
		for _, s := range sites {
			if s.Callee == target {
				continue
			}
			for _, tl := range targetLines {
				if s.Line < tl {
					deps[s.Callee] = struct{}{}
					break
				}
			}
		}
	}
	return deps
}

// Closure expands a seed set with every function transitively called from
// it.
func (cg *CallGraph) Closure(seed map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(seed))
	var queue []string
	for fn := range seed {
		out[fn] = struct{}{}
		queue = append(queue, fn)
	}
	sort.Strings(queue) // map iteration order must not leak into traversal
	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		for _, callee := range cg.Callees[fn] {
			if _, seen := out[callee]; seen {
				continue
			}
			out[callee] = struct{}{}
			queue = append(queue, callee)
		}
	}
	return out
}

// ExpandBlockCalls widens the set through per-block callee lists, when
// basic-block level call data is available.
func ExpandBlockCalls(set map[string]struct{}, blockCalls map[string][]string) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	var queue []string
	for fn := range set {
		out[fn] = struct{}{}
		queue = append(queue, fn)
	}
	sort.Strings(queue)
	for len(queue) > 0 {
		fn := queue[0]
		queue = queue[1:]
		for _, callee := range blockCalls[fn] {
			if _, seen := out[callee]; seen {
				continue
			}
			out[callee] = struct{}{}
			queue = append(queue, callee)
		}
	}
	return out
}

// ComputeSet derives the instrumentation set for all targets: forward
// path from the entry, preceding dependents with their callee closure,
// and the optional block-call expansion, unioned across targets. The
// result is sorted.
func ComputeSet(cg *CallGraph, entry string, targetFuncs []string, blockCalls map[string][]string) []string {
	set := make(map[string]struct{})
	for _, target := range targetFuncs {
		for _, fn := range cg.ForwardPath(entry, target) {
			set[fn] = struct{}{}
		}
		deps := cg.Closure(cg.PrecedingDependents(target))
		for fn := range ExpandBlockCalls(deps, blockCalls) {
			set[fn] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for fn := range set {
		out = append(out, fn)
	}
	sort.Strings(out)
	return out
}

// Run executes the analyzer against a temp directory laid out by the
// instrumentation pass: call_graph.txt, target_funcs.txt and
// entry_func.txt in, instrumented_funcs.txt out.
func Run(tempDir string) (written int, err error) {
	f, err := os.Open(filepath.Join(tempDir, "call_graph.txt"))
	if err != nil {
		return 0, fmt.Errorf("opening call graph: %w", err)
	}
	defer f.Close()
	cg, _, err := ParseCallGraph(f)
	if err != nil {
		return 0, err
	}

	targetFuncs, err := readLines(filepath.Join(tempDir, "target_funcs.txt"))
	if err != nil {
		return 0, fmt.Errorf("reading target functions: %w", err)
	}
	entries, err := readLines(filepath.Join(tempDir, "entry_func.txt"))
	if err != nil {
		return 0, fmt.Errorf("reading entry function: %w", err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("entry_func.txt is empty")
	}

	set := ComputeSet(cg, entries[0], targetFuncs, nil)

	out := filepath.Join(tempDir, "instrumented_funcs.txt")
	var sb strings.Builder
	for _, fn := range set {
		sb.WriteString(fn)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(out, []byte(sb.String()), 0644); err != nil {
		return 0, fmt.Errorf("writing whitelist: %w", err)
	}
	return len(set), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
