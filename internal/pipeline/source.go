package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// GraphSource selects which call graphs feed the merge: every module in
// the binaries directory, or the single module belonging to a named
// fuzzer. The two cases are explicit rather than inferred from an
// optional argument at each use site.
type GraphSource struct {
	fuzzer string
	single bool
}

// WholeProgram merges the call graphs of every bytecode artifact.
func WholeProgram() GraphSource { return GraphSource{} }

// SingleFuzzer restricts the merge to the artifact whose basename equals
// name.
func SingleFuzzer(name string) GraphSource {
	return GraphSource{fuzzer: name, single: true}
}

// Single returns the fuzzer name and whether single-fuzzer mode is
// active.
func (s GraphSource) Single() (string, bool) { return s.fuzzer, s.single }

func (s GraphSource) String() string {
	if s.single {
		return fmt.Sprintf("single-fuzzer(%s)", s.fuzzer)
	}
	return "whole-program"
}

// artifactBase strips the bytecode extension from an artifact filename.
func artifactBase(name string) string {
	for _, ext := range []string{".bc", ".ll", ".o"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// resolveArtifacts lists the bytecode artifacts the source selects, in
// sorted order. Single-fuzzer mode must match exactly one artifact; zero
// or multiple matches is a usage error.
func resolveArtifacts(binariesDir string, src GraphSource) ([]string, error) {
	entries, err := os.ReadDir(binariesDir)
	if err != nil {
		return nil, usagef("cannot read binaries directory %s: %v", binariesDir, err)
	}

	var artifacts []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bc") {
			continue
		}
		artifacts = append(artifacts, filepath.Join(binariesDir, e.Name()))
	}
	sort.Strings(artifacts)

	name, single := src.Single()
	if !single {
		if len(artifacts) == 0 {
			return nil, usagef("no bytecode artifacts (*.bc) found in %s", binariesDir)
		}
		return artifacts, nil
	}

	var matches []string
	for _, a := range artifacts {
		if artifactBase(filepath.Base(a)) == name {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return nil, usagef("no bytecode artifact matches fuzzer %q in %s", name, binariesDir)
	case 1:
		return matches, nil
	default:
		return nil, usagef("fuzzer %q matches %d artifacts in %s: %s",
			name, len(matches), binariesDir, strings.Join(matches, ", "))
	}
}
