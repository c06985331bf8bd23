// Package targets loads the target-set and universe list files produced
// by the instrumentation pass: function names, basic-block labels, the
// block-to-callee call relation, and the optional instrumented-function
// whitelist. All inputs are plain text, one entry per line.
package targets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/julianzuo526/pathfuzz/pkg/distance"
)

// ReadNames reads one name per line, trimming whitespace, skipping blank
// lines and deduplicating while preserving first-seen order.
func ReadNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var names []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return names, nil
}

// ReadBlockNames reads basic-block labels, stripping trailing qualifiers
// beyond the canonical module:function:block form before deduplication.
func ReadBlockNames(path string) ([]string, error) {
	raw, err := ReadNames(path)
	if err != nil {
		return nil, err
	}
	var labels []string
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		label := StripQualifier(r)
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels, nil
}

// StripQualifier drops colon-separated fields beyond the third. Block
// labels canonically carry module, function and block components; the
// pass appends disambiguating qualifiers that have no meaning here.
func StripQualifier(label string) string {
	parts := strings.SplitN(label, ":", 4)
	if len(parts) < 4 {
		return label
	}
	return strings.Join(parts[:3], ":")
}

// ReadCallSites reads the block-to-callee relation. Valid rows have
// exactly 2 or 3 comma-separated fields: calling block, callee
// identifier, and an optional extra qualifier. Malformed rows are invalid
// data, not errors: they are discarded and counted.
func ReadCallSites(path string) (sites []distance.CallSite, discarded int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 && len(fields) != 3 {
			discarded++
			continue
		}
		block := strings.TrimSpace(fields[0])
		callee := strings.TrimSpace(fields[1])
		if block == "" || callee == "" {
			discarded++
			continue
		}
		sites = append(sites, distance.CallSite{Block: StripQualifier(block), Callee: callee})
	}
	if err := sc.Err(); err != nil {
		return nil, discarded, fmt.Errorf("reading %s: %w", path, err)
	}
	return sites, discarded, nil
}

// ReadWhitelist loads the optional instrumented-function whitelist. A
// missing file means no filtering; present reports which case applies.
func ReadWhitelist(path string) (set map[string]struct{}, present bool, err error) {
	names, err := ReadNames(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	set = make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, true, nil
}
