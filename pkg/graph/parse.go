package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// The upstream toolchain emits Graphviz-style dumps: a digraph header,
// node statements carrying the real identity in a record label, and edge
// statements between internal node ids. Parse resolves internal ids to
// their cleaned labels and collapses duplicate edges, producing a
// canonical Graph. Parsing an already-canonical dump yields the same
// graph again.

// statement is one recognized line of a graph dump.
type statement struct {
	ids  []string // node ids, 1 for a node statement, 2+ for an edge chain
	line int
}

// Parse reads a single graph-description blob and returns its canonical
// form. name identifies the resulting graph (the caller knows it from the
// artifact name). A line that is neither a recognized statement nor
// ignorable decoration is a hard error for the whole unit.
func Parse(r io.Reader, name string) (*Graph, error) {
	labels := make(map[string]string) // internal id -> cleaned label
	var stmts []statement

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if skippable(line) {
			continue
		}
		line = strings.TrimSuffix(line, ";")

		if strings.Contains(line, "->") {
			ids, err := parseEdgeChain(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineno, err)
			}
			stmts = append(stmts, statement{ids: ids, line: lineno})
			continue
		}

		id, label, err := parseNodeStatement(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		if label != "" {
			labels[id] = label
		}
		stmts = append(stmts, statement{ids: []string{id}, line: lineno})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading graph dump: %w", err)
	}

	resolve := func(id string) string {
		if label, ok := labels[id]; ok {
			return label
		}
		return CleanName(id)
	}

	g := New(name)
	for _, st := range stmts {
		if len(st.ids) == 1 {
			g.AddNode(resolve(st.ids[0]))
			continue
		}
		for i := 0; i+1 < len(st.ids); i++ {
			from := resolve(st.ids[i])
			to := resolve(st.ids[i+1])
			if from == "" || to == "" {
				return nil, fmt.Errorf("line %d: edge with empty endpoint", st.line)
			}
			g.AddEdge(from, to)
		}
	}
	return g, nil
}

// ParseFile parses a graph dump from disk.
func ParseFile(path, name string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening graph dump: %w", err)
	}
	defer f.Close()

	g, err := Parse(f, name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return g, nil
}

// skippable reports whether a line is decoration rather than a statement:
// the digraph header, braces, graph-level attributes, or comments.
func skippable(line string) bool {
	switch {
	case line == "" || line == "{" || line == "}":
		return true
	case strings.HasPrefix(line, "digraph"), strings.HasPrefix(line, "graph"),
		strings.HasPrefix(line, "subgraph"):
		return true
	case strings.HasPrefix(line, "label=") || strings.HasPrefix(line, "labelloc="):
		return true
	case strings.HasPrefix(line, "node [") || strings.HasPrefix(line, "node["),
		strings.HasPrefix(line, "edge [") || strings.HasPrefix(line, "edge["):
		return true
	case strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#"):
		return true
	}
	return false
}

// parseEdgeChain splits "a -> b -> c [attrs]" into its endpoint ids.
func parseEdgeChain(line string) ([]string, error) {
	if i := strings.Index(line, "["); i >= 0 {
		line = line[:i]
	}
	parts := strings.Split(line, "->")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		id := strings.TrimSpace(p)
		if id == "" {
			return nil, fmt.Errorf("malformed edge statement %q", line)
		}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return nil, fmt.Errorf("malformed edge statement %q", line)
	}
	return ids, nil
}

// parseNodeStatement handles "id [attrs]" and bare "id" statements,
// returning the internal id and the cleaned label attribute if one is
// present.
func parseNodeStatement(line string) (id, label string, err error) {
	rest := ""
	if i := strings.Index(line, "["); i >= 0 {
		if !strings.HasSuffix(line, "]") {
			return "", "", fmt.Errorf("malformed node statement %q", line)
		}
		rest = line[i+1 : len(line)-1]
		line = line[:i]
	}
	id = strings.TrimSpace(line)
	if id == "" {
		return "", "", fmt.Errorf("malformed node statement %q", line)
	}
	if raw, ok := attrValue(rest, "label"); ok {
		label = CleanName(raw)
	}
	return id, label, nil
}

// attrValue extracts the value of a quoted attribute from an attribute
// list, honoring backslash escapes inside the quotes.
func attrValue(attrs, key string) (string, bool) {
	marker := key + "=\""
	i := strings.Index(attrs, marker)
	if i < 0 {
		return "", false
	}
	rest := attrs[i+len(marker):]
	var sb strings.Builder
	escaped := false
	for _, r := range rest {
		if escaped {
			sb.WriteByte('\\')
			sb.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			return sb.String(), true
		default:
			sb.WriteRune(r)
		}
	}
	return "", false
}

// CleanName strips toolchain decoration from a node identity: quoting,
// record braces, record-field and escape suffixes, and a trailing colon.
// Cleaning an already-clean name is a no-op.
func CleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.TrimPrefix(s, "{")
	if i := strings.IndexByte(s, '\\'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '|'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "}")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	return strings.TrimSpace(s)
}
