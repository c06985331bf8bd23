package graph

import (
	"reflect"
	"strings"
	"testing"
)

const callGraphDump = `digraph "Call graph: libfoo.bc" {
	label="Call graph: libfoo.bc";

	Node0x1 [shape=record,label="{external node}"];
	Node0x1 -> Node0x2;
	Node0x1 -> Node0x3;
	Node0x2 [shape=record,label="{main}"];
	Node0x2 -> Node0x3;
	Node0x2 -> Node0x3;
	Node0x3 [shape=record,label="{parse_input}"];
}
`

const cfgDump = `digraph "CFG for 'parse_input' function" {
	label="CFG for 'parse_input' function";

	Node0xa [shape=record,label="{foo.c:10:\l  %1 = alloca i32\l}"];
	Node0xa -> Node0xb;
	Node0xa -> Node0xc;
	Node0xb [shape=record,label="{foo.c:12:\l  br label\l}"];
	Node0xc [shape=record,label="{foo.c:15:|{<s0>T|<s1>F}}"];
	Node0xc -> Node0xc;
}
`

func TestParseCallGraphDump(t *testing.T) {
	g, err := Parse(strings.NewReader(callGraphDump), "libfoo")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	wantNodes := []string{"external node", "main", "parse_input"}
	if !reflect.DeepEqual(g.Nodes, wantNodes) {
		t.Errorf("Nodes = %v, want %v", g.Nodes, wantNodes)
	}
	// The duplicate main -> parse_input edge collapses.
	wantEdges := []Edge{
		{From: "external node", To: "main"},
		{From: "external node", To: "parse_input"},
		{From: "main", To: "parse_input"},
	}
	if !reflect.DeepEqual(g.Edges, wantEdges) {
		t.Errorf("Edges = %v, want %v", g.Edges, wantEdges)
	}
}

func TestParseCFGDump(t *testing.T) {
	g, err := Parse(strings.NewReader(cfgDump), "parse_input")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	wantNodes := []string{"foo.c:10", "foo.c:12", "foo.c:15"}
	if !reflect.DeepEqual(g.Nodes, wantNodes) {
		t.Errorf("Nodes = %v, want %v", g.Nodes, wantNodes)
	}
	wantEdges := []Edge{
		{From: "foo.c:10", To: "foo.c:12"},
		{From: "foo.c:10", To: "foo.c:15"},
		{From: "foo.c:15", To: "foo.c:15"}, // self-loop survives
	}
	if !reflect.DeepEqual(g.Edges, wantEdges) {
		t.Errorf("Edges = %v, want %v", g.Edges, wantEdges)
	}
}

func TestParseDegenerateGraphs(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantNodes int
		wantEdges int
	}{
		{"empty digraph", "digraph \"x\" {\n}\n", 0, 0},
		{"nodes without edges", "digraph \"x\" {\n\"a\";\n\"b\";\n}\n", 2, 0},
		{"bare edge ids", "digraph \"x\" {\n\"a\" -> \"b\";\n}\n", 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Parse(strings.NewReader(tt.input), "x")
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if g.NodeCount() != tt.wantNodes {
				t.Errorf("NodeCount() = %d, want %d", g.NodeCount(), tt.wantNodes)
			}
			if g.EdgeCount() != tt.wantEdges {
				t.Errorf("EdgeCount() = %d, want %d", g.EdgeCount(), tt.wantEdges)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated attrs", "digraph \"x\" {\nNode0x1 [shape=record\n}\n"},
		{"dangling edge", "digraph \"x\" {\n-> Node0x2;\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.input), "x"); err == nil {
				t.Error("Parse() expected error, got nil")
			}
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	first, err := Parse(strings.NewReader(callGraphDump), "libfoo")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	// Re-render the canonical graph as a plain dump and parse it again.
	var sb strings.Builder
	sb.WriteString("digraph \"libfoo\" {\n")
	for _, n := range first.Nodes {
		sb.WriteString("\t\"" + n + "\";\n")
	}
	for _, e := range first.Edges {
		sb.WriteString("\t\"" + e.From + "\" -> \"" + e.To + "\";\n")
	}
	sb.WriteString("}\n")

	second, err := Parse(strings.NewReader(sb.String()), "libfoo")
	if err != nil {
		t.Fatalf("Parse() on canonical form unexpected error: %v", err)
	}
	if !reflect.DeepEqual(second.Nodes, first.Nodes) {
		t.Errorf("Nodes changed on reparse: %v != %v", second.Nodes, first.Nodes)
	}
	if !reflect.DeepEqual(second.Edges, first.Edges) {
		t.Errorf("Edges changed on reparse: %v != %v", second.Edges, first.Edges)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"main"`, "main"},
		{`{main}`, "main"},
		{`{foo.c:10:\l  %1 = alloca\l}`, "foo.c:10"},
		{`{foo.c:15:|{<s0>T|<s1>F}}`, "foo.c:15"},
		{"parse_input", "parse_input"},
		{"  spaced  ", "spaced"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := CleanName(tt.in); got != tt.want {
				t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
