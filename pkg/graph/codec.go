package graph

import (
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// Save writes the canonical graph to w using msgpack. The encoded form
// carries only Name, Nodes and Edges; the dedup indexes are rebuilt on
// load.
func (g *Graph) Save(w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encoding graph %q: %w", g.Name, err)
	}
	return nil
}

// Load restores a canonical graph from r.
func Load(r io.Reader) (*Graph, error) {
	g := &Graph{}
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(g); err != nil {
		return nil, fmt.Errorf("decoding graph: %w", err)
	}
	g.reindex()
	return g, nil
}

// WriteFile persists the graph artifact to path.
func (g *Graph) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating graph artifact: %w", err)
	}
	defer f.Close()

	if err := g.Save(f); err != nil {
		return err
	}
	return f.Close()
}

// ReadFile loads a graph artifact from path.
func ReadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening graph artifact: %w", err)
	}
	defer f.Close()
	return Load(f)
}
