package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/julianzuo526/pathfuzz/pkg/graph"
)

// GraphOutput represents the output of the graph command
type GraphOutput struct {
	Name  string       `json:"name"`
	Stats GraphStats   `json:"stats"`
	Edges []graph.Edge `json:"edges,omitempty"`
}

// GraphStats represents statistics about a call graph
type GraphStats struct {
	Nodes     int `json:"nodes"`
	Edges     int `json:"edges"`
	SelfLoops int `json:"self_loops"`
}

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <temp-dir>",
	Short: "Inspect a persisted call graph",
	Long: `Loads the call graph the pipeline persisted to
<temp-dir>/callgraph.bin and prints its statistics. Useful for checking
what the merge actually produced before trusting the distances built on
it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := graph.ReadFile(filepath.Join(args[0], "callgraph.bin"))
		if err != nil {
			return fmt.Errorf("loading call graph: %w", err)
		}

		selfLoops := 0
		for _, e := range g.Edges {
			if e.From == e.To {
				selfLoops++
			}
		}
		out := GraphOutput{
			Name: g.Name,
			Stats: GraphStats{
				Nodes:     g.NodeCount(),
				Edges:     g.EdgeCount(),
				SelfLoops: selfLoops,
			},
		}
		withEdges, _ := cmd.Flags().GetBool("edges")
		if withEdges {
			out.Edges = g.Edges
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Name: %s\n", out.Name)
		fmt.Printf("Nodes: %d\n", out.Stats.Nodes)
		fmt.Printf("Edges: %d\n", out.Stats.Edges)
		fmt.Printf("Self loops: %d\n", out.Stats.SelfLoops)
		for _, e := range out.Edges {
			fmt.Printf("%s -> %s\n", e.From, e.To)
		}
		return nil
	},
}

func init() {
	graphCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	graphCmd.Flags().Bool("edges", false, "List edges")
}
