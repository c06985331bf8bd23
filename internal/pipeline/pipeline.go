package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julianzuo526/pathfuzz/internal/config"
	"github.com/julianzuo526/pathfuzz/internal/log"
	"github.com/julianzuo526/pathfuzz/pkg/distance"
	"github.com/julianzuo526/pathfuzz/pkg/graph"
	"github.com/julianzuo526/pathfuzz/pkg/targets"
)

// Filenames inside the temp directory. Inputs come from the build
// instrumentation, outputs feed the fuzzer.
const (
	fnamesFile       = "Fnames.txt"
	ftargetsFile     = "Ftargets.txt"
	bbnamesFile      = "BBnames.txt"
	bbtargetsFile    = "BBtargets.txt"
	bbcallsFile      = "BBcalls.txt"
	whitelistFile    = "instrumented_funcs.txt"
	dumpDirName      = "dot-files"
	callGraphBinFile = "callgraph.bin"
	funcDistFile     = "distance.callgraph.txt"
	blockDistFile    = "distance.cfg.txt"
)

// inputFiles are the read-only inputs whose content gates checkpoint
// validity, in hashing order.
var inputFiles = []string{
	fnamesFile, ftargetsFile, bbnamesFile, bbtargetsFile, bbcallsFile, whitelistFile,
}

// Options configures a pipeline run.
type Options struct {
	// BinariesDir holds the bytecode artifacts (*.bc).
	BinariesDir string
	// TempDir holds the instrumentation inputs and receives all outputs,
	// logs, and the checkpoint.
	TempDir string
	// Source selects whole-program or single-fuzzer extraction.
	Source GraphSource
	// Config supplies extraction and aggregation settings. Nil means
	// defaults.
	Config *config.Config
}

// Orchestrator drives the two-step distance pipeline: call-graph
// distances first, then basic-block distances built on top of them. Each
// completed step persists a checkpoint so a failed run resumes where it
// stopped instead of re-extracting everything.
//
// A temp directory belongs to one run at a time. Concurrent runs against
// the same directory race on the checkpoint and the dump files.
type Orchestrator struct {
	opts   Options
	cfg    *config.Config
	agg    distance.Aggregator
	logger log.Logger
}

// New validates the options and builds an orchestrator. Missing
// directories and an unknown aggregation strategy are usage errors.
func New(opts Options) (*Orchestrator, error) {
	if info, err := os.Stat(opts.BinariesDir); err != nil || !info.IsDir() {
		return nil, usagef("binaries directory %s does not exist", opts.BinariesDir)
	}
	if info, err := os.Stat(opts.TempDir); err != nil || !info.IsDir() {
		return nil, usagef("temp directory %s does not exist", opts.TempDir)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	agg, err := distance.AggregatorByName(cfg.Aggregation)
	if err != nil {
		return nil, usagef("invalid aggregation: %v", err)
	}
	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	return &Orchestrator{
		opts:   opts,
		cfg:    cfg,
		agg:    agg,
		logger: log.New(log.LoggerConfig{Level: level}),
	}, nil
}

type step struct {
	num  int
	name string
	// output is the file the step must leave non-empty in the temp
	// directory. An empty output means the step produced no signal and
	// counts as a failure even if it exited cleanly.
	output string
	run    func(ctx context.Context, logger log.Logger) error
}

// Run executes the pipeline, skipping steps a valid checkpoint already
// covers. A checkpoint whose input hash no longer matches is stale and
// is discarded with a warning.
func (o *Orchestrator) Run(ctx context.Context) error {
	hash, err := hashInputs(o.opts.TempDir, inputFiles)
	if err != nil {
		return err
	}

	done := 0
	cp, err := loadCheckpoint(o.opts.TempDir)
	if err != nil {
		return err
	}
	if cp != nil {
		if cp.InputsHash == hash {
			done = cp.Step
			o.logger.Info("resuming from checkpoint", "step", cp.Step, "name", cp.Name)
		} else {
			o.logger.Warn("checkpoint is stale, restarting from scratch",
				"step", cp.Step, "checkpoint_hash", cp.InputsHash, "inputs_hash", hash)
		}
	}

	steps := []step{
		{num: 1, name: "callgraph", output: funcDistFile, run: o.stepCallGraph},
		{num: 2, name: "cfg", output: blockDistFile, run: o.stepCFG},
	}
	for _, s := range steps {
		if s.num <= done {
			o.logger.Debug("skipping completed step", "step", s.num, "name", s.name)
			continue
		}
		if err := o.runStep(ctx, s); err != nil {
			return err
		}
		cp := &Checkpoint{Step: s.num, Name: s.name, InputsHash: hash, UpdatedAt: time.Now().UTC()}
		if err := cp.save(o.opts.TempDir); err != nil {
			return err
		}
	}
	o.logger.Info("distance pipeline complete",
		"functions", funcDistFile, "blocks", blockDistFile)
	return nil
}

func (o *Orchestrator) runStep(ctx context.Context, s step) error {
	logPath := filepath.Join(o.opts.TempDir, fmt.Sprintf("step%d.log", s.num))
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating step log: %w", err)
	}
	defer logFile.Close()

	level := log.InfoLevel
	if o.cfg.Verbose {
		level = log.DebugLevel
	}
	logger := log.New(log.LoggerConfig{
		Level:  level,
		Output: io.MultiWriter(os.Stderr, logFile),
	})
	logger.Info("starting step", "step", s.num, "name", s.name)

	err = s.run(ctx, logger)
	if err == nil {
		outPath := filepath.Join(o.opts.TempDir, s.output)
		if info, statErr := os.Stat(outPath); statErr != nil || info.Size() == 0 {
			err = fmt.Errorf("step produced no output at %s", outPath)
		}
	}
	if err != nil {
		logger.Error("step failed", "step", s.num, "name", s.name, "error", err)
		return &StepError{
			Step:    s.num,
			Name:    s.name,
			LogTail: logTail(logPath, 20),
			Resume:  o.resumeCommand(),
			Err:     err,
		}
	}
	logger.Info("step complete", "step", s.num, "name", s.name)
	return nil
}

func (o *Orchestrator) resumeCommand() string {
	cmd := fmt.Sprintf("pathfuzz run %s %s", o.opts.BinariesDir, o.opts.TempDir)
	if name, single := o.opts.Source.Single(); single {
		cmd += " " + name
	}
	return cmd
}

// stepCallGraph extracts and merges the call graphs, then computes
// function-level distances.
func (o *Orchestrator) stepCallGraph(ctx context.Context, logger log.Logger) error {
	artifacts, err := resolveArtifacts(o.opts.BinariesDir, o.opts.Source)
	if err != nil {
		return err
	}
	logger.Info("resolved bytecode artifacts",
		"source", o.opts.Source.String(), "count", len(artifacts))

	dumpDir := filepath.Join(o.opts.TempDir, dumpDirName)
	if err := os.MkdirAll(dumpDir, 0755); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}

	ex := &Extractor{
		Command:     o.cfg.ExtractCommand,
		MaxAttempts: o.cfg.MaxExtractAttempts,
		Backoff:     o.cfg.ExtractBackoff,
		Logger:      logger,
	}

	var graphs []*graph.Graph
	for _, artifact := range artifacts {
		base := filepath.Base(artifact)
		dumpPath := filepath.Join(dumpDir, base+".callgraph.dot")
		if info, err := os.Stat(dumpPath); err != nil || info.Size() == 0 {
			logger.Info("extracting call graph", "artifact", base)
			if dumpPath, err = ex.CallGraphDump(ctx, artifact, dumpDir); err != nil {
				return err
			}
		} else {
			logger.Debug("reusing existing call-graph dump", "dump", dumpPath)
		}
		g, err := graph.ParseFile(dumpPath, artifactBase(base))
		if err != nil {
			return fmt.Errorf("parsing call graph of %s: %w", base, err)
		}
		logger.Debug("parsed call graph",
			"artifact", base, "nodes", g.NodeCount(), "edges", g.EdgeCount())
		graphs = append(graphs, g)
	}

	mergedName := "program"
	if name, single := o.opts.Source.Single(); single {
		mergedName = name
	}
	merged := graph.Merge(mergedName, graphs...)
	logger.Info("merged call graph",
		"name", mergedName, "nodes", merged.NodeCount(), "edges", merged.EdgeCount())

	if err := merged.WriteFile(filepath.Join(o.opts.TempDir, callGraphBinFile)); err != nil {
		return err
	}

	fnames, err := targets.ReadNames(filepath.Join(o.opts.TempDir, fnamesFile))
	if err != nil {
		return err
	}
	ftargets, err := targets.ReadNames(filepath.Join(o.opts.TempDir, ftargetsFile))
	if err != nil {
		return err
	}
	if len(ftargets) == 0 {
		return fmt.Errorf("no target functions in %s", ftargetsFile)
	}

	rows, err := distance.FunctionDistances(merged, fnames, ftargets, o.agg)
	if err != nil {
		return err
	}
	logger.Info("computed function distances",
		"functions", len(fnames), "targets", len(ftargets), "reachable", len(rows))
	return writeDistances(filepath.Join(o.opts.TempDir, funcDistFile), rows)
}

// stepCFG computes basic-block distances for each instrumented function's
// control-flow graph, bridging through call sites using the function
// distances step 1 produced.
func (o *Orchestrator) stepCFG(ctx context.Context, logger log.Logger) error {
	funcDist, err := readDistances(filepath.Join(o.opts.TempDir, funcDistFile))
	if err != nil {
		return err
	}

	whitelist, hasWhitelist, err := targets.ReadWhitelist(filepath.Join(o.opts.TempDir, whitelistFile))
	if err != nil {
		return err
	}
	if hasWhitelist {
		logger.Info("restricting to instrumented functions", "count", len(whitelist))
	}

	bbnames, err := targets.ReadBlockNames(filepath.Join(o.opts.TempDir, bbnamesFile))
	if err != nil {
		return err
	}
	bbtargets, err := targets.ReadNames(filepath.Join(o.opts.TempDir, bbtargetsFile))
	if err != nil {
		return err
	}
	calls, discarded, err := targets.ReadCallSites(filepath.Join(o.opts.TempDir, bbcallsFile))
	if err != nil {
		return err
	}
	if discarded > 0 {
		logger.Warn("discarded malformed call-site records",
			"file", bbcallsFile, "count", discarded)
	}

	wanted := make(map[string]struct{}, len(bbnames))
	for _, n := range bbnames {
		wanted[n] = struct{}{}
	}

	dumps, err := filepath.Glob(filepath.Join(o.opts.TempDir, dumpDirName, "cfg.*.dot"))
	if err != nil {
		return err
	}
	sort.Strings(dumps)
	if len(dumps) == 0 {
		return fmt.Errorf("no control-flow graphs (cfg.*.dot) in %s",
			filepath.Join(o.opts.TempDir, dumpDirName))
	}

	var rows []distance.Row
	processed := 0
	for _, dump := range dumps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		fn := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(dump), "cfg."), ".dot")
		if hasWhitelist {
			if _, ok := whitelist[fn]; !ok {
				logger.Debug("skipping function outside instrumented set", "function", fn)
				continue
			}
		}
		g, err := graph.ParseFile(dump, fn)
		if err != nil {
			logger.Warn("skipping unparsable control-flow graph",
				"function", fn, "error", err)
			continue
		}

		var universe []string
		for _, n := range g.Nodes {
			if _, ok := wanted[n]; ok {
				universe = append(universe, n)
			}
		}
		fnRows := distance.BlockDistances(g, universe, bbtargets, calls, funcDist, o.agg)
		rows = append(rows, fnRows...)
		processed++
		logger.Debug("computed block distances",
			"function", fn, "blocks", len(universe), "reachable", len(fnRows))
	}
	if len(rows) == 0 {
		return fmt.Errorf("no basic block reaches any target")
	}
	logger.Info("computed basic-block distances",
		"functions", processed, "blocks", len(rows))
	return writeDistances(filepath.Join(o.opts.TempDir, blockDistFile), rows)
}

// writeDistances emits rows as "name,distance" lines.
func writeDistances(path string, rows []distance.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, r := range rows {
		fmt.Fprintf(w, "%s,%s\n", r.Name, strconv.FormatFloat(r.Distance, 'f', -1, 64))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// readDistances parses a "name,distance" file back into a lookup map.
func readDistances(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	dist := make(map[string]float64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		name, val, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("malformed distance record in %s: %q", path, line)
		}
		d, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed distance value in %s: %q", path, line)
		}
		dist[name] = d
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return dist, nil
}

// logTail returns the last n lines of a log file for error reports.
func logTail(path string, n int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
