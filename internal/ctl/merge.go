package ctl

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/large-farva/coverage-engine/internal/coverage"
)

// MergeOptions selects the partition files to combine and where to put the
// result.
type MergeOptions struct {
	// Inputs lists the files to merge. When empty, the files are derived
	// from Dir, Kind, Resolution, Partitions and Compress.
	Inputs     []string
	Dir        string
	Kind       string
	Resolution int
	Partitions int
	Compress   bool

	// Output is the merged file. Empty writes "cell,count" lines to stdout.
	Output string
	JSON   bool
}

// partitionPaths lists the per-process files of one run.
func (o MergeOptions) partitionPaths() []string {
	paths := make([]string, 0, o.Partitions)
	for p := 0; p < o.Partitions; p++ {
		paths = append(paths, filepath.Join(o.Dir, coverage.FileName(o.Kind, o.Resolution, p, o.Compress)))
	}
	return paths
}

// Merge sums the visit counts of every partition into one coverage map.
// Partitions that were never written are reported and skipped.
func Merge(opts MergeOptions) error {
	inputs := opts.Inputs
	if len(inputs) == 0 {
		if opts.Partitions < 1 {
			return errors.New("no input files and no partition count given")
		}
		inputs = opts.partitionPaths()
	}

	merged, missing, err := coverage.MergeFiles(inputs)
	if err != nil {
		return err
	}
	if len(missing) == len(inputs) {
		return fmt.Errorf("none of the %d input files exist", len(inputs))
	}

	if opts.Output == "" {
		for _, m := range missing {
			fmt.Fprintf(stderr, "merge: missing %s\n", m)
		}
		return merged.Write(stdout)
	}
	if err := merged.WriteFile(opts.Output); err != nil {
		return err
	}

	st := merged.Stats()
	if opts.JSON {
		return printJSON(map[string]any{
			"output":  opts.Output,
			"inputs":  len(inputs) - len(missing),
			"missing": missing,
			"stats":   st,
		})
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  MERGED COVERAGE"))
	fmt.Fprintln(stdout, rule(50))
	fmt.Fprintf(stdout, "  %-12s %d of %d\n", colorize(dim, "Inputs:"), len(inputs)-len(missing), len(inputs))
	for _, m := range missing {
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(yellow, "missing:"), m)
	}
	fmt.Fprintf(stdout, "  %-12s %d\n", colorize(dim, "Cells:"), st.Cells)
	fmt.Fprintf(stdout, "  %-12s %d..%d (mean %.1f)\n", colorize(dim, "Counts:"), st.Min, st.Max, st.Mean)
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Output:"), opts.Output)
	fmt.Fprintln(stdout)
	return nil
}
