// Covctl is the command-line client for coverage runs. It queries and
// streams events from a running process's status server, and it merges and
// summarizes the partition files a run leaves behind.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/large-farva/coverage-engine/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8090", "Coverage status server URL")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,progress)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --top are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Live process ──────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "catalog":
		err = ctl.CatalogInfo(*host, *jsonOut)

	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	// ── Output files ──────────────────────────────────────────────
	case "merge":
		opts := ctl.MergeOptions{JSON: *jsonOut}
		mergeFlags := pflag.NewFlagSet("merge", pflag.ContinueOnError)
		mergeFlags.StringVarP(&opts.Output, "out", "o", "", "Merged output file (.zst to compress; stdout when empty)")
		mergeFlags.StringVar(&opts.Dir, "dir", ".", "Directory holding the partition files")
		mergeFlags.StringVar(&opts.Kind, "kind", "h3", "Grid kind of the run (h3 or s2)")
		mergeFlags.IntVar(&opts.Resolution, "res", 4, "Grid resolution of the run")
		mergeFlags.IntVar(&opts.Partitions, "partitions", 4, "Number of partitions in the run")
		mergeFlags.BoolVar(&opts.Compress, "compressed", false, "Partition files are zstd-compressed")
		if err := mergeFlags.Parse(subArgs); err != nil {
			os.Exit(2)
		}
		opts.Inputs = mergeFlags.Args()
		err = ctl.Merge(opts)

	case "summary":
		opts := ctl.SummaryOptions{JSON: *jsonOut}
		sumFlags := pflag.NewFlagSet("summary", pflag.ContinueOnError)
		sumFlags.IntVar(&opts.Top, "top", 10, "Number of most visited cells to list")
		sumFlags.StringVar(&opts.Kind, "kind", "", "Grid kind (inferred from the file name when empty)")
		if err := sumFlags.Parse(subArgs); err != nil {
			os.Exit(2)
		}
		if sumFlags.NArg() != 1 {
			usage()
			os.Exit(2)
		}
		err = ctl.Summary(sumFlags.Arg(0), opts)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  covctl - coverage engine control CLI

  USAGE
    covctl [flags] <command> [command-flags] [args]

  COMMANDS (live process)
    status          Show run state, window, and progress
    health          Check process and component health
    version         Show CLI and server version information
    config          Show the running configuration
    catalog         Show catalog cache status and freshness
    watch           Stream live events (Ctrl-C to stop)

  COMMANDS (output files)
    merge [FILE...]       Sum partition files into one coverage map
    summary FILE          Show count statistics and the most visited cells

  GLOBAL FLAGS
    -H, --host URL      Status server URL (default: http://127.0.0.1:8090)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    merge:
        -o, --out FILE      Merged output file (stdout when empty)
        --dir DIR           Directory holding the partition files (default: .)
        --kind KIND         Grid kind of the run (default: h3)
        --res N             Grid resolution of the run (default: 4)
        --partitions N      Number of partitions (default: 4)
        --compressed        Partition files end in .zst

    summary:
        --top N             Most visited cells to list (default: 10)
        --kind KIND         Grid kind, when the file name does not say

  EXAMPLES
    covctl status
    covctl --json status
    covctl --host http://10.0.0.5:8090 watch --filter state,progress
    covctl merge --dir out --res 4 --partitions 4 -o h3_4_cov.txt
    covctl merge out/s2_9_cov_0.txt out/s2_9_cov_1.txt > s2_9_cov.txt
    covctl summary --top 20 out/h3_4_cov_0.txt

`)
}
