package ctl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/large-farva/coverage-engine/internal/coverage"
	"github.com/large-farva/coverage-engine/internal/grid"
)

// SummaryOptions controls the summary command.
type SummaryOptions struct {
	Top  int    // cells to list, most visited first
	Kind string // grid kind; inferred from the file name when empty
	JSON bool
}

type topCell struct {
	Cell  string   `json:"cell"`
	Count int      `json:"count"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
}

type bucket struct {
	Min   int `json:"min"`
	Max   int `json:"max"`
	Cells int `json:"cells"`
}

// Summary reads a coverage file and prints count statistics, a coarse
// histogram, and the most visited cells with their centers.
func Summary(path string, opts SummaryOptions) error {
	cov, err := coverage.ReadFile(path)
	if err != nil {
		return err
	}

	kind := opts.Kind
	if kind == "" {
		kind, _, _, _, _ = coverage.ParseFileName(path)
	}

	st := cov.Stats()
	entries := cov.Entries()
	hist := histogram(entries, st, 8)
	top := topCells(entries, opts.Top, kind)

	if opts.JSON {
		return printJSON(map[string]any{
			"path":      path,
			"kind":      kind,
			"stats":     st,
			"histogram": hist,
			"top":       top,
		})
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  COVERAGE SUMMARY"))
	fmt.Fprintln(stdout, rule(50))
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "File:"), path)
	fmt.Fprintf(stdout, "  %-12s %d\n", colorize(dim, "Cells:"), st.Cells)
	fmt.Fprintf(stdout, "  %-12s %d\n", colorize(dim, "Visits:"), st.Total)
	fmt.Fprintf(stdout, "  %-12s %d..%d (mean %.1f)\n", colorize(dim, "Counts:"), st.Min, st.Max, st.Mean)

	if len(hist) > 0 {
		fmt.Fprintln(stdout)
		widest := 0
		for _, b := range hist {
			widest = max(widest, b.Cells)
		}
		for _, b := range hist {
			pct := 0
			if widest > 0 {
				pct = 100 * b.Cells / widest
			}
			fmt.Fprintf(stdout, "  %s [%s] %d\n",
				padRight(fmt.Sprintf("%d-%d", b.Min, b.Max), 12), progressBar(pct, 30), b.Cells)
		}
	}

	if len(top) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "  %s %s %s\n",
			colorize(dim, padRight("Cell", 18)), colorize(dim, padRight("Count", 8)), colorize(dim, "Center"))
		for _, c := range top {
			center := "-"
			if c.Lat != nil {
				center = fmt.Sprintf("%.3f, %.3f", *c.Lat, *c.Lng)
			}
			fmt.Fprintf(stdout, "  %s %s %s\n", padRight(c.Cell, 18), padRight(fmt.Sprint(c.Count), 8), center)
		}
	}
	fmt.Fprintln(stdout)
	return nil
}

// histogram splits [Min, Max] into at most n equal-width count ranges.
func histogram(entries []coverage.Entry, st coverage.Stats, n int) []bucket {
	if len(entries) == 0 {
		return nil
	}
	span := st.Max - st.Min + 1
	width := (span + n - 1) / n
	buckets := make([]bucket, 0, n)
	for lo := st.Min; lo <= st.Max; lo += width {
		buckets = append(buckets, bucket{Min: lo, Max: min(lo+width-1, st.Max)})
	}
	for _, e := range entries {
		buckets[(e.Count-st.Min)/width].Cells++
	}
	return buckets
}

// topCells returns the n most visited cells, ties broken by cell id.
func topCells(entries []coverage.Entry, n int, kind string) []topCell {
	if n <= 0 {
		return nil
	}
	sorted := make([]coverage.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]topCell, 0, len(sorted))
	for _, e := range sorted {
		tc := topCell{Cell: string(e.Cell), Count: e.Count}
		if ll, err := grid.Center(strings.ToLower(kind), e.Cell); err == nil {
			lat, lng := ll.Lat.Degrees(), ll.Lng.Degrees()
			tc.Lat, tc.Lng = &lat, &lng
		}
		out = append(out, tc)
	}
	return out
}
