package ctl

import (
	"fmt"
	"strings"
	"time"
)

// CatalogInfo shows the catalog cache state of a running process.
func CatalogInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Path       string `json:"path"`
		Exists     bool   `json:"exists"`
		Fresh      bool   `json:"fresh"`
		ModTime    string `json:"mod_time"`
		AgeS       int    `json:"age_s"`
		Size       int64  `json:"size"`
		SourceURL  string `json:"source_url"`
		Format     string `json:"format"`
		Backend    string `json:"backend"`
		NamePrefix string `json:"name_prefix"`
		MaxAgeH    int    `json:"max_age_hours"`
		Satellites int    `json:"satellites"`
	}
	if err := getJSON(baseURL, "/api/catalog", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  CATALOG CACHE"))
	fmt.Fprintln(stdout, rule(50))
	fmt.Fprintf(stdout, "  Cache file: %s\n", resp.Path)

	if !resp.Exists {
		fmt.Fprintf(stdout, "  Status:     %s\n", colorize(red, "NOT FOUND"))
		fmt.Fprintf(stdout, "  Source:     %s\n", resp.SourceURL)
		fmt.Fprintln(stdout)
		return nil
	}

	if resp.Fresh {
		fmt.Fprintf(stdout, "  Status:     %s\n", colorize(green, "FRESH"))
	} else {
		fmt.Fprintf(stdout, "  Status:     %s\n", colorize(yellow, "STALE"))
	}

	age := time.Duration(resp.AgeS) * time.Second
	fmt.Fprintf(stdout, "  Age:        %s\n", formatDuration(age))
	fmt.Fprintf(stdout, "  Last fetch: %s\n", resp.ModTime)
	fmt.Fprintf(stdout, "  Max age:    %dh\n", resp.MaxAgeH)
	fmt.Fprintf(stdout, "  Size:       %s\n", formatBytes(resp.Size))
	fmt.Fprintf(stdout, "  Format:     %s via %s\n", resp.Format, resp.Backend)
	if resp.NamePrefix != "" {
		fmt.Fprintf(stdout, "  Prefix:     %s\n", resp.NamePrefix)
	}
	fmt.Fprintf(stdout, "  Satellites: %d propagated\n", resp.Satellites)
	fmt.Fprintf(stdout, "  Source:     %s\n", resp.SourceURL)
	fmt.Fprintln(stdout)
	return nil
}
