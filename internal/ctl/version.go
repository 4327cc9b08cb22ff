package ctl

import (
	"fmt"
	"strings"
)

// Build-time variables set via -ldflags.
var (
	Version   = "dev"
	GoVersion = "unknown"
)

// VersionInfo fetches the process version via GET /api/version and displays
// both the CLI and server version information.
func VersionInfo(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var server struct {
		Version   string `json:"version"`
		GoVersion string `json:"go_version"`
		BuiltAt   string `json:"built_at"`
		Runtime   string `json:"runtime"`
	}
	serverErr := getJSON(baseURL, "/api/version", &server)

	if jsonOutput {
		resp := map[string]any{
			"cli": map[string]any{
				"version":    Version,
				"go_version": GoVersion,
			},
		}
		if serverErr == nil {
			resp["server"] = server
		} else {
			resp["server_error"] = serverErr.Error()
		}
		return printJSON(resp)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, header("  COVERAGE VERSION"))
	fmt.Fprintln(stdout, rule(38))
	fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "CLI:"), Version+" ("+GoVersion+")")
	if serverErr != nil {
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Server:"), colorize(red, "unreachable: "+serverErr.Error()))
	} else {
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Server:"), server.Version+" ("+server.GoVersion+")")
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Built:"), server.BuiltAt)
		fmt.Fprintf(stdout, "  %-12s %s\n", colorize(dim, "Runtime:"), server.Runtime)
	}
	fmt.Fprintln(stdout)

	return nil
}
