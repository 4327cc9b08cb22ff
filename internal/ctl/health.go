package ctl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Health checks liveness and component health via GET /healthz.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	status, body, err := getRaw(baseURL, "/healthz", "application/json")
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	var detail struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(body, &detail); err != nil {
		// Plain "ok" from an older server.
		detail.Healthy = status == 200
	}

	if jsonOutput {
		return printJSON(map[string]any{"healthy": detail.Healthy, "url": baseURL, "checks": detail.Checks})
	}

	fmt.Fprintln(stdout)
	if detail.Healthy {
		fmt.Fprintf(stdout, "  %s  coverage is reachable at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Fprintf(stdout, "  %s  coverage returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(detail.Checks))
	for name := range detail.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := detail.Checks[name]
		mark := colorize(dim, "  -  ")
		if ok, present := c["ok"].(bool); present {
			if ok {
				mark = colorize(green, " ok  ")
			} else {
				mark = colorize(red, "FAIL ")
			}
		}
		extra := ""
		if e, _ := c["error"].(string); e != "" {
			extra = e
		} else if p, _ := c["path"].(string); p != "" {
			extra = p
		}
		fmt.Fprintf(stdout, "    %s %s %s\n", mark, padRight(name, 14), colorize(dim, extra))
	}
	fmt.Fprintln(stdout)

	return nil
}
