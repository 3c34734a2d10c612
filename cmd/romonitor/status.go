package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/romonitor/internal/domain"
	"github.com/hamed0406/romonitor/internal/scheduler"
	"github.com/hamed0406/romonitor/internal/tracker"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest cycle and unhealthy sites of a running monitor",
		RunE:  runStatus,
	}
	cmd.Flags().String("api", "", "status API base URL (default $STATUS_API_BASE or http://localhost:8081)")
	cmd.Flags().String("api-key", "", "status API key (default $STATUS_API_KEY)")
	return cmd
}

type statusClient struct {
	base string
	key  string
	http *http.Client
}

func (c *statusClient) getJSON(path string, v any) (int, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, err
	}
	if c.key != "" {
		req.Header.Set("X-API-Key", c.key)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(v)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	base, _ := cmd.Flags().GetString("api")
	if base == "" {
		base = os.Getenv("STATUS_API_BASE")
	}
	if base == "" {
		base = "http://localhost:8081"
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	key, _ := cmd.Flags().GetString("api-key")
	if key == "" {
		key = os.Getenv("STATUS_API_KEY")
	}
	c := &statusClient{base: strings.TrimRight(base, "/"), key: key, http: &http.Client{Timeout: 10 * time.Second}}
	out := cmd.OutOrStdout()

	var rep scheduler.CycleReport
	code, err := c.getJSON("/api/cycles/latest", &rep)
	if code == http.StatusNotFound {
		_, _ = fmt.Fprintln(out, "No cycle has completed yet.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("contact monitor at %s: %w", c.base, err)
	}
	_, _ = fmt.Fprintf(out, "Cycle %d at %s: %d sites, %d healthy, %d partial, %d offline, %d incidents\n",
		rep.Cycle, rep.StartedAt.Format(time.RFC3339), rep.Sites, rep.Healthy, rep.Partial, rep.Offline, rep.Incidents)
	if rep.Skipped {
		_, _ = fmt.Fprintf(out, "Cycle skipped: %s\n", rep.Error)
	}

	var sites []tracker.Entry
	if _, err := c.getJSON("/api/sites", &sites); err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := false
	for _, s := range sites {
		if s.LastStatus == domain.Healthy {
			continue
		}
		if !header {
			_, _ = fmt.Fprintln(tw, "SITE\tSTATUS\tUNHEALTHY CYCLES")
			header = true
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", s.Code, s.LastStatus, s.ConsecutiveUnhealthy)
	}
	return tw.Flush()
}
