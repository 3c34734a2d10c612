package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hamed0406/romonitor/internal/config"
)

// NewRootCmd builds the romonitor command tree. With no subcommand it runs
// the monitor.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "romonitor",
		Short:         "Retail outlet network monitor",
		Long:          "romonitor probes the primary and secondary uplinks of every retail outlet, tracks sustained outages and records incidents.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMonitor,
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "path to YAML config file")
	pf.String("inventory", "", "site inventory CSV (overrides inventory_path)")
	pf.String("incident-log", "", "incident CSV log (overrides incident_log_path)")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.Int("interval", 0, "seconds between cycle starts")
	pf.Int("threshold", 0, "consecutive unhealthy cycles before an incident")
	pf.String("probe-method", "", "icmp or tcp")
	pf.String("status-addr", "", "listen address for the status API")

	root.AddCommand(
		newRunCmd(),
		newPreflightCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig layers file, env and explicitly set flags, then validates.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := config.Read(path)
	if err != nil {
		return cfg, err
	}

	if f.Changed("inventory") {
		cfg.InventoryPath, _ = f.GetString("inventory")
	}
	if f.Changed("incident-log") {
		cfg.IncidentLogPath, _ = f.GetString("incident-log")
	}
	if f.Changed("log-level") {
		cfg.LogLevel, _ = f.GetString("log-level")
	}
	if f.Changed("interval") {
		cfg.CycleIntervalSeconds, _ = f.GetInt("interval")
	}
	if f.Changed("threshold") {
		cfg.ThresholdCycles, _ = f.GetInt("threshold")
	}
	if f.Changed("probe-method") {
		cfg.ProbeMethod, _ = f.GetString("probe-method")
	}
	if f.Changed("status-addr") {
		cfg.StatusAddr, _ = f.GetString("status-addr")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
