package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/romonitor/internal/config"
	"github.com/hamed0406/romonitor/internal/repo/csvfile"
	"github.com/hamed0406/romonitor/internal/repo/postgres"
)

func newPreflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check config, inventory and sinks without monitoring",
		RunE:  runPreflight,
	}
}

func runPreflight(cmd *cobra.Command, _ []string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	failed := 0
	ok := func(format string, a ...any) { fmt.Fprintf(out, "✔ "+format+"\n", a...) }
	warn := func(format string, a ...any) { fmt.Fprintf(errOut, "⚠ "+format+"\n", a...) }
	fail := func(format string, a ...any) {
		failed++
		fmt.Fprintf(errOut, "✖ "+format+"\n", a...)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		fail("%v", err)
		return fmt.Errorf("preflight failed")
	}
	ok("config valid (interval=%s threshold=%d emit_mode=%s probe=%s)",
		cfg.CycleInterval(), cfg.ThresholdCycles, cfg.EmitMode, cfg.ProbeMethod)

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	sites, err := csvfile.NewInventory(cfg.InventoryPath, zap.NewNop()).Snapshot(ctx)
	switch {
	case err != nil:
		fail("inventory: %v", err)
	case len(sites) == 0:
		warn("inventory %s has no usable sites; every cycle will be empty.", cfg.InventoryPath)
	default:
		dual := 0
		for _, s := range sites {
			if s.DualHomed() {
				dual++
			}
		}
		ok("inventory %s: %d sites (%d dual-homed)", cfg.InventoryPath, len(sites), dual)
	}

	if err := checkWritableDir(filepath.Dir(cfg.IncidentLogPath)); err != nil {
		fail("incident log directory: %v", err)
	} else {
		ok("incident log %s writable", cfg.IncidentLogPath)
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty; incidents go to the CSV log only.")
	} else if store, err := postgres.New(ctx, cfg.DatabaseURL, zap.NewNop()); err != nil {
		fail("database: %v", err)
	} else {
		store.Close()
		ok("database reachable, schema ready")
	}

	if cfg.BandwidthTestURL == "" {
		warn("bandwidth_test_url empty; incidents will carry bandwidth 0.")
	} else {
		ok("bandwidth_test_url=%s", cfg.BandwidthTestURL)
	}

	if cfg.ProbeMethod == config.ProbeICMP && !cfg.ICMPPrivileged {
		warn("unprivileged ICMP needs net.ipv4.ping_group_range to include this user on Linux.")
	}

	switch {
	case cfg.StatusAddr == "":
		ok("status API disabled")
	case len(cfg.StatusAPIKeys) == 0:
		warn("status API on %s has no keys; anyone who can reach it can read site state.", cfg.StatusAddr)
	default:
		ok("status API on %s (%d keys)", cfg.StatusAddr, len(cfg.StatusAPIKeys))
	}

	if failed > 0 {
		return fmt.Errorf("preflight failed: %d problem(s)", failed)
	}
	ok("preflight passed")
	return nil
}

func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".romonitor-preflight-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
