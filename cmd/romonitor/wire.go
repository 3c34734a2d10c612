package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/romonitor/internal/bandwidth"
	"github.com/hamed0406/romonitor/internal/config"
	"github.com/hamed0406/romonitor/internal/httpapi"
	"github.com/hamed0406/romonitor/internal/probe"
	"github.com/hamed0406/romonitor/internal/repo"
	"github.com/hamed0406/romonitor/internal/repo/csvfile"
	"github.com/hamed0406/romonitor/internal/repo/postgres"
	"github.com/hamed0406/romonitor/internal/scheduler"
	"github.com/hamed0406/romonitor/internal/tracker"
)

type app struct {
	monitor *scheduler.Monitor
	status  *httpapi.Server // nil when the status API is disabled
	closers []func() error
}

func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

// buildApp wires the monitor from cfg. Any error here is fatal at startup.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	inv := csvfile.NewInventory(cfg.InventoryPath, logger)
	sites, err := inv.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	logger.Info("inventory_loaded", zap.String("path", cfg.InventoryPath), zap.Int("sites", len(sites)))

	incidentLog, err := csvfile.OpenIncidentLog(cfg.IncidentLogPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, incidentLog.Close)
	pub := repo.MultiPublisher{incidentLog}

	if cfg.DatabaseURL != "" {
		store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("open database: %w", err), a.Close())
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		pub = append(pub, store)
	}

	tr := tracker.New(tracker.Policy{
		Threshold:      cfg.ThresholdCycles,
		Mode:           tracker.EmitMode(cfg.EmitMode),
		ReminderCycles: cfg.ReminderCycles,
	})

	a.monitor = scheduler.NewMonitor(logger, inv, newProber(cfg), bandwidth.NewSampler(), tr, pub, scheduler.Options{
		Interval:      cfg.CycleInterval(),
		CycleDeadline: cfg.CycleDeadline(),
		ProbeDeadline: cfg.ProbeDeadline(),
		MaxInFlight:   cfg.MaxInFlightProbes,
		BandwidthURL:  cfg.BandwidthTestURL,
	})

	if cfg.StatusAddr != "" {
		a.status = httpapi.NewServer(logger, a.monitor, cfg.StatusAPIKeys, cfg.StatusRatePerMin)
	}
	return a, nil
}

func newProber(cfg config.Config) probe.Prober {
	var p probe.Prober
	switch cfg.ProbeMethod {
	case config.ProbeTCP:
		p = probe.NewTCPProber(cfg.ProbeTCPPort)
	default:
		p = probe.NewICMPProber(cfg.ICMPPrivileged, cfg.ProbeDeadline())
	}
	return probe.NewRetryProber(p, cfg.RetryAttempts, cfg.RetryBackoff())
}
