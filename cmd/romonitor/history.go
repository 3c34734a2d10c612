package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/romonitor/internal/domain"
	"github.com/hamed0406/romonitor/internal/repo/csvfile"
	"github.com/hamed0406/romonitor/internal/repo/postgres"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <site-code>",
		Short: "List recent incidents for a site from the database",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
	cmd.Flags().Int("limit", 20, "maximum incidents to show")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("history needs database_url (or DATABASE_URL)")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	store, err := postgres.New(ctx, cfg.DatabaseURL, zap.NewNop())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	incidents, err := store.Recent(ctx, domain.SiteCode(args[0]), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(incidents) == 0 {
		_, _ = fmt.Fprintf(out, "No incidents recorded for %s.\n", args[0])
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tCYCLE\tENDPOINT\tTYPE\tSTATUS\tBANDWIDTH")
	for _, in := range incidents {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			in.OccurredAt.Local().Format(csvfile.TimestampLayout),
			strconv.FormatUint(in.Cycle, 10),
			in.Endpoint, in.EndpointClass, in.Status,
			csvfile.FormatBandwidth(in.BandwidthMbps),
		)
	}
	return tw.Flush()
}
