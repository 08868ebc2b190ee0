package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/fwdtodo/internal/config"
	"github.com/matheus3301/fwdtodo/internal/daemon"
	"github.com/matheus3301/fwdtodo/internal/profile"
	"github.com/matheus3301/fwdtodo/internal/store"
	"github.com/matheus3301/fwdtodo/internal/watermark"
	"github.com/spf13/cobra"
)

const recentEmissions = 10

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var withDaemon bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the profile's sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg   *config.Config
				paths profile.Paths
				db    *store.DB
				mark  watermark.Store
			)
			return ctx.inspect(cmd, func(runCtx context.Context) error {
				ts, err := mark.Load(runCtx)
				if err != nil {
					return err
				}
				count, err := db.MessageCount(runCtx, cfg.Source.Backend)
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Profile", paths.Name},
					{"Backend", cfg.Source.Backend},
					{"Sink", cfg.Sink.Kind},
					{"Watermark", formatWatermark(ts)},
					{"Archived messages", strconv.Itoa(count)},
				}
				if withDaemon {
					rows = append(rows, []string{"Daemon", daemonStatus(runCtx, paths.SocketPath())})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderKeyValues(rows))

				emissions, err := db.RecentEmissions(runCtx, recentEmissions)
				if err != nil {
					return err
				}
				if len(emissions) == 0 {
					fmt.Fprintln(out, "No tasks emitted yet.")
					return nil
				}
				table := make([][]string, 0, len(emissions))
				for _, e := range emissions {
					table = append(table, []string{formatMillis(e.EmittedAt), e.Sink, e.Heading})
				}
				fmt.Fprintln(out, renderTable([]string{"Emitted", "Sink", "Heading"}, table, nil))
				return nil
			}, &cfg, &paths, &db, &mark)
		},
	}

	cmd.Flags().BoolVar(&withDaemon, "daemon", false, "Also query the daemon's health")
	return cmd
}

func daemonStatus(ctx context.Context, socketPath string) string {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	status, err := daemon.CheckHealth(ctx, socketPath)
	if err != nil {
		return "not running"
	}
	return status.String()
}
