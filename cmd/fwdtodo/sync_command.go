package main

import (
	"context"
	"fmt"

	"github.com/matheus3301/fwdtodo/internal/runner"
	intsync "github.com/matheus3301/fwdtodo/internal/sync"
	"github.com/matheus3301/fwdtodo/internal/watermark"
	"github.com/spf13/cobra"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun, offline bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass",
		Long: "Fetch new messages from the todo dialogs, turn every group of forwarded\n" +
			"messages into a task and advance the watermark.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := ctx.params(cmd)
			p.DryRun = dryRun
			p.Offline = offline

			var engine *intsync.Engine
			var res intsync.Result
			err := runner.Run(cmd.Context(), p, func(runCtx context.Context) error {
				var err error
				res, err = engine.RunOnce(runCtx)
				return err
			}, &engine)
			if err != nil {
				return err
			}

			out := cmd.ErrOrStderr()
			if res.Transient {
				fmt.Fprintln(out, "chat service unavailable, nothing synced")
				return nil
			}
			fmt.Fprintf(out, "fetched %d, emitted %d, skipped %d, watermark %s\n",
				res.Fetched, res.Emitted, res.Skipped, formatWatermark(res.Watermark))
			if res.Capped {
				fmt.Fprintln(out, "message limit reached, run sync again for newer messages")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print tasks instead of saving them; keep the watermark")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use archived messages only")
	return cmd
}

func formatWatermark(ts int64) string {
	if ts == watermark.None {
		return "none"
	}
	return fmt.Sprintf("%d (%s)", ts, formatTime(ts))
}
