package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/matheus3301/fwdtodo/internal/watermark"
	"github.com/spf13/cobra"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or change the sync watermark",
	}

	stateCmd.AddCommand(newStateShowCommand(ctx))
	stateCmd.AddCommand(newStateSetCommand(ctx))
	stateCmd.AddCommand(newStateResetCommand(ctx))

	return stateCmd
}

func newStateShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the watermark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var mark watermark.Store
			return ctx.inspect(cmd, func(runCtx context.Context) error {
				ts, err := mark.Load(runCtx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatWatermark(ts))
				return nil
			}, &mark)
		},
	}
}

func newStateSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <timestamp>",
		Short: "Overwrite the watermark with a unix timestamp",
		Long: "Overwrite the watermark. Messages at or before the timestamp are treated\n" +
			"as already synchronized; setting an older value re-emits newer groups.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || ts < 0 {
				return fmt.Errorf("invalid timestamp %q", args[0])
			}
			var mark watermark.Store
			return ctx.modify(cmd, func(runCtx context.Context) error {
				if err := mark.Set(runCtx, ts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "watermark set to %s\n", formatWatermark(ts))
				return nil
			}, &mark)
		},
	}
}

func newStateResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the watermark; the next pass emits every archived group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var mark watermark.Store
			return ctx.modify(cmd, func(runCtx context.Context) error {
				if err := mark.Reset(runCtx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "watermark reset")
				return nil
			}, &mark)
		},
	}
}
