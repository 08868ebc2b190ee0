package main

import (
	"context"
	"strings"

	"github.com/matheus3301/fwdtodo/internal/runner"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag  string
	profileFlag string
	verbose     bool
}

// params returns runner parameters for the global flags.
func (c *commandContext) params(cmd *cobra.Command) runner.Params {
	return runner.Params{
		ConfigPath: strings.TrimSpace(c.configFlag),
		Profile:    strings.TrimSpace(c.profileFlag),
		Verbose:    c.verbose,
		Out:        cmd.OutOrStdout(),
	}
}

// inspect runs fn against the profile without taking its lock or contacting
// the chat service.
func (c *commandContext) inspect(cmd *cobra.Command, fn func(ctx context.Context) error, targets ...any) error {
	p := c.params(cmd)
	p.ReadOnly = true
	p.Offline = true
	return runner.Run(cmd.Context(), p, fn, targets...)
}

// modify is inspect with the profile lock held.
func (c *commandContext) modify(cmd *cobra.Command, fn func(ctx context.Context) error, targets ...any) error {
	p := c.params(cmd)
	p.Offline = true
	return runner.Run(cmd.Context(), p, fn, targets...)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "fwdtodo",
		Short:         "Turn forwarded chat messages into tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&ctx.profileFlag, "profile", "p", "", "Profile name (overrides default_profile)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log info messages to stderr")

	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newStateCommand(ctx))
	rootCmd.AddCommand(newLoginCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newTasksCommand(ctx))

	return rootCmd
}
