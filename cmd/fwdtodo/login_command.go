package main

import (
	"context"
	"fmt"

	"github.com/matheus3301/fwdtodo/internal/config"
	"github.com/matheus3301/fwdtodo/internal/profile"
	"github.com/matheus3301/fwdtodo/internal/wa"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Link the profile to a chat account",
	}
	loginCmd.AddCommand(newLoginWhatsAppCommand(ctx))
	return loginCmd
}

func newLoginWhatsAppCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whatsapp",
		Short: "Pair a WhatsApp account by scanning a QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg    *config.Config
				paths  profile.Paths
				logger *zap.Logger
			)
			return ctx.modify(cmd, func(runCtx context.Context) error {
				ingestor := wa.NewIngestor(wa.Options{
					DeviceDB:   paths.DevicePath(),
					DeviceName: cfg.WhatsApp.DeviceName,
				}, logger.Named("wa"))
				adapter, err := ingestor.Adapter(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if adapter.IsLoggedIn() {
					fmt.Fprintf(out, "Profile %q is already paired.\n", paths.Name)
					return nil
				}
				defer adapter.Disconnect()
				return adapter.Pair(runCtx, out)
			}, &cfg, &paths, &logger)
		},
	}
}
