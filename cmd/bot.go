package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"chatat/pkg/gateway"
	"chatat/pkg/twitch"
)

var botCmd = &cobra.Command{
	Use:   "bot [channel...]",
	Short: "Run headless with macros and status endpoints",
	Long:  "Runs chatat without a terminal UI. Macros answer in chat, /healthz and /readyz report the connection and the optional chat log records traffic.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap("cmd.bot", args, nil)
		if err != nil {
			return err
		}
		defer a.closeLog()

		if len(a.cfg.Channels) == 0 {
			a.log.Warn("No channels configured, waiting for join events only")
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := gateway.NewRuntime(a.cfg, a.auth, a.log)
		if err != nil {
			return fmt.Errorf("initialize runtime: %w", err)
		}

		svc, err := gateway.NewService(runCtx, a.cfg, rt, a.log)
		if err != nil {
			rt.Bus.Close()
			return fmt.Errorf("initialize gateway service: %w", err)
		}

		a.log.Info("Bot started",
			"server", a.cfg.Server.Addr(),
			"channels", channelNames(rt.Channels),
			"macros", rt.Macros.Handlers(twitch.ActionPrivmsg),
			"chat_log", a.cfg.ChatLog.Enabled,
		)
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("Bot stopped", "error", err)
			return err
		}

		a.log.Info("Bot stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func channelNames(channels []*twitch.Channel) string {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}

	return strings.Join(names, ",")
}
