package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chatat/pkg/gateway"
	"chatat/pkg/twitch"
	"chatat/pkg/ui/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat [channel...]",
	Short: "Open the interactive chat client",
	Long:  "Connects to Twitch chat and opens a terminal client. Channels given as arguments replace the configured ones and the first becomes the current channel.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap("cmd.chat", args, tuiLogging)
		if err != nil {
			return err
		}
		defer a.closeLog()

		rt, err := gateway.NewRuntime(a.cfg, a.auth, a.log)
		if err != nil {
			return fmt.Errorf("initialize runtime: %w", err)
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var connDone chan error
		err = chat.Run(runCtx, chat.Options{
			Bus:      rt.Bus,
			Channels: rt.Codec.Channels(),
			Current:  firstChannel(rt.Channels),
			Nick:     a.auth.Username,
			Start: func() {
				connDone = make(chan error, 1)
				go func() { connDone <- rt.Run(runCtx) }()
			},
		})

		rt.Close()
		if connDone != nil {
			if connErr := <-connDone; connErr != nil {
				a.log.Info("Connection ended", "error", connErr)
			}
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func firstChannel(channels []*twitch.Channel) *twitch.Channel {
	if len(channels) == 0 {
		return nil
	}

	return channels[0]
}
