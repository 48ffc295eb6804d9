// Package chat is the interactive terminal client.
package chat

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatat/pkg/bus"
	"chatat/pkg/twitch"
)

// Options wires the UI to a running connection.
type Options struct {
	Bus      *bus.Bus
	Channels *twitch.Registry
	// Current is the channel plain input goes to; nil until /join.
	Current *twitch.Channel
	Nick    string
	// Start, when set, runs once the UI is subscribed so no early state change is missed.
	Start func()
}

// Run shows the chat until the user quits or ctx is canceled.
func Run(ctx context.Context, opts Options) error {
	if opts.Bus == nil {
		return errors.New("event bus is required")
	}

	m := newModel(ctx, opts.Bus, opts)

	messages, stopMessages := opts.Bus.Watch(ctx, bus.TopicMessage, 0)
	defer stopMessages()
	states, stopStates := opts.Bus.Watch(ctx, bus.TopicState, 0)
	defer stopStates()
	m.feeds = []<-chan any{messages, states}

	if opts.Start != nil {
		opts.Start()
	}

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	fmt.Println(renderGoodbyeBanner(opts.Nick))
	return nil
}

func renderGoodbyeBanner(nick string) string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("54")).
		Padding(1, 2)

	return style.Render("Bye " + displayOrNA(nick) + ", thanks for chatting")
}
