// Package builtin holds the macros shipped with chatat.
package builtin

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"chatat/pkg/macro"
	"chatat/pkg/twitch"
)

const (
	liveCommand = "!live"
	liveTimeout = 5 * time.Second
)

// Register installs every builtin macro. It satisfies macro.Extension.
func Register(r macro.Registrar) {
	r.Register(twitch.ActionPrivmsg, Interjection)
	r.Register(twitch.ActionPrivmsg, Live)
}

// Interjection corrects anyone who says linux without gnu.
func Interjection(ctx context.Context, dc *macro.Context, msg twitch.Message) error {
	if msg.IsLocal() {
		return nil
	}

	body := strings.ToLower(msg.Body)
	if !strings.Contains(body, "linux") || strings.Contains(body, "gnu") {
		return nil
	}

	dc.Reply(ctx, msg, fmt.Sprintf("%s dude; not linux, GNU/Linux", msg.Author))
	return nil
}

// Live answers "!live" with the channel's current stream status from Helix.
func Live(ctx context.Context, dc *macro.Context, msg twitch.Message) error {
	if !strings.EqualFold(strings.TrimSpace(msg.Body), liveCommand) {
		return nil
	}

	client, err := dc.Helix()
	if err != nil {
		return err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, liveTimeout)
	defer cancel()

	result, err := client.Get(lookupCtx, "streams", url.Values{"user_login": {msg.Channel.Name()}})
	if err != nil {
		return fmt.Errorf("lookup stream for %s: %w", msg.Channel, err)
	}

	stream := result.Get("data.0")
	if !stream.Exists() {
		dc.Reply(ctx, msg, fmt.Sprintf("%s is offline", msg.Channel.Name()))
		return nil
	}

	dc.Reply(ctx, msg, fmt.Sprintf("%s is live: %s (%d viewers)",
		msg.Channel.Name(),
		stream.Get("title").String(),
		stream.Get("viewer_count").Int(),
	))
	return nil
}
