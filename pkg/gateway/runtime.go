package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chatat/pkg/bus"
	"chatat/pkg/config"
	"chatat/pkg/helix"
	"chatat/pkg/irc"
	"chatat/pkg/macro"
	"chatat/pkg/macro/builtin"
	"chatat/pkg/twitch"
	"chatat/pkg/wire"
)

// Runtime wires one connection, its bus and the macro registry together. The
// headless service and the terminal UI both run on top of it.
type Runtime struct {
	Bus      *bus.Bus
	Codec    *wire.Codec
	Conn     *irc.Conn
	Macros   *macro.Registry
	Channels []*twitch.Channel
	Auth     twitch.Auth

	log *slog.Logger
}

type runtimeOptions struct {
	dialer     irc.Dialer
	helix      macro.HelixClient
	extensions []macro.Extension
}

type RuntimeOption func(*runtimeOptions)

// WithDialer replaces the TCP dialer of the connection.
func WithDialer(dialer irc.Dialer) RuntimeOption {
	return func(o *runtimeOptions) { o.dialer = dialer }
}

// WithHelix overrides the Helix client built from the credentials.
func WithHelix(client macro.HelixClient) RuntimeOption {
	return func(o *runtimeOptions) { o.helix = client }
}

// WithExtensions loads extra macros after the builtin ones.
func WithExtensions(extensions ...macro.Extension) RuntimeOption {
	return func(o *runtimeOptions) { o.extensions = append(o.extensions, extensions...) }
}

// NewRuntime builds a disconnected runtime for cfg and auth.
func NewRuntime(cfg *config.Config, auth twitch.Auth, log *slog.Logger, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}

	var options runtimeOptions
	for _, opt := range opts {
		opt(&options)
	}

	helixClient := options.helix
	if helixClient == nil && auth.HasHelix() {
		client, err := helix.New(helix.Config{
			BaseURL:      cfg.Helix.BaseURL,
			TokenURL:     cfg.Helix.TokenURL,
			ClientID:     auth.ClientID,
			ClientSecret: auth.ClientSecret,
			Timeout:      cfg.Helix.RequestTimeout(),
		}, log)
		if err != nil {
			return nil, fmt.Errorf("initialize helix client: %w", err)
		}
		helixClient = client
	}
	if helixClient == nil {
		log.Info("Helix credentials not configured, metadata macros disabled")
	}

	eventBus := bus.New(log)
	codec := wire.NewCodec(nil)
	channels := codec.Channels().InternAll(cfg.Channels)

	var connOpts []irc.Option
	if options.dialer != nil {
		connOpts = append(connOpts, irc.WithDialer(options.dialer))
	}
	conn, err := irc.New(irc.Config{
		Addr:     cfg.Server.Addr(),
		Auth:     auth,
		Channels: channels,
	}, eventBus, codec, log, connOpts...)
	if err != nil {
		eventBus.Close()
		return nil, err
	}

	extensions := append([]macro.Extension{builtin.Register}, options.extensions...)
	macros := macro.NewRegistry(macro.NewContext(eventBus, helixClient, auth.Username, log), log).Load(extensions...)
	macros.Install(eventBus)

	return &Runtime{
		Bus:      eventBus,
		Codec:    codec,
		Conn:     conn,
		Macros:   macros,
		Channels: channels,
		Auth:     auth,
		log:      log.With("component", "gateway.runtime"),
	}, nil
}

// Run blocks until the connection ends, then closes the bus.
func (r *Runtime) Run(ctx context.Context) error {
	defer r.Bus.Close()

	err := r.Conn.Run(ctx)
	if err != nil {
		r.log.Error("Connection ended", "error", err)
	}

	return err
}

// Close stops the connection. Run returns afterwards.
func (r *Runtime) Close() {
	_ = r.Conn.Close()
}
