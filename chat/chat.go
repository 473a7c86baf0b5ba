// Package chat connects the bot to a Twitch channel over IRC and relays
// messages between the channel and the command router.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/sodiumlabs/osubot/config"
)

// Relay is the Twitch chat transport. Replies are addressed to the sender in
// the shared channel.
type Relay struct {
	client  *twitch.Client
	channel string
}

// New builds a relay from the bot credentials. Returns an error when any of
// the Twitch settings are missing; callers may then run without chat (HTTP
// surface only).
func New(cfg *config.Config) (*Relay, error) {
	if err := cfg.ValidateBotReady(); err != nil {
		return nil, err
	}
	return &Relay{
		client:  twitch.NewClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken),
		channel: cfg.TwitchChannel,
	}, nil
}

// Send delivers a reply to the sender in the channel.
func (r *Relay) Send(_ context.Context, senderID, text string) error {
	r.client.Say(r.channel, fmt.Sprintf("@%s %s", senderID, text))
	return nil
}

// Run joins the channel and feeds every message to dispatch until ctx ends.
// Blocks for the lifetime of the connection.
func (r *Relay) Run(ctx context.Context, dispatch func(ctx context.Context, senderID, text string)) error {
	r.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		dispatch(ctx, msg.User.Name, msg.Message)
	})
	r.client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("channel", r.channel))
	})

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := r.client.Disconnect(); err != nil {
			slog.Warn("twitch disconnect", slog.Any("err", err))
		}
		close(done)
	}()

	r.client.Join(r.channel)
	if err := r.client.Connect(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("twitch chat connect: %w", err)
	}
	<-done
	return nil
}
