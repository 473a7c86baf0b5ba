// Package bot routes chat commands to their handlers, gating authenticated
// operations on the account link and driving interactive sessions for
// multi-step input.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sodiumlabs/osubot/auth"
	"github.com/sodiumlabs/osubot/config"
	"github.com/sodiumlabs/osubot/osuapi"
	"github.com/sodiumlabs/osubot/session"
	"github.com/sodiumlabs/osubot/telemetry"
	"github.com/sodiumlabs/osubot/trackapi"
)

// Platform delivers bot replies to the chat host.
type Platform interface {
	Send(ctx context.Context, senderID, text string) error
}

// Router owns the command surface of the bot.
type Router struct {
	Platform Platform
	Sessions *session.Dispatcher
	Gate     *auth.Gate
	Linker   *auth.Linker
	Links    auth.LinkStore
	Tokens   auth.TokenStore
	Osu      *osuapi.Client
	Track    *trackapi.Client
	Cfg      *config.Config
}

func (r *Router) prefix() string {
	if r.Cfg != nil && r.Cfg.CommandPrefix != "" {
		return r.Cfg.CommandPrefix
	}
	return "!osu"
}

// Dispatch takes every inbound chat message. Messages claimed by an open
// session are consumed synchronously; fresh commands run on their own
// goroutine so that session-opening handlers can block awaiting input.
func (r *Router) Dispatch(ctx context.Context, senderID, text string) {
	if r.Sessions.Offer(session.Message{SenderID: senderID, Text: text}) {
		return
	}
	rest, ok := strings.CutPrefix(strings.TrimSpace(text), r.prefix())
	if !ok {
		return
	}
	if rest != "" && !strings.HasPrefix(rest, " ") {
		// "!osux" is not our prefix.
		return
	}
	args := strings.Fields(rest)
	go r.handleCommand(ctx, senderID, args)
}

func (r *Router) handleCommand(ctx context.Context, senderID string, args []string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("command handler panicked", slog.String("sender", senderID), slog.Any("panic", rec))
			r.reply(ctx, senderID, "Something went wrong handling that command.")
		}
	}()
	if telemetry.CommandsHandled != nil {
		telemetry.CommandsHandled.Inc()
	}

	name := "help"
	if len(args) > 0 {
		name = args[0]
		args = args[1:]
	}

	telemetry.TimeFunc(telemetry.CommandDuration, func() {
		switch name {
		case "help":
			r.cmdHelp(ctx, senderID, args)
		case "link":
			r.cmdLink(ctx, senderID)
		case "unlink":
			r.cmdUnlink(ctx, senderID)
		case "me":
			r.cmdMe(ctx, senderID, args)
		case "user":
			r.cmdUser(ctx, senderID, args)
		case "users":
			r.cmdUsers(ctx, senderID)
		case "friend":
			r.cmdFriend(ctx, senderID)
		case "update":
			r.cmdUpdate(ctx, senderID, args)
		case "chart":
			r.cmdChart(ctx, senderID, args)
		case "map":
			r.cmdMap(ctx, senderID, args)
		case "mapset":
			r.cmdMapset(ctx, senderID, args)
		case "mapsets":
			r.cmdMapsets(ctx, senderID)
		case "search":
			r.cmdSearch(ctx, senderID, args)
		default:
			r.reply(ctx, senderID, fmt.Sprintf("Unknown command %q. Try %s help.", name, r.prefix()))
		}
	})
}

func (r *Router) reply(ctx context.Context, senderID, text string) {
	if err := r.Platform.Send(ctx, senderID, text); err != nil {
		slog.Warn("reply delivery failed", slog.String("sender", senderID), slog.Any("err", err))
	}
}

func (r *Router) replyError(ctx context.Context, senderID, text string) {
	if telemetry.CommandErrors != nil {
		telemetry.CommandErrors.Inc()
	}
	r.reply(ctx, senderID, text)
}

// gate runs the authentication check and renders the negative outcomes
// itself. The boolean is true only when the caller may proceed.
func (r *Router) gate(ctx context.Context, senderID string, scopes ...string) (auth.Decision, bool) {
	d, err := r.Gate.Check(ctx, senderID, scopes...)
	if err != nil {
		slog.Error("auth gate failed", slog.String("sender", senderID), slog.Any("err", err))
		r.replyError(ctx, senderID, "Authentication check failed, try again later.")
		return auth.Decision{}, false
	}
	if d.OK {
		return d, true
	}
	switch d.Reason {
	case auth.ReasonNotLinked:
		r.replyError(ctx, senderID, fmt.Sprintf("No osu! account linked. Use %s link first.", r.prefix()))
	case auth.ReasonTokenExpired:
		r.replyError(ctx, senderID, fmt.Sprintf("Your osu! authorization expired. Use %s link to re-link.", r.prefix()))
	case auth.ReasonInsufficientScope:
		r.replyError(ctx, senderID, fmt.Sprintf(
			"Missing permissions: %s. Use %s unlink and %s link to grant them.",
			strings.Join(d.MissingScopes, ", "), r.prefix(), r.prefix()))
	}
	return d, false
}

var helpTopics = map[string]string{
	"link":    "link - connect your osu! account via OAuth. The bot sends an authorization URL; paste the callback URL back into chat.",
	"unlink":  "unlink - remove your account link and stored tokens.",
	"me":      "me [mode] - your own profile. Modes: osu, taiko, fruits, mania.",
	"user":    "user <id|@name> [mode] [type] - look up a player.",
	"users":   "users - batch lookup; the bot asks for a space-separated id list (max 50).",
	"friend":  "friend - list your osu! friends.",
	"update":  "update [mode] - record a snapshot on osu!track and show the change since last time.",
	"chart":   "chart [mode] [days] [type] - render your stats history. Types: pp, rank, accuracy. Days 1..365.",
	"map":     "map <id> - beatmap details.",
	"mapset":  "mapset <id> - beatmapset details with difficulties.",
	"mapsets": "mapsets - batch mapset lookup; the bot asks for an id list (max 20).",
	"search":  "search map <query> [perPage] [page] [advanced] - find beatmapsets. The advanced flag opens a prompt for filters like sort=difficulty_desc mode=mania status=ranked.",
}

var helpOrder = []string{"link", "unlink", "me", "user", "users", "friend", "update", "chart", "map", "mapset", "mapsets", "search"}

func (r *Router) cmdHelp(ctx context.Context, senderID string, args []string) {
	if len(args) > 0 {
		if topic, ok := helpTopics[args[0]]; ok {
			r.reply(ctx, senderID, r.prefix()+" "+topic)
			return
		}
		r.replyError(ctx, senderID, fmt.Sprintf("No help for %q.", args[0]))
		return
	}
	r.reply(ctx, senderID, fmt.Sprintf("Commands: %s. Use %s help <command> for details.",
		strings.Join(helpOrder, ", "), r.prefix()))
}
