package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sodiumlabs/osubot/osuapi"
	"github.com/sodiumlabs/osubot/session"
)

var cancelWords = map[string]bool{"cancel": true, "quit": true, "exit": true}

func isCancel(text string) bool {
	return cancelWords[strings.ToLower(strings.TrimSpace(text))]
}

func (r *Router) cmdMe(ctx context.Context, senderID string, args []string) {
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}
	if err := osuapi.ValidateMode(mode); err != nil {
		r.replyError(ctx, senderID, err.Error())
		return
	}
	d, ok := r.gate(ctx, senderID, osuapi.ScopeIdentify)
	if !ok {
		return
	}
	user, err := r.Osu.OwnUser(ctx, d.AccessToken, mode)
	if err != nil {
		slog.Error("own profile fetch failed", slog.String("sender", senderID), slog.Any("err", err))
		r.replyError(ctx, senderID, "Could not fetch your profile: "+err.Error())
		return
	}
	r.reply(ctx, senderID, FormatUser(user, true))
}

func (r *Router) cmdUser(ctx context.Context, senderID string, args []string) {
	if len(args) < 1 {
		r.replyError(ctx, senderID, fmt.Sprintf("Usage: %s user <id|@name> [mode] [type]", r.prefix()))
		return
	}
	target := args[0]
	mode := ""
	if len(args) > 1 {
		mode = args[1]
	}
	if err := osuapi.ValidateMode(mode); err != nil {
		r.replyError(ctx, senderID, err.Error())
		return
	}
	// The optional type argument ("id" or "username") disambiguates numeric
	// usernames; the API accepts @name directly so only "id" needs handling.
	if len(args) > 2 && args[2] != "id" && args[2] != "username" {
		r.replyError(ctx, senderID, fmt.Sprintf("Unknown lookup type %q (use id or username).", args[2]))
		return
	}
	if len(args) > 2 && args[2] == "username" && !strings.HasPrefix(target, "@") {
		target = "@" + target
	}

	d, ok := r.gate(ctx, senderID, osuapi.ScopePublic)
	if !ok {
		return
	}
	user, err := r.Osu.User(ctx, d.AccessToken, target, mode)
	if err != nil {
		if err == osuapi.ErrNotFound {
			r.replyError(ctx, senderID, fmt.Sprintf("No such user: %s", target))
			return
		}
		slog.Error("user fetch failed", slog.String("target", target), slog.Any("err", err))
		r.replyError(ctx, senderID, "User lookup failed: "+err.Error())
		return
	}
	r.reply(ctx, senderID, FormatUser(user, false))
}

const maxBatchUsers = 50

func (r *Router) cmdUsers(ctx context.Context, senderID string) {
	d, ok := r.gate(ctx, senderID, osuapi.ScopePublic)
	if !ok {
		return
	}
	r.reply(ctx, senderID, fmt.Sprintf(
		"Send a space-separated list of user ids (max %d), or cancel to stop.", maxBatchUsers))

	err := r.Sessions.Await(ctx, senderID, r.Cfg.SessionTimeout, func(msg session.Message) session.Signal {
		if isCancel(msg.Text) {
			r.reply(ctx, senderID, "Batch lookup cancelled.")
			return session.Stop()
		}
		ids := strings.Fields(msg.Text)
		if len(ids) == 0 {
			r.reply(ctx, senderID, "Provide at least one user id.")
			return session.Keep(r.Cfg.SessionExtension)
		}
		if len(ids) > maxBatchUsers {
			r.reply(ctx, senderID, fmt.Sprintf(
				"At most %d users per batch; you sent %d. Send a shorter list.", maxBatchUsers, len(ids)))
			return session.Keep(r.Cfg.SessionExtension)
		}
		users, err := r.Osu.Users(ctx, d.AccessToken, ids)
		if err != nil {
			slog.Error("batch user fetch failed", slog.Any("err", err))
			r.replyError(ctx, senderID, "Batch lookup failed: "+err.Error())
			return session.Stop()
		}
		if len(users) == 0 {
			r.replyError(ctx, senderID, "None of those ids matched a user.")
			return session.Stop()
		}
		for i, u := range users {
			u := u
			r.reply(ctx, senderID, fmt.Sprintf("[%d/%d] %s", i+1, len(users), FormatUser(&u, false)))
		}
		return session.Stop()
	})
	r.sessionEpilogue(ctx, senderID, "batch lookup", err)
}

func (r *Router) cmdFriend(ctx context.Context, senderID string) {
	d, ok := r.gate(ctx, senderID, osuapi.ScopeFriendsRead)
	if !ok {
		return
	}
	friends, err := r.Osu.Friends(ctx, d.AccessToken)
	if err != nil {
		slog.Error("friends fetch failed", slog.String("sender", senderID), slog.Any("err", err))
		r.replyError(ctx, senderID, "Friend list fetch failed: "+err.Error())
		return
	}
	if len(friends) == 0 {
		r.reply(ctx, senderID, "Your friend list is empty.")
		return
	}
	online := 0
	for _, f := range friends {
		if f.IsOnline {
			online++
		}
	}
	r.reply(ctx, senderID, fmt.Sprintf("%d friends, %d online.", len(friends), online))
	for i, f := range friends {
		f := f
		r.reply(ctx, senderID, fmt.Sprintf("[%d/%d] %s", i+1, len(friends), FormatFriend(&f)))
	}
}

// sessionEpilogue renders session-level failures that handlers cannot see.
func (r *Router) sessionEpilogue(ctx context.Context, senderID, what string, err error) {
	switch {
	case err == nil:
	case err == session.ErrTimeout:
		r.replyError(ctx, senderID, fmt.Sprintf("The %s session expired after %s of inactivity.", what, r.Cfg.SessionTimeout.Truncate(time.Second)))
	case err == session.ErrSessionActive:
		r.replyError(ctx, senderID, "Finish your current interactive command first.")
	default:
		slog.Error("interactive session failed", slog.String("what", what), slog.Any("err", err))
		r.replyError(ctx, senderID, fmt.Sprintf("The %s session failed unexpectedly.", what))
	}
}
