package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sodiumlabs/osubot/auth"
)

func (r *Router) cmdLink(ctx context.Context, senderID string) {
	out := r.Linker.Run(ctx, senderID)
	switch out.Kind {
	case auth.OutcomeLinked:
		r.reply(ctx, senderID, fmt.Sprintf("Linked to osu! account %s (id %s).", out.Username, out.OsuUserID))
	case auth.OutcomeAlreadyLinked:
		r.reply(ctx, senderID, fmt.Sprintf("You are already linked. Use %s unlink first to switch accounts.", r.prefix()))
	case auth.OutcomeNotConfigured:
		r.replyError(ctx, senderID, "Linking is not configured on this instance.")
	case auth.OutcomeTimeout:
		r.replyError(ctx, senderID, "Link session expired. Run the command again when you have the callback URL ready.")
	case auth.OutcomeStateMismatch:
		r.replyError(ctx, senderID, "The callback URL belongs to a different link attempt. Start over with a fresh URL.")
	case auth.OutcomeExchangeFailed:
		r.replyError(ctx, senderID, fmt.Sprintf("Token exchange failed: %v", out.Err))
	case auth.OutcomeIdentityFailed:
		r.replyError(ctx, senderID, "Could not fetch your osu! profile; the authorization was discarded. Try again.")
	case auth.OutcomeLinkConflict:
		r.replyError(ctx, senderID, "That osu! account is already linked to someone else.")
	default:
		slog.Error("link flow failed", slog.String("sender", senderID), slog.Any("err", out.Err))
		r.replyError(ctx, senderID, "Linking failed unexpectedly, try again later.")
	}
}

func (r *Router) cmdUnlink(ctx context.Context, senderID string) {
	removed, err := r.Links.Unlink(ctx, senderID)
	if err != nil {
		slog.Error("unlink failed", slog.String("sender", senderID), slog.Any("err", err))
		r.replyError(ctx, senderID, "Unlink failed, try again later.")
		return
	}
	if _, err := r.Tokens.Remove(ctx, senderID); err != nil {
		slog.Warn("token removal on unlink failed", slog.String("sender", senderID), slog.Any("err", err))
	}
	if !removed {
		r.reply(ctx, senderID, "No linked account to remove.")
		return
	}
	r.reply(ctx, senderID, "Account unlinked and tokens deleted.")
}
