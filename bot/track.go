package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/sodiumlabs/osubot/chart"
	"github.com/sodiumlabs/osubot/osuapi"
	"github.com/sodiumlabs/osubot/trackapi"
)

func (r *Router) cmdUpdate(ctx context.Context, senderID string, args []string) {
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}
	trackMode, err := osuapi.TrackMode(mode)
	if err != nil {
		r.replyError(ctx, senderID, err.Error())
		return
	}
	d, ok := r.gate(ctx, senderID, osuapi.ScopePublic)
	if !ok {
		return
	}
	osuID, err := strconv.Atoi(d.OsuUserID)
	if err != nil {
		slog.Error("linked osu id is not numeric", slog.String("osu_user_id", d.OsuUserID))
		r.replyError(ctx, senderID, "Your linked account id is malformed; re-link and try again.")
		return
	}
	res, err := r.Track.Update(ctx, osuID, trackMode)
	if err != nil {
		slog.Error("osutrack update failed", slog.String("sender", senderID), slog.Any("err", err))
		r.replyError(ctx, senderID, "Stats update failed: "+err.Error())
		return
	}
	r.reply(ctx, senderID, FormatUpdate(res))
}

func (r *Router) cmdChart(ctx context.Context, senderID string, args []string) {
	mode := "osu"
	days := 30
	kindArg := ""
	if len(args) > 0 {
		mode = args[0]
	}
	if err := osuapi.ValidateMode(mode); err != nil {
		r.replyError(ctx, senderID, err.Error())
		return
	}
	if len(args) > 1 {
		d, err := strconv.Atoi(args[1])
		if err != nil || d < 1 || d > 365 {
			r.replyError(ctx, senderID, "days must be a number between 1 and 365.")
			return
		}
		days = d
	}
	if len(args) > 2 {
		kindArg = args[2]
	}
	kind, err := chart.ParseKind(kindArg)
	if err != nil {
		r.replyError(ctx, senderID, err.Error())
		return
	}

	d, ok := r.gate(ctx, senderID, osuapi.ScopePublic)
	if !ok {
		return
	}
	osuID, err := strconv.Atoi(d.OsuUserID)
	if err != nil {
		r.replyError(ctx, senderID, "Your linked account id is malformed; re-link and try again.")
		return
	}
	trackMode, _ := osuapi.TrackMode(mode)
	points, err := r.Track.StatsHistory(ctx, osuID, trackMode)
	if err != nil {
		slog.Error("stats history fetch failed", slog.String("sender", senderID), slog.Any("err", err))
		r.replyError(ctx, senderID, "Stats history fetch failed: "+err.Error())
		return
	}
	if len(points) < 2 {
		r.replyError(ctx, senderID, fmt.Sprintf(
			"Not enough history to chart (%d snapshots). Run %s update a few times over several days.", len(points), r.prefix()))
		return
	}

	// Use the tracked username when available, fall back to the account id.
	username := d.OsuUserID
	if u, err := r.Osu.User(ctx, d.AccessToken, d.OsuUserID, mode); err == nil {
		username = u.Username
	}

	png, err := chart.Render(kind, points, username, mode, days)
	if err != nil {
		r.replyError(ctx, senderID, "Chart rendering failed: "+err.Error())
		return
	}

	if err := os.MkdirAll(r.Cfg.ChartDir, 0o755); err != nil {
		slog.Error("chart dir create failed", slog.String("dir", r.Cfg.ChartDir), slog.Any("err", err))
		r.replyError(ctx, senderID, "Could not store the chart.")
		return
	}
	name := uuid.NewString() + ".png"
	path := filepath.Join(r.Cfg.ChartDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		slog.Error("chart write failed", slog.String("path", path), slog.Any("err", err))
		r.replyError(ctx, senderID, "Could not store the chart.")
		return
	}
	summary := fmt.Sprintf("%s chart over %dd ready: /charts/%s", kind, days, name)
	if kind == chart.KindPP {
		// Best effort; the chart is already rendered, so a hiscore fetch
		// failure only drops the extra line.
		if scores, err := r.Track.Hiscores(ctx, osuID, trackMode); err == nil && len(scores) > 0 {
			summary += fmt.Sprintf(" (%d recorded top plays, best %.2fpp)", len(scores), bestPP(scores))
		}
	}
	r.reply(ctx, senderID, summary)
}

func bestPP(scores []trackapi.RecordedScore) float64 {
	best := scores[0].PP
	for _, s := range scores[1:] {
		if s.PP > best {
			best = s.PP
		}
	}
	return best
}
