package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/sodiumlabs/osubot/osuapi"
	"github.com/sodiumlabs/osubot/session"
)

func (r *Router) cmdMap(ctx context.Context, senderID string, args []string) {
	if len(args) < 1 {
		r.replyError(ctx, senderID, fmt.Sprintf("Usage: %s map <beatmap id>", r.prefix()))
		return
	}
	if _, err := strconv.Atoi(args[0]); err != nil {
		r.replyError(ctx, senderID, fmt.Sprintf("Beatmap id must be numeric, got %q.", args[0]))
		return
	}
	d, ok := r.gate(ctx, senderID, osuapi.ScopePublic)
	if !ok {
		return
	}
	b, err := r.Osu.Beatmap(ctx, d.AccessToken, args[0])
	if err != nil {
		if err == osuapi.ErrNotFound {
			r.replyError(ctx, senderID, fmt.Sprintf("No beatmap with id %s.", args[0]))
			return
		}
		slog.Error("beatmap fetch failed", slog.String("id", args[0]), slog.Any("err", err))
		r.replyError(ctx, senderID, "Beatmap lookup failed: "+err.Error())
		return
	}
	r.reply(ctx, senderID, FormatBeatmap(b))
}

func (r *Router) cmdMapset(ctx context.Context, senderID string, args []string) {
	if len(args) < 1 {
		r.replyError(ctx, senderID, fmt.Sprintf("Usage: %s mapset <beatmapset id>", r.prefix()))
		return
	}
	if _, err := strconv.Atoi(args[0]); err != nil {
		r.replyError(ctx, senderID, fmt.Sprintf("Beatmapset id must be numeric, got %q.", args[0]))
		return
	}
	d, ok := r.gate(ctx, senderID, osuapi.ScopePublic)
	if !ok {
		return
	}
	s, err := r.Osu.Beatmapset(ctx, d.AccessToken, args[0])
	if err != nil {
		if err == osuapi.ErrNotFound {
			r.replyError(ctx, senderID, fmt.Sprintf("No beatmapset with id %s.", args[0]))
			return
		}
		slog.Error("beatmapset fetch failed", slog.String("id", args[0]), slog.Any("err", err))
		r.replyError(ctx, senderID, "Beatmapset lookup failed: "+err.Error())
		return
	}
	r.reply(ctx, senderID, FormatBeatmapset(s, true))
}

const maxBatchMapsets = 20

func (r *Router) cmdMapsets(ctx context.Context, senderID string) {
	d, ok := r.gate(ctx, senderID, osuapi.ScopePublic)
	if !ok {
		return
	}
	r.reply(ctx, senderID, fmt.Sprintf(
		"Send a space-separated list of beatmapset ids (max %d), or cancel to stop.", maxBatchMapsets))

	err := r.Sessions.Await(ctx, senderID, r.Cfg.SessionTimeout, func(msg session.Message) session.Signal {
		if isCancel(msg.Text) {
			r.reply(ctx, senderID, "Batch lookup cancelled.")
			return session.Stop()
		}
		ids := strings.Fields(msg.Text)
		if len(ids) == 0 {
			r.reply(ctx, senderID, "Provide at least one beatmapset id.")
			return session.Keep(r.Cfg.SessionExtension)
		}
		if len(ids) > maxBatchMapsets {
			r.reply(ctx, senderID, fmt.Sprintf(
				"At most %d mapsets per batch; you sent %d. Send a shorter list.", maxBatchMapsets, len(ids)))
			return session.Keep(r.Cfg.SessionExtension)
		}
		for _, id := range ids {
			if _, err := strconv.Atoi(id); err != nil {
				r.reply(ctx, senderID, fmt.Sprintf("Beatmapset ids must be numeric; %q is not. Send the list again.", id))
				return session.Keep(r.Cfg.SessionExtension)
			}
		}
		sent := 0
		for i, id := range ids {
			s, err := r.Osu.Beatmapset(ctx, d.AccessToken, id)
			if err != nil {
				r.reply(ctx, senderID, fmt.Sprintf("[%d/%d] mapset %s: %v", i+1, len(ids), id, err))
				continue
			}
			r.reply(ctx, senderID, fmt.Sprintf("[%d/%d] %s", i+1, len(ids), FormatBeatmapset(s, false)))
			sent++
		}
		if sent == 0 {
			r.replyError(ctx, senderID, "None of those ids matched a beatmapset.")
		}
		return session.Stop()
	})
	r.sessionEpilogue(ctx, senderID, "batch lookup", err)
}

func (r *Router) cmdSearch(ctx context.Context, senderID string, args []string) {
	if len(args) < 2 || args[0] != "map" {
		r.replyError(ctx, senderID, fmt.Sprintf("Usage: %s search map <query> [perPage] [page] [advanced]", r.prefix()))
		return
	}
	args = args[1:]
	query := args[0]
	perPage, page := 5, 1
	advanced := false
	var err error
	if len(args) > 1 {
		if perPage, err = strconv.Atoi(args[1]); err != nil || perPage <= 0 || perPage > 50 {
			r.replyError(ctx, senderID, "perPage must be a number between 1 and 50.")
			return
		}
	}
	if len(args) > 2 {
		if page, err = strconv.Atoi(args[2]); err != nil || page < 1 {
			r.replyError(ctx, senderID, "page must be a number >= 1.")
			return
		}
	}
	if len(args) > 3 {
		if args[3] != "advanced" {
			r.replyError(ctx, senderID, fmt.Sprintf("Unknown flag %q (only advanced is supported).", args[3]))
			return
		}
		advanced = true
	}

	d, ok := r.gate(ctx, senderID, osuapi.ScopePublic)
	if !ok {
		return
	}

	if !advanced {
		q := url.Values{}
		q.Set("q", query)
		q.Set("page", strconv.Itoa(page))
		res, err := r.Osu.SearchBeatmapsets(ctx, d.AccessToken, q)
		if err != nil {
			slog.Error("beatmapset search failed", slog.String("query", query), slog.Any("err", err))
			r.replyError(ctx, senderID, "Search failed: "+err.Error())
			return
		}
		r.sendSearchResults(ctx, senderID, res.Beatmapsets, res.Total, perPage, page)
		return
	}

	r.reply(ctx, senderID,
		"Send advanced filters as key=value pairs (sort=difficulty_desc mode=mania status=ranked), or cancel.")
	err = r.Sessions.Await(ctx, senderID, r.Cfg.SessionTimeout, func(msg session.Message) session.Signal {
		if isCancel(msg.Text) {
			r.reply(ctx, senderID, "Advanced search cancelled.")
			return session.Stop()
		}
		params, sort, perr := parseAdvancedParams(msg.Text)
		if perr != nil {
			r.reply(ctx, senderID, perr.Error()+" Send the filters again.")
			return session.Keep(r.Cfg.SessionExtension)
		}
		params.Set("q", query)

		// The API only paginates its native orderings; other sorts need the
		// page cut locally.
		paginateLocally := sort != "" && sort != "relevance_desc" && sort != "updated_desc"
		if !paginateLocally {
			params.Set("page", strconv.Itoa(page))
		}
		res, err := r.Osu.SearchBeatmapsets(ctx, d.AccessToken, params)
		if err != nil {
			slog.Error("advanced search failed", slog.String("query", query), slog.Any("err", err))
			r.replyError(ctx, senderID, "Advanced search failed: "+err.Error())
			return session.Stop()
		}
		sets := res.Beatmapsets
		if paginateLocally {
			start := (page - 1) * perPage
			if start >= len(sets) {
				sets = nil
			} else {
				end := start + perPage
				if end > len(sets) {
					end = len(sets)
				}
				sets = sets[start:end]
			}
		}
		r.sendSearchResults(ctx, senderID, sets, res.Total, perPage, page)
		return session.Stop()
	})
	r.sessionEpilogue(ctx, senderID, "advanced search", err)
}

// parseAdvancedParams maps user filter tokens onto search query parameters.
// Returns the sort value separately because it decides pagination strategy.
func parseAdvancedParams(input string) (url.Values, string, error) {
	params := url.Values{}
	sort := ""
	for _, tok := range strings.Fields(input) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || value == "" {
			return nil, "", fmt.Errorf("bad filter %q, expected key=value.", tok)
		}
		switch key {
		case "sort":
			sort = value
			params.Set("sort", value)
		case "mode":
			m, err := osuapi.TrackMode(value)
			if err != nil {
				return nil, "", err
			}
			params.Set("m", strconv.Itoa(m))
		case "status":
			params.Set("s", value)
		case "genre":
			params.Set("g", value)
		case "language":
			params.Set("l", value)
		default:
			return nil, "", fmt.Errorf("unknown filter %q (sort, mode, status, genre, language).", key)
		}
	}
	return params, sort, nil
}

func (r *Router) sendSearchResults(ctx context.Context, senderID string, sets []osuapi.Beatmapset, total, perPage, page int) {
	if len(sets) == 0 {
		r.reply(ctx, senderID, "No beatmapsets matched.")
		return
	}
	if len(sets) > perPage {
		sets = sets[:perPage]
	}
	totalPages := 1
	if total > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	r.reply(ctx, senderID, fmt.Sprintf("Showing %d of %d results (page %d/%d).", len(sets), total, page, totalPages))
	for i, s := range sets {
		s := s
		n := i + 1 + (page-1)*perPage
		r.reply(ctx, senderID, fmt.Sprintf("[%d/%d] %s", n, total, FormatBeatmapset(&s, false)))
	}
}
