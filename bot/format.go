package bot

import (
	"fmt"
	"strings"

	"github.com/sodiumlabs/osubot/osuapi"
	"github.com/sodiumlabs/osubot/trackapi"
)

// FormatUser renders a user profile as a single chat line. Absent optional
// statistics are skipped rather than rendered as zeroes.
func FormatUser(u *osuapi.User, self bool) string {
	var b strings.Builder
	if self {
		b.WriteString("You are ")
	}
	fmt.Fprintf(&b, "%s (id %d", u.Username, u.ID)
	if u.CountryCode != "" {
		fmt.Fprintf(&b, ", %s", u.CountryCode)
	}
	b.WriteString(")")
	if s := u.Statistics; s != nil {
		fmt.Fprintf(&b, " | %.2fpp", s.PP)
		if s.GlobalRank != nil {
			fmt.Fprintf(&b, " | global #%d", *s.GlobalRank)
		}
		if s.CountryRank != nil {
			fmt.Fprintf(&b, " | country #%d", *s.CountryRank)
		}
		if s.HitAccuracy > 0 {
			fmt.Fprintf(&b, " | %.2f%% acc", s.HitAccuracy)
		}
		if s.PlayCount > 0 {
			fmt.Fprintf(&b, " | %d plays", s.PlayCount)
		}
	}
	return b.String()
}

// FormatFriend is the compact friend-list row.
func FormatFriend(u *osuapi.User) string {
	status := "offline"
	if u.IsOnline {
		status = "online"
	}
	s := fmt.Sprintf("%s (id %d, %s)", u.Username, u.ID, status)
	if u.Statistics != nil && u.Statistics.GlobalRank != nil {
		s += fmt.Sprintf(" #%d", *u.Statistics.GlobalRank)
	}
	return s
}

func formatLength(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatBeatmap renders one difficulty, prefixed with its mapset when the API
// embedded it.
func FormatBeatmap(m *osuapi.Beatmap) string {
	var b strings.Builder
	if m.Beatmapset != nil {
		fmt.Fprintf(&b, "%s - %s ", m.Beatmapset.Artist, m.Beatmapset.Title)
	}
	fmt.Fprintf(&b, "[%s] %.2f* | %s | %s", m.Version, m.DifficultyRating, m.Status, formatLength(m.TotalLength))
	if m.BPM > 0 {
		fmt.Fprintf(&b, " | %.0f BPM", m.BPM)
	}
	fmt.Fprintf(&b, " | CS%.1f AR%.1f OD%.1f HP%.1f", m.CS, m.AR, m.Accuracy, m.Drain)
	if m.MaxCombo > 0 {
		fmt.Fprintf(&b, " | %dx max", m.MaxCombo)
	}
	if m.URL != "" {
		b.WriteString(" | " + m.URL)
	}
	return b.String()
}

// FormatBeatmapset renders a mapset summary, optionally listing every
// difficulty.
func FormatBeatmapset(s *osuapi.Beatmapset, showBeatmaps bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s by %s | %s", s.Artist, s.Title, s.Creator, s.Status)
	if s.BPM > 0 {
		fmt.Fprintf(&b, " | %.0f BPM", s.BPM)
	}
	if s.PlayCount > 0 {
		fmt.Fprintf(&b, " | %d plays", s.PlayCount)
	}
	if s.FavouriteCount > 0 {
		fmt.Fprintf(&b, " | %d favs", s.FavouriteCount)
	}
	if showBeatmaps && len(s.Beatmaps) > 0 {
		diffs := make([]string, 0, len(s.Beatmaps))
		for _, m := range s.Beatmaps {
			diffs = append(diffs, fmt.Sprintf("[%s] %.2f*", m.Version, m.DifficultyRating))
		}
		fmt.Fprintf(&b, " | %s", strings.Join(diffs, ", "))
	} else {
		fmt.Fprintf(&b, " | %d diffs", len(s.Beatmaps))
	}
	return b.String()
}

// FormatUpdate renders the osu!track delta. A nil delta means this was the
// first recorded snapshot.
func FormatUpdate(u *trackapi.UpdateResponse) string {
	if !u.Exists {
		return "osu!track does not know that account."
	}
	if u.First || u.Update == nil {
		return fmt.Sprintf("First snapshot recorded for %s. Run update again later to see changes.", u.Username)
	}
	var parts []string
	d := u.Update
	if d.PPRaw != nil && *d.PPRaw != 0 {
		parts = append(parts, fmt.Sprintf("%+.2fpp", *d.PPRaw))
	}
	if d.PPRank != nil && *d.PPRank != 0 {
		// Rank deltas are inverted: a negative rank change is an improvement.
		parts = append(parts, fmt.Sprintf("rank %+d", -*d.PPRank))
	}
	if d.CountryRank != nil && *d.CountryRank != 0 {
		parts = append(parts, fmt.Sprintf("country rank %+d", -*d.CountryRank))
	}
	if d.Accuracy != nil && *d.Accuracy != 0 {
		parts = append(parts, fmt.Sprintf("%+.2f%% acc", *d.Accuracy))
	}
	if d.PlayCount != nil && *d.PlayCount != 0 {
		parts = append(parts, fmt.Sprintf("%+d plays", *d.PlayCount))
	}
	msg := fmt.Sprintf("%s since last update: ", u.Username)
	if len(parts) == 0 {
		msg += "no changes"
	} else {
		msg += strings.Join(parts, ", ")
	}
	if len(u.NewHiscores) > 0 {
		msg += fmt.Sprintf(" | %d new top plays", len(u.NewHiscores))
	}
	return msg
}
