package chart

import (
	"bytes"
	"testing"
	"time"

	"github.com/sodiumlabs/osubot/trackapi"
)

var pngMagic = []byte{0x89, 0x50, 0x4e, 0x47}

func recentPoints(n int) []trackapi.StatsPoint {
	points := make([]trackapi.StatsPoint, n)
	for i := range points {
		ts := time.Now().AddDate(0, 0, -(n - i)).UTC()
		points[i] = trackapi.StatsPoint{
			PPRaw:     1000 + float64(i)*10,
			PPRank:    50000 - i*100,
			Accuracy:  95 + float64(i)*0.1,
			Timestamp: ts.Format("2006-01-02T15:04:05"),
		}
	}
	return points
}

func TestRenderProducesPNG(t *testing.T) {
	for _, kind := range []Kind{KindPP, KindRank, KindAccuracy} {
		t.Run(string(kind), func(t *testing.T) {
			png, err := Render(kind, recentPoints(10), "player", "osu", 30)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !bytes.HasPrefix(png, pngMagic) {
				t.Error("output is not a PNG")
			}
		})
	}
}

func TestRenderTooFewPoints(t *testing.T) {
	if _, err := Render(KindPP, recentPoints(1), "player", "osu", 30); err == nil {
		t.Error("Render() with 1 point expected error")
	}
	if _, err := Render(KindPP, nil, "player", "osu", 30); err == nil {
		t.Error("Render() with no points expected error")
	}
}

func TestRenderWindowFiltersOldPoints(t *testing.T) {
	points := recentPoints(10)
	// Push everything outside a 3-day window except the last two snapshots.
	_, err := Render(KindPP, points, "player", "osu", 3)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	old := []trackapi.StatsPoint{
		{PPRaw: 1, Timestamp: "2019-01-01T00:00:00"},
		{PPRaw: 2, Timestamp: "2019-01-02T00:00:00"},
	}
	if _, err := Render(KindPP, old, "player", "osu", 30); err == nil {
		t.Error("Render() with only stale points expected error")
	}
}

func TestRenderDaysRange(t *testing.T) {
	for _, days := range []int{0, -1, 366} {
		if _, err := Render(KindPP, recentPoints(5), "player", "osu", days); err == nil {
			t.Errorf("Render() with days=%d expected error", days)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "", want: KindPP},
		{in: "pp", want: KindPP},
		{in: "rank", want: KindRank},
		{in: "accuracy", want: KindAccuracy},
		{in: "acc", want: KindAccuracy},
		{in: "combo", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseKind(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseKind(%q) = (%q, %v), want %q", tt.in, got, err, tt.want)
		}
	}
}
