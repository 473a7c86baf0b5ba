// Package chart renders PNG time-series charts of tracked player statistics.
package chart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/sodiumlabs/osubot/trackapi"
)

// Kind names a chartable metric.
type Kind string

const (
	KindPP       Kind = "pp"
	KindRank     Kind = "rank"
	KindAccuracy Kind = "accuracy"
)

// ParseKind normalizes a user-supplied chart type. "acc" is accepted as an
// alias for accuracy; empty defaults to pp.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "pp":
		return KindPP, nil
	case "rank":
		return KindRank, nil
	case "accuracy", "acc":
		return KindAccuracy, nil
	default:
		return "", fmt.Errorf("unknown chart type %q (use pp, rank or accuracy)", s)
	}
}

// Render draws the chosen metric of the user's stats history over the last
// `days` days as a PNG. At least two snapshots must fall inside the window.
func Render(kind Kind, points []trackapi.StatsPoint, username, mode string, days int) ([]byte, error) {
	if days < 1 || days > 365 {
		return nil, fmt.Errorf("days out of range: %d (1..365)", days)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	var (
		xValues []time.Time
		yValues []float64
	)
	for _, p := range points {
		ts, err := p.Time()
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			continue
		}
		xValues = append(xValues, ts)
		switch kind {
		case KindRank:
			yValues = append(yValues, float64(p.PPRank))
		case KindAccuracy:
			yValues = append(yValues, p.Accuracy)
		default:
			yValues = append(yValues, p.PPRaw)
		}
	}
	if len(xValues) < 2 {
		return nil, fmt.Errorf("need at least 2 data points in the last %d days, got %d", days, len(xValues))
	}

	series := chart.TimeSeries{
		Name: string(kind),
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("e8498f"),
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: yValues,
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s - %s (%s, last %dd)", username, kind, mode, days),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 02")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: yFormatter(kind),
		},
		Series: []chart.Series{series},
	}

	// Rank charts read top-down: rank 1 belongs at the top.
	if kind == KindRank {
		minY, maxY := yValues[0], yValues[0]
		for _, y := range yValues {
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
		graph.YAxis.Range = &chart.ContinuousRange{
			Min:        minY,
			Max:        maxY,
			Descending: true,
		}
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func yFormatter(kind Kind) chart.ValueFormatter {
	switch kind {
	case KindAccuracy:
		return func(v interface{}) string {
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%.2f%%", f)
			}
			return ""
		}
	case KindRank:
		return func(v interface{}) string {
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("#%.0f", f)
			}
			return ""
		}
	default:
		return func(v interface{}) string {
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%.0fpp", f)
			}
			return ""
		}
	}
}
