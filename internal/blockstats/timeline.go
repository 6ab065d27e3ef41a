package blockstats

import (
	"time"

	"github.com/btc-node-dashboard/internal/types"
)

// Timeline is the propagation series: Counts[i] block transactions were
// already known to the node at Times[i].
type Timeline struct {
	Times  []time.Time `json:"times"`
	Counts []int64     `json:"counts"`
}

// Len returns the number of samples
func (t Timeline) Len() int {
	return len(t.Counts)
}

// ToTimeline maps the snapshot's propagation timeline pointwise, in source
// order. The series is empty (never nil) when the snapshot is nil or either
// block has not been connected yet; that means "nothing to chart", not an
// error.
func ToTimeline(s *types.BlockStatsSnapshot) Timeline {
	if s == nil || s.Block.ConnectedTimeUnixMillis == 0 || s.PrevBlock.ConnectedTimeUnixMillis == 0 {
		return Timeline{Times: []time.Time{}, Counts: []int64{}}
	}

	tl := Timeline{
		Times:  make([]time.Time, len(s.PropagationTimeline)),
		Counts: make([]int64, len(s.PropagationTimeline)),
	}
	for i, p := range s.PropagationTimeline {
		tl.Times[i] = millis(p.TimeUnixMillis)
		tl.Counts[i] = p.TxCount
	}
	return tl
}

// Point is one chart sample with its x-axis label
type Point struct {
	Time  time.Time `json:"time"`
	Label string    `json:"label"`
	Count int64     `json:"count"`
}

// Chart is what the line chart sink consumes
type Chart struct {
	Points []Point `json:"points"`
}

// NewChart pairs every timeline sample with label(t). A nil label uses AxisLabel.
func NewChart(tl Timeline, label func(time.Time) string) Chart {
	if label == nil {
		label = AxisLabel
	}
	points := make([]Point, tl.Len())
	for i := range points {
		points[i] = Point{
			Time:  tl.Times[i],
			Label: label(tl.Times[i]),
			Count: tl.Counts[i],
		}
	}
	return Chart{Points: points}
}

// Max returns the largest count, 0 for an empty chart
func (c Chart) Max() int64 {
	var m int64
	for _, p := range c.Points {
		if p.Count > m {
			m = p.Count
		}
	}
	return m
}

func millis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
