package blockstats

import "github.com/btc-node-dashboard/internal/types"

// NotConnected is displayed instead of a connection time the node has not
// recorded yet
const NotConnected = "Not connected"

// BlockPanel is the metadata panel of one block
type BlockPanel struct {
	Title     string `json:"title"`
	Hash      string `json:"hash"`
	ShortHash string `json:"shortHash"`
	Time      string `json:"time"`
	Connected string `json:"connected"`
}

// Counters are the summary cards above the chart
type Counters struct {
	Mined          int64  `json:"mined"`
	Missing        int64  `json:"missing"`
	MinedDisplay   string `json:"minedDisplay"`
	MissingDisplay string `json:"missingDisplay"`
}

// View is everything the block propagation view renders once ready. It is
// built from the snapshot alone and never refers back to it.
type View struct {
	Current  BlockPanel `json:"current"`
	Previous BlockPanel `json:"previous"`
	Counters Counters   `json:"counters"`
	Timeline Timeline   `json:"timeline"`
	Chart    Chart      `json:"chart"`
}

// HasChart is false when there is nothing to plot
func (v View) HasChart() bool {
	return v.Timeline.Len() > 0
}

func BuildView(s *types.BlockStatsSnapshot) View {
	if s == nil {
		tl := ToTimeline(nil)
		return View{Timeline: tl, Chart: NewChart(tl, AxisLabel)}
	}

	tl := ToTimeline(s)
	return View{
		Current:  panel("Current Block", s.Block),
		Previous: panel("Previous Block", s.PrevBlock),
		Counters: Counters{
			Mined:          s.MinedTxCount,
			Missing:        s.MissingFromMempoolTxCount,
			MinedDisplay:   FormatCount(s.MinedTxCount),
			MissingDisplay: FormatCount(s.MissingFromMempoolTxCount),
		},
		Timeline: tl,
		Chart:    NewChart(tl, AxisLabel),
	}
}

func panel(title string, b types.BlockRef) BlockPanel {
	p := BlockPanel{
		Title:     title,
		Hash:      b.Hash,
		ShortHash: FormatHash(b.Hash),
		Time:      FormatUTC(millis(b.TimeUnixMillis)),
		Connected: NotConnected,
	}
	if b.ConnectedTimeUnixMillis != 0 {
		p.Connected = FormatUTC(millis(b.ConnectedTimeUnixMillis))
	}
	return p
}
