package types

import "fmt"

// BlockRef identifies a block and when the local node saw it
type BlockRef struct {
	Hash                    string `json:"hash"`
	TimeUnixMillis          int64  `json:"time_unix_millis"`
	ConnectedTimeUnixMillis int64  `json:"connected_time_unix_millis"` // 0 until the node connects the block
}

// TimelineSample is one point of the propagation timeline
type TimelineSample struct {
	TimeUnixMillis int64 `json:"time_unix_millis"`
	TxCount        int64 `json:"tx_count"`
}

// BlockStatsSnapshot is the payload of /block-stats/latest
type BlockStatsSnapshot struct {
	Block                     BlockRef         `json:"block"`
	PrevBlock                 BlockRef         `json:"prev_block"`
	MinedTxCount              int64            `json:"mined_tx_count"`
	MissingFromMempoolTxCount int64            `json:"missing_from_mempool_tx_count"`
	PropagationTimeline       []TimelineSample `json:"propagation_timeline"`
}

// PeerRecord is one entry of the /peers payload
type PeerRecord struct {
	IP             string  `json:"ip"`
	IPVersion      string  `json:"ip_version"` // "IPv4" or "IPv6"
	Inbound        bool    `json:"inbound"`
	ConnectionType string  `json:"connection_type,omitempty"`
	Country        string  `json:"country,omitempty"`
	Ping           float64 `json:"ping"` // seconds
}

// Anomalies lists violations of the snapshot invariants. They are reported,
// not rejected: the dashboard shows what the node sent.
func (s *BlockStatsSnapshot) Anomalies() []string {
	var out []string
	if s.MinedTxCount < 0 {
		out = append(out, fmt.Sprintf("mined_tx_count is negative (%d)", s.MinedTxCount))
	}
	if s.MissingFromMempoolTxCount < 0 {
		out = append(out, fmt.Sprintf("missing_from_mempool_tx_count is negative (%d)", s.MissingFromMempoolTxCount))
	}
	if s.MissingFromMempoolTxCount > s.MinedTxCount {
		out = append(out, fmt.Sprintf("missing_from_mempool_tx_count %d exceeds mined_tx_count %d",
			s.MissingFromMempoolTxCount, s.MinedTxCount))
	}

	for i := 1; i < len(s.PropagationTimeline); i++ {
		prev, cur := s.PropagationTimeline[i-1], s.PropagationTimeline[i]
		if cur.TimeUnixMillis < prev.TimeUnixMillis {
			out = append(out, fmt.Sprintf("propagation_timeline[%d] goes back in time", i))
		}
		if cur.TxCount < prev.TxCount {
			out = append(out, fmt.Sprintf("propagation_timeline[%d] tx_count decreases (%d -> %d)", i, prev.TxCount, cur.TxCount))
		}
	}
	for i, p := range s.PropagationTimeline {
		if p.TxCount > s.MinedTxCount {
			out = append(out, fmt.Sprintf("propagation_timeline[%d] tx_count %d exceeds mined_tx_count %d", i, p.TxCount, s.MinedTxCount))
		}
	}

	return out
}
