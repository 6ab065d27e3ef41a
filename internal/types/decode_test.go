package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blockStatsPayload = `{
	"block": {"hash": "00000000000000000001a2b3c4d5e6f7", "time_unix_millis": 1700000000000, "connected_time_unix_millis": 1700000003000},
	"prev_block": {"hash": "0000000000000000000fedcba9876543", "time_unix_millis": 1699999400000, "connected_time_unix_millis": 1699999401000},
	"mined_tx_count": 3120,
	"missing_from_mempool_tx_count": 12,
	"propagation_timeline": [
		{"time_unix_millis": 1700000001000, "tx_count": 3000},
		{"time_unix_millis": 1700000002000, "tx_count": 3108}
	]
}`

func TestDecodeBlockStats(t *testing.T) {
	s, err := DecodeBlockStats([]byte(blockStatsPayload))
	require.NoError(t, err)

	assert.Equal(t, "00000000000000000001a2b3c4d5e6f7", s.Block.Hash)
	assert.Equal(t, int64(1700000003000), s.Block.ConnectedTimeUnixMillis)
	assert.Equal(t, int64(3120), s.MinedTxCount)
	assert.Equal(t, int64(12), s.MissingFromMempoolTxCount)
	require.Len(t, s.PropagationTimeline, 2)
	assert.Equal(t, TimelineSample{TimeUnixMillis: 1700000002000, TxCount: 3108}, s.PropagationTimeline[1])
	assert.Empty(t, s.Anomalies())
}

func TestDecodeBlockStats_OptionalConnectedTime(t *testing.T) {
	data := `{
		"block": {"hash": "aa", "time_unix_millis": 1, "connected_time_unix_millis": null},
		"prev_block": {"hash": "bb", "time_unix_millis": 0},
		"mined_tx_count": 0,
		"missing_from_mempool_tx_count": 0,
		"propagation_timeline": []
	}`

	s, err := DecodeBlockStats([]byte(data))
	require.NoError(t, err)
	assert.Zero(t, s.Block.ConnectedTimeUnixMillis)
	assert.Zero(t, s.PrevBlock.ConnectedTimeUnixMillis)
	assert.NotNil(t, s.PropagationTimeline)
	assert.Empty(t, s.PropagationTimeline)
}

func TestDecodeBlockStats_MissingFields(t *testing.T) {
	cases := map[string]struct {
		data  string
		field string
	}{
		"timeline": {
			data:  `{"block": {"hash": "a", "time_unix_millis": 1}, "prev_block": {"hash": "b", "time_unix_millis": 1}, "mined_tx_count": 1, "missing_from_mempool_tx_count": 0}`,
			field: "propagation_timeline",
		},
		"prev block": {
			data:  `{"block": {"hash": "a", "time_unix_millis": 1}, "mined_tx_count": 1, "missing_from_mempool_tx_count": 0, "propagation_timeline": []}`,
			field: "prev_block",
		},
		"block hash": {
			data:  `{"block": {"time_unix_millis": 1}, "prev_block": {"hash": "b", "time_unix_millis": 1}, "mined_tx_count": 1, "missing_from_mempool_tx_count": 0, "propagation_timeline": []}`,
			field: "block.hash",
		},
		"sample count": {
			data:  `{"block": {"hash": "a", "time_unix_millis": 1}, "prev_block": {"hash": "b", "time_unix_millis": 1}, "mined_tx_count": 1, "missing_from_mempool_tx_count": 0, "propagation_timeline": [{"time_unix_millis": 5}]}`,
			field: "propagation_timeline[0].tx_count",
		},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBlockStats([]byte(c.data))
			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, c.field, se.Field)
			assert.Contains(t, err.Error(), "missing required field")
		})
	}
}

func TestDecodeBlockStats_WrongType(t *testing.T) {
	_, err := DecodeBlockStats([]byte(`{"mined_tx_count": "many"}`))
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "mined_tx_count", se.Field)
	assert.Equal(t, "expected number, got string", se.Reason)
}

func TestDecodePeers(t *testing.T) {
	data := `[
		{"ip": "1.2.3.4", "ip_version": "IPv4", "inbound": false, "ping": 0.05},
		{"ip": "2001:db8::1", "ip_version": "IPv6", "inbound": true, "connection_type": "inbound", "country": "Germany", "ping": 0.1234},
		{"ip": "5.6.7.8", "ip_version": "IPv4", "inbound": false, "connection_type": null, "country": null, "ping": 0}
	]`

	peers, err := DecodePeers([]byte(data))
	require.NoError(t, err)
	require.Len(t, peers, 3)

	assert.Equal(t, PeerRecord{IP: "1.2.3.4", IPVersion: "IPv4", Ping: 0.05}, peers[0])
	assert.Equal(t, "Germany", peers[1].Country)
	assert.True(t, peers[1].Inbound)
	assert.Empty(t, peers[2].ConnectionType)
	assert.Empty(t, peers[2].Country)
}

func TestDecodePeers_MissingPing(t *testing.T) {
	_, err := DecodePeers([]byte(`[{"ip": "1.2.3.4", "ip_version": "IPv4", "inbound": false, "ping": 1}, {"ip": "1.2.3.5", "ip_version": "IPv4", "inbound": true}]`))
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "peers[1].ping", se.Field)
}

func TestDecodePeers_NotAnArray(t *testing.T) {
	_, err := DecodePeers([]byte(`{"ip": "1.2.3.4"}`))
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "peers", se.Field)
	assert.Equal(t, "expected array, got object", se.Reason)
	assert.NotContains(t, err.Error(), "types.")
}

func TestAnomalies(t *testing.T) {
	s := &BlockStatsSnapshot{
		MinedTxCount:              5,
		MissingFromMempoolTxCount: 7,
		PropagationTimeline: []TimelineSample{
			{TimeUnixMillis: 2000, TxCount: 4},
			{TimeUnixMillis: 1000, TxCount: 3},
			{TimeUnixMillis: 3000, TxCount: 6},
		},
	}

	got := s.Anomalies()
	assert.Len(t, got, 4)
	assert.Contains(t, got[0], "exceeds mined_tx_count")
}
