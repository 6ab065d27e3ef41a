package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// SchemaError reports a payload that is valid JSON but does not match the
// expected shape.
type SchemaError struct {
	Field  string
	Reason string // empty means the field is missing
}

func (e *SchemaError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing required field %q", e.Field)
	}
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

func missing(field string) error {
	return &SchemaError{Field: field}
}

type blockRefWire struct {
	Hash                    *string `json:"hash"`
	TimeUnixMillis          *int64  `json:"time_unix_millis"`
	ConnectedTimeUnixMillis *int64  `json:"connected_time_unix_millis"`
}

type sampleWire struct {
	TimeUnixMillis *int64 `json:"time_unix_millis"`
	TxCount        *int64 `json:"tx_count"`
}

type blockStatsWire struct {
	Block                     *blockRefWire `json:"block"`
	PrevBlock                 *blockRefWire `json:"prev_block"`
	MinedTxCount              *int64        `json:"mined_tx_count"`
	MissingFromMempoolTxCount *int64        `json:"missing_from_mempool_tx_count"`
	PropagationTimeline       *[]sampleWire `json:"propagation_timeline"`
}

type peerWire struct {
	IP             *string  `json:"ip"`
	IPVersion      *string  `json:"ip_version"`
	Inbound        *bool    `json:"inbound"`
	ConnectionType *string  `json:"connection_type"`
	Country        *string  `json:"country"`
	Ping           *float64 `json:"ping"`
}

// DecodeBlockStats decodes a block-stats payload, rejecting it when a
// required field is absent. An empty propagation_timeline is accepted, an
// absent one is not.
func DecodeBlockStats(data []byte) (*BlockStatsSnapshot, error) {
	var w blockStatsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, typeError(err, "block_stats")
	}

	block, err := w.Block.decode("block")
	if err != nil {
		return nil, err
	}
	prev, err := w.PrevBlock.decode("prev_block")
	if err != nil {
		return nil, err
	}
	if w.MinedTxCount == nil {
		return nil, missing("mined_tx_count")
	}
	if w.MissingFromMempoolTxCount == nil {
		return nil, missing("missing_from_mempool_tx_count")
	}
	if w.PropagationTimeline == nil {
		return nil, missing("propagation_timeline")
	}

	timeline := make([]TimelineSample, 0, len(*w.PropagationTimeline))
	for i, s := range *w.PropagationTimeline {
		if s.TimeUnixMillis == nil {
			return nil, missing(fmt.Sprintf("propagation_timeline[%d].time_unix_millis", i))
		}
		if s.TxCount == nil {
			return nil, missing(fmt.Sprintf("propagation_timeline[%d].tx_count", i))
		}
		timeline = append(timeline, TimelineSample{
			TimeUnixMillis: *s.TimeUnixMillis,
			TxCount:        *s.TxCount,
		})
	}

	return &BlockStatsSnapshot{
		Block:                     block,
		PrevBlock:                 prev,
		MinedTxCount:              *w.MinedTxCount,
		MissingFromMempoolTxCount: *w.MissingFromMempoolTxCount,
		PropagationTimeline:       timeline,
	}, nil
}

func (w *blockRefWire) decode(name string) (BlockRef, error) {
	if w == nil {
		return BlockRef{}, missing(name)
	}
	if w.Hash == nil {
		return BlockRef{}, missing(name + ".hash")
	}
	if w.TimeUnixMillis == nil {
		return BlockRef{}, missing(name + ".time_unix_millis")
	}

	ref := BlockRef{
		Hash:           *w.Hash,
		TimeUnixMillis: *w.TimeUnixMillis,
	}
	if w.ConnectedTimeUnixMillis != nil {
		ref.ConnectedTimeUnixMillis = *w.ConnectedTimeUnixMillis
	}
	return ref, nil
}

// DecodePeers decodes a /peers payload. connection_type and country are
// optional; null and absent are treated alike.
func DecodePeers(data []byte) ([]PeerRecord, error) {
	var ws []peerWire
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, typeError(err, "peers")
	}

	peers := make([]PeerRecord, 0, len(ws))
	for i, w := range ws {
		field := func(name string) string {
			return fmt.Sprintf("peers[%d].%s", i, name)
		}
		switch {
		case w.IP == nil:
			return nil, missing(field("ip"))
		case w.IPVersion == nil:
			return nil, missing(field("ip_version"))
		case w.Inbound == nil:
			return nil, missing(field("inbound"))
		case w.Ping == nil:
			return nil, missing(field("ping"))
		}

		p := PeerRecord{
			IP:        *w.IP,
			IPVersion: *w.IPVersion,
			Inbound:   *w.Inbound,
			Ping:      *w.Ping,
		}
		if w.ConnectionType != nil {
			p.ConnectionType = *w.ConnectionType
		}
		if w.Country != nil {
			p.Country = *w.Country
		}
		peers = append(peers, p)
	}

	return peers, nil
}

// typeError turns json type mismatches into SchemaErrors and passes anything
// else through.
func typeError(err error, root string) error {
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) {
		field := ute.Field
		if field == "" {
			field = root
		}
		return &SchemaError{
			Field:  field,
			Reason: fmt.Sprintf("expected %s, got %s", jsonKind(ute.Type), ute.Value),
		}
	}
	return fmt.Errorf("decode %s: %w", root, err)
}

// jsonKind names the JSON type a Go decode target accepts
func jsonKind(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	default:
		return "value"
	}
}
