package peers

import (
	"math"

	"github.com/btc-node-dashboard/internal/types"
)

const (
	ConnectionInbound           = "inbound"
	ConnectionOutboundFullRelay = "outbound-full-relay"
	UnknownCountry              = "Unknown"
)

// Row is one line of the peer table
type Row struct {
	ID             int    `json:"id"`
	IP             string `json:"ip"`
	IPVersion      string `json:"ipVersion"`
	Inbound        bool   `json:"inbound"`
	ConnectionType string `json:"connectionType"`
	Country        string `json:"country"`
	Ping           int64  `json:"ping"` // milliseconds
}

// ToRows converts peer records to table rows, one row per record in input
// order. Ids are 1-based positions.
func ToRows(records []types.PeerRecord) []Row {
	rows := make([]Row, len(records))
	for i, p := range records {
		rows[i] = Row{
			ID:             i + 1,
			IP:             p.IP,
			IPVersion:      p.IPVersion,
			Inbound:        p.Inbound,
			ConnectionType: DefaultConnectionType(p.ConnectionType, p.Inbound),
			Country:        DefaultCountry(p.Country),
			Ping:           PingMillis(p.Ping),
		}
	}
	return rows
}

// DefaultConnectionType keeps a reported type and otherwise derives one from
// the link direction.
func DefaultConnectionType(connectionType string, inbound bool) string {
	if connectionType != "" {
		return connectionType
	}
	if inbound {
		return ConnectionInbound
	}
	return ConnectionOutboundFullRelay
}

func DefaultCountry(country string) string {
	if country == "" {
		return UnknownCountry
	}
	return country
}

// PingMillis converts a ping in seconds to whole milliseconds, rounding
// half up.
func PingMillis(seconds float64) int64 {
	return int64(math.Floor(seconds*1000 + 0.5))
}
