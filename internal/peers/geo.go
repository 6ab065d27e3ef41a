package peers

import (
	"fmt"
	"net"
	"sync"

	"github.com/btc-node-dashboard/internal/types"
	"github.com/oschwald/geoip2-golang"
	log "github.com/sirupsen/logrus"
)

// GeoResolver fills in peer countries the node did not report, from a
// MaxMind country or city database. A nil *GeoResolver is valid and
// resolves nothing.
type GeoResolver struct {
	db     *geoip2.Reader
	lookup func(net.IP) (string, error)
	cache  sync.Map // ip string -> country name, "" when unresolved
}

// OpenGeoResolver opens the database at dbPath
func OpenGeoResolver(dbPath string) (*GeoResolver, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", dbPath, err)
	}

	g := &GeoResolver{db: db}
	g.lookup = func(ip net.IP) (string, error) {
		record, err := db.Country(ip)
		if err != nil {
			return "", err
		}
		return record.Country.Names["en"], nil
	}
	return g, nil
}

func (g *GeoResolver) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

// Country returns the English country name for a peer address, or "" when
// the address cannot be resolved. Addresses may carry a port.
func (g *GeoResolver) Country(addr string) string {
	if g == nil || g.lookup == nil {
		return ""
	}
	if v, ok := g.cache.Load(addr); ok {
		return v.(string)
	}

	country := ""
	if ip := parseIP(addr); ip != nil {
		name, err := g.lookup(ip)
		if err != nil {
			log.WithFields(log.Fields{"ip": addr, "error": err}).Debug("GeoIP lookup failed")
		} else {
			country = name
		}
	}

	g.cache.Store(addr, country)
	return country
}

// Enrich returns a copy of records where empty countries are filled from the
// database. Reported countries are kept.
func (g *GeoResolver) Enrich(records []types.PeerRecord) []types.PeerRecord {
	if g == nil {
		return records
	}

	out := make([]types.PeerRecord, len(records))
	copy(out, records)
	resolved := 0
	for i := range out {
		if out[i].Country != "" {
			continue
		}
		if c := g.Country(out[i].IP); c != "" {
			out[i].Country = c
			resolved++
		}
	}

	log.WithFields(log.Fields{
		"peers":    len(out),
		"resolved": resolved,
	}).Debug("Enriched peer countries")
	return out
}

func parseIP(addr string) net.IP {
	if ip := net.ParseIP(addr); ip != nil {
		return ip
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}
