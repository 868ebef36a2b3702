package geo

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Resolver maps a source IP to coordinates. A failed lookup reports ok=false
// and the caller records the row without coordinates; it is never an error.
type Resolver interface {
	Lookup(ip string) (lat, lon float64, ok bool)
}

// MaxMind resolves against a local GeoIP2/GeoLite2 city database.
type MaxMind struct {
	db *geoip2.Reader
}

// Open loads the database file. The caller decides whether a missing
// database is fatal; the pipeline runs without one.
func Open(path string) (*MaxMind, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MaxMind{db: db}, nil
}

func (m *MaxMind) Lookup(ip string) (float64, float64, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return 0, 0, false
	}
	city, err := m.db.City(parsed)
	if err != nil {
		return 0, 0, false
	}
	loc := city.Location
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return 0, 0, false
	}
	return loc.Latitude, loc.Longitude, true
}

func (m *MaxMind) Close() error {
	return m.db.Close()
}

// Disabled is used when no GeoIP database is configured; every lookup
// degrades to absent coordinates.
type Disabled struct{}

func (Disabled) Lookup(string) (float64, float64, bool) { return 0, 0, false }
