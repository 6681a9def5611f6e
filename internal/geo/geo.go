// Package geo resolves visitor geolocation through a MaxMind
// GeoLite2 database.
package geo

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Visit is one resolved request: the client address, its geolocation
// when known and the request path with the query string removed.
// Unresolved country and city stay empty and never match a rule.
type Visit struct {
	ip      net.IP
	country string
	city    string
	uri     string
}

// NewVisit builds a visit value directly, bypassing database lookup.
func NewVisit(ip net.IP, country, city, uri string) Visit {
	return Visit{ip: ip, country: country, city: city, uri: uri}
}

func (v Visit) IP() net.IP      { return v.ip }
func (v Visit) Country() string { return v.country }
func (v Visit) City() string    { return v.city }
func (v Visit) URI() string     { return v.uri }

// Localhost is the fallback visit for requests whose client address
// could not be established, loopback with no geolocation.
func Localhost(uri string) Visit {
	return Visit{ip: net.IPv4(127, 0, 0, 1), uri: StripQuery(uri)}
}

// StripQuery removes the query string from a request URI.
func StripQuery(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}

// Resolver looks up visitor geolocation in a GeoLite2 city database.
type Resolver struct {
	reader *geoip2.Reader
}

// Open reads GeoLite2-City.mmdb from the given directory.
func Open(dir string) (*Resolver, error) {
	reader, err := geoip2.Open(filepath.Join(dir, "GeoLite2-City.mmdb"))
	if err != nil {
		return nil, fmt.Errorf("opening maxmind db: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

func (r *Resolver) Close() error {
	return r.reader.Close()
}

// Visit resolves the geolocation of a client address. Addresses
// missing from the database still produce a valid visit with empty
// country and city.
func (r *Resolver) Visit(ip net.IP, uri string) (Visit, error) {
	record, err := r.reader.City(ip)
	if err != nil {
		return Visit{}, fmt.Errorf("looking up %s: %w", ip, err)
	}
	return Visit{
		ip:      ip,
		country: record.Country.IsoCode,
		city:    record.City.Names["en"],
		uri:     StripQuery(uri),
	}, nil
}
