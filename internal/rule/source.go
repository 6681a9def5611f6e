package rule

import (
	"net"
	"strings"
)

type SourceKind int

const (
	SourceAny SourceKind = iota
	SourceIPv4
	SourceIPv4Network
	SourceCountry
	SourceCity
)

// Source is one origin condition of an access entry: a single IPv4
// address, an IPv4 network, a two-letter country code, a city name,
// or the wildcard matching any visitor.
type Source struct {
	Kind    SourceKind
	IP      net.IP
	Net     *net.IPNet
	Country string
	City    string
}

// ParseSource classifies a single token. An empty token or "*" is the
// wildcard, exactly two characters are treated as a country code, then
// IPv4 address and IPv4 CIDR notations are tried, and anything left
// over is taken as a city name.
func ParseSource(input string) Source {
	if input == "" || input == "*" {
		return Source{Kind: SourceAny}
	}
	if len(input) == 2 {
		return Source{Kind: SourceCountry, Country: input}
	}
	if ip := parseIPv4(input); ip != nil {
		return Source{Kind: SourceIPv4, IP: ip}
	}
	if ipnet := parseIPv4Network(input); ipnet != nil {
		return Source{Kind: SourceIPv4Network, Net: ipnet}
	}
	return Source{Kind: SourceCity, City: input}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceIPv4:
		return s.IP.String()
	case SourceIPv4Network:
		return s.Net.String()
	case SourceCountry:
		return s.Country
	case SourceCity:
		return s.City
	default:
		return "*"
	}
}

// Matches reports whether the visitor satisfies this source.
func (s Source) Matches(v Visitor) bool {
	switch s.Kind {
	case SourceAny:
		return true
	case SourceIPv4:
		return s.IP.Equal(v.IP())
	case SourceIPv4Network:
		return s.Net.Contains(v.IP())
	case SourceCountry:
		return v.Country() == s.Country
	case SourceCity:
		return v.City() == s.City
	}
	return false
}

func parseIPv4(input string) net.IP {
	if strings.Contains(input, ":") {
		return nil
	}
	ip := net.ParseIP(input)
	if ip == nil || ip.To4() == nil {
		return nil
	}
	return ip.To4()
}

func parseIPv4Network(input string) *net.IPNet {
	if strings.Contains(input, ":") {
		return nil
	}
	_, ipnet, err := net.ParseCIDR(input)
	if err != nil || ipnet.IP.To4() == nil {
		return nil
	}
	return ipnet
}
