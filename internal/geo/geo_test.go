package geo

import (
	"testing"
)

func TestStripQuery(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{uri: "/", want: "/"},
		{uri: "/path/to/resource", want: "/path/to/resource"},
		{uri: "/path?x=1&y=2", want: "/path"},
		{uri: "/path?", want: "/path"},
		{uri: "?x=1", want: ""},
	}
	for _, tt := range tests {
		if got := StripQuery(tt.uri); got != tt.want {
			t.Errorf("StripQuery(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestLocalhostVisit(t *testing.T) {
	v := Localhost("/admin?token=x")
	if v.IP().String() != "127.0.0.1" {
		t.Errorf("expected loopback address, got %s", v.IP())
	}
	if v.Country() != "" || v.City() != "" {
		t.Errorf("expected no geolocation, got %q %q", v.Country(), v.City())
	}
	if v.URI() != "/admin" {
		t.Errorf("expected query string to be stripped, got %q", v.URI())
	}
}
