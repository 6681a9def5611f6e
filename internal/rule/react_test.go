package rule

import (
	"net"
	"testing"
)

type testVisitor struct {
	ip      net.IP
	country string
	city    string
	uri     string
}

func (v testVisitor) IP() net.IP      { return v.ip }
func (v testVisitor) Country() string { return v.country }
func (v testVisitor) City() string    { return v.city }
func (v testVisitor) URI() string     { return v.uri }

func visitorFrom(ip, country, city, uri string) testVisitor {
	return testVisitor{ip: net.ParseIP(ip), country: country, city: city, uri: uri}
}

func mustParse(t *testing.T, line string) Rule {
	t.Helper()
	r, err := Parse(line)
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return r
}

func TestReactAccessPrecedence(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		visitor testVisitor
		applies bool
	}{
		{
			name:    "excluding after match wins",
			line:    "GB,-US,ES",
			visitor: visitorFrom("10.0.0.1", "US", "", "/"),
			applies: false,
		},
		{
			name:    "match not followed by exclusion applies",
			line:    "US,-GB",
			visitor: visitorFrom("10.0.0.1", "US", "", "/"),
			applies: true,
		},
		{
			name:    "match after exclusion re-grants",
			line:    "-US,US",
			visitor: visitorFrom("10.0.0.1", "US", "", "/"),
			applies: true,
		},
		{
			name:    "excluding wildcard is inert",
			line:    "US,-*",
			visitor: visitorFrom("10.0.0.1", "US", "", "/"),
			applies: true,
		},
		{
			name:    "no access entry matches",
			line:    "GB,ES",
			visitor: visitorFrom("10.0.0.1", "US", "", "/"),
			applies: false,
		},
		{
			name:    "unresolved country never matches",
			line:    "GB",
			visitor: visitorFrom("10.0.0.1", "", "", "/"),
			applies: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustParse(t, tt.line)
			_, ok := r.React(tt.visitor)
			if ok != tt.applies {
				t.Errorf("expected applies=%v for %q against %+v", tt.applies, tt.line, tt.visitor)
			}
		})
	}
}

func TestReactSourceKinds(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		visitor testVisitor
		applies bool
	}{
		{
			name:    "exact ip",
			line:    "403|127.0.0.1",
			visitor: visitorFrom("127.0.0.1", "", "", "/"),
			applies: true,
		},
		{
			name:    "different ip",
			line:    "403|127.0.0.1",
			visitor: visitorFrom("127.0.0.2", "", "", "/"),
			applies: false,
		},
		{
			name:    "cidr containment",
			line:    "403|10.1.0.0/16",
			visitor: visitorFrom("10.1.2.3", "", "", "/"),
			applies: true,
		},
		{
			name:    "cidr miss",
			line:    "403|10.1.0.0/16",
			visitor: visitorFrom("10.2.2.3", "", "", "/"),
			applies: false,
		},
		{
			name:    "city match",
			line:    "403|London",
			visitor: visitorFrom("10.0.0.1", "GB", "London", "/"),
			applies: true,
		},
		{
			name:    "country is case-sensitive",
			line:    "403|GB",
			visitor: visitorFrom("10.0.0.1", "gb", "", "/"),
			applies: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustParse(t, tt.line)
			_, ok := r.React(tt.visitor)
			if ok != tt.applies {
				t.Errorf("expected applies=%v for %q against %+v", tt.applies, tt.line, tt.visitor)
			}
		})
	}
}

func TestReactTargetPhase(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		uri     string
		applies bool
	}{
		{name: "exact path", line: "403|/admin", uri: "/admin", applies: true},
		{name: "path with trailing slash", line: "403|/admin", uri: "/admin/", applies: true},
		{name: "path with deeper segment", line: "403|/admin", uri: "/admin/users", applies: false},
		{name: "prefix", line: "403|^/admin", uri: "/admin/users", applies: true},
		{name: "prefix miss", line: "403|^/admin", uri: "/public", applies: false},
		{name: "first target match wins", line: "403|/a,^/b", uri: "/b/c", applies: true},
		{name: "no target match skips access", line: "403|/a,US", uri: "/other", applies: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustParse(t, tt.line)
			// country US so the access phase would always grant if reached
			v := visitorFrom("10.0.0.1", "US", "", tt.uri)
			re, ok := r.React(v)
			if ok != tt.applies {
				t.Errorf("expected applies=%v for %q with uri %q", tt.applies, tt.line, tt.uri)
			}
			if ok && re.Code() != 403 {
				t.Errorf("expected reaction 403, got %d", re.Code())
			}
		})
	}
}
