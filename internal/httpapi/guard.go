package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wcrbrm/traefik-guard/internal/geo"
)

// handleGuard answers the forward-auth probe for one request. The
// original URI arrives in x-forwarded-uri, the verdict leaves as the
// response status, geolocation and address classification leave as
// response headers.
func (s *Server) handleGuard(c echo.Context) error {
	nsg := c.Param("nsg")
	uri := c.Request().Header.Get("x-forwarded-uri")
	if uri == "" {
		uri = "/"
	}
	h := c.Response().Header()
	h.Set("x-uri", uri)

	ip := net.ParseIP(c.RealIP())
	if ip != nil {
		ip = ip.To4()
	}
	switch {
	case ip == nil:
		// rules only address IPv4, other callers pass as loopback
		h.Set("x-ipv6", "1")
		ip = net.IPv4(127, 0, 0, 1)
	case isLocalAddr(ip):
		h.Set("x-local-ip", "1")
	default:
		h.Set("x-real-ip", ip.String())
	}

	if s.resolver == nil {
		h.Set("x-maxmind-error", "1")
		return c.NoContent(http.StatusOK)
	}
	visit, err := s.resolver.Visit(ip, uri)
	if err != nil {
		visit = geo.Localhost(uri)
	}
	if visit.Country() != "" {
		h.Set("x-country-code", visit.Country())
	}
	if visit.City() != "" {
		h.Set("x-city-en-name", visit.City())
	}

	re := s.svc.React(nsg, visit)
	reactions.WithLabelValues(nsg, strconv.Itoa(int(re.Code()))).Inc()
	if to, ok := re.Redirect(); ok {
		h.Set(echo.HeaderLocation, absoluteLocation(to, c.Request().Header))
	}
	return c.NoContent(int(re.Code()))
}

func isLocalAddr(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// absoluteLocation resolves a relative redirect target against the
// edge host the request arrived through.
func absoluteLocation(to string, reqHeader http.Header) string {
	if strings.Contains(to, "://") {
		return to
	}
	host := reqHeader.Get("x-forwarded-host")
	if host == "" {
		return to
	}
	proto := reqHeader.Get("x-forwarded-proto")
	if proto == "" {
		proto = "http"
	}
	return proto + "://" + host + "/" + strings.TrimLeft(to, "/")
}
