// Package httpapi exposes the security groups over HTTP: the
// forward-auth guard endpoint, rule management routes, metrics and
// an OpenAPI description.
package httpapi

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wcrbrm/traefik-guard/internal/geo"
	"github.com/wcrbrm/traefik-guard/internal/state"
)

// Options tunes the server behavior.
type Options struct {
	// IPSource selects where the client address is read from. One of
	// connect-info, x-real-ip, rightmost-forwarded,
	// rightmost-x-forwarded-for, cf-connecting-ip, true-client-ip,
	// fly-client-ip. Unknown values fall back to connect-info.
	IPSource string
}

// Resolver yields the geolocated visit of a client address.
// *geo.Resolver implements it.
type Resolver interface {
	Visit(ip net.IP, uri string) (geo.Visit, error)
}

// Server binds a rule service and an optional geolocation resolver to
// the HTTP routes. A nil resolver keeps the guard endpoint up but
// answers every visitor with a pass and an x-maxmind-error marker.
type Server struct {
	svc      *state.Service
	resolver Resolver
}

// New builds the echo instance with every route registered.
func New(svc *state.Service, resolver Resolver, opts Options) *echo.Echo {
	s := &Server{svc: svc, resolver: resolver}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ipExtractor(opts.IPSource)
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"remote_ip", v.RemoteIP,
				"latency", v.Latency,
			)
			return nil
		},
	}))

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "# Traefik Guard API, v1")
	})
	e.GET("/openapi.json", s.handleOpenAPI)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/nsg/:nsg/rules", s.handleRulesList)
	e.POST("/nsg/:nsg/rules", s.handleRulesCreate)
	e.PUT("/nsg/:nsg/rules", s.handleRulesUpdate)
	e.DELETE("/nsg/:nsg/rules", s.handleRulesDelete)
	e.GET("/guard/:nsg", s.handleGuard)

	up.Set(1)
	return e
}

func ipExtractor(source string) echo.IPExtractor {
	switch source {
	case "x-real-ip":
		return echo.ExtractIPFromRealIPHeader()
	case "rightmost-x-forwarded-for":
		return echo.ExtractIPFromXFFHeader()
	case "rightmost-forwarded":
		return forwardedIPExtractor()
	case "cf-connecting-ip":
		return headerIPExtractor("CF-Connecting-IP")
	case "true-client-ip":
		return headerIPExtractor("True-Client-IP")
	case "fly-client-ip":
		return headerIPExtractor("Fly-Client-IP")
	default:
		return echo.ExtractIPDirect()
	}
}

// headerIPExtractor trusts a single-address header set by the edge
// proxy, with the connecting address as fallback.
func headerIPExtractor(header string) echo.IPExtractor {
	direct := echo.ExtractIPDirect()
	return func(req *http.Request) string {
		if ip := net.ParseIP(strings.TrimSpace(req.Header.Get(header))); ip != nil {
			return ip.String()
		}
		return direct(req)
	}
}

// forwardedIPExtractor reads the rightmost for= element of the RFC
// 7239 Forwarded header.
func forwardedIPExtractor() echo.IPExtractor {
	direct := echo.ExtractIPDirect()
	return func(req *http.Request) string {
		elements := strings.Split(req.Header.Get("Forwarded"), ",")
		for i := len(elements) - 1; i >= 0; i-- {
			for _, pair := range strings.Split(elements[i], ";") {
				k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
				if !ok || !strings.EqualFold(k, "for") {
					continue
				}
				v = strings.Trim(v, `"`)
				// the node may carry a port, "198.51.100.1:4711"
				if host, _, err := net.SplitHostPort(v); err == nil {
					v = host
				}
				if ip := net.ParseIP(strings.Trim(v, "[]")); ip != nil {
					return ip.String()
				}
			}
		}
		return direct(req)
	}
}
