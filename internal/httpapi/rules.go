package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wcrbrm/traefik-guard/internal/rule"
	"github.com/wcrbrm/traefik-guard/internal/state"
	"github.com/wcrbrm/traefik-guard/internal/tags"
)

type httpError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, rule.ErrSyntax):
		return c.JSON(http.StatusBadRequest, httpError{Error: "Bad Request", Message: err.Error()})
	case errors.Is(err, state.ErrNotFound):
		return c.JSON(http.StatusNotFound, httpError{Error: "Not Found", Message: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, httpError{Error: "Server Error", Message: err.Error()})
	}
}

// ruleRef reads the rule reference of an update or delete request:
// ?index=N addresses one rule, otherwise the ?tags= expression is
// used, which with no tags at all addresses the whole group.
func ruleRef(c echo.Context) (state.RuleRef, error) {
	if v := c.QueryParam("index"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return state.RuleRef{}, errors.New("invalid rule index " + strconv.Quote(v))
		}
		return state.ByIndex(i), nil
	}
	return state.ByTag(c.QueryParam("tags")), nil
}

func (s *Server) handleRulesList(c echo.Context) error {
	nsg := c.Param("nsg")
	out := s.svc.ListRules(nsg, tags.FromQuery(c.QueryParam("tags")))
	if out == "" {
		return c.String(http.StatusOK, "*\n")
	}
	return c.String(http.StatusOK, out+"\n")
}

func (s *Server) handleRulesCreate(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errorResponse(c, err)
	}
	idx, err := s.svc.CreateRule(c.Param("nsg"), string(body))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.String(http.StatusOK, strconv.Itoa(idx))
}

func (s *Server) handleRulesUpdate(c echo.Context) error {
	ref, err := ruleRef(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: "Bad Request", Message: err.Error()})
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := s.svc.UpdateRule(c.Param("nsg"), ref, string(body)); err != nil {
		return errorResponse(c, err)
	}
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleRulesDelete(c echo.Context) error {
	ref, err := ruleRef(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpError{Error: "Bad Request", Message: err.Error()})
	}
	if err := s.svc.DeleteRule(c.Param("nsg"), ref); err != nil {
		return errorResponse(c, err)
	}
	return c.String(http.StatusOK, "OK")
}
