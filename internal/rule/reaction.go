package rule

import (
	"fmt"
	"strconv"
	"strings"
)

type ReactionKind int

const (
	ReactionHTTPStatus ReactionKind = iota
	ReactionPermanentRedirect
	ReactionTemporaryRedirect
)

// Reaction is the decision a matching rule produces: a plain HTTP
// status, or a permanent/temporary redirect to a location.
type Reaction struct {
	Kind     ReactionKind
	Status   uint16
	Location string
}

func HTTPStatus(code uint16) Reaction {
	return Reaction{Kind: ReactionHTTPStatus, Status: code}
}

func PermanentRedirect(location string) Reaction {
	return Reaction{Kind: ReactionPermanentRedirect, Location: location}
}

func TemporaryRedirect(location string) Reaction {
	return Reaction{Kind: ReactionTemporaryRedirect, Location: location}
}

// Code returns the numeric HTTP status of the reaction.
func (r Reaction) Code() uint16 {
	switch r.Kind {
	case ReactionPermanentRedirect:
		return 301
	case ReactionTemporaryRedirect:
		return 302
	default:
		return r.Status
	}
}

// Redirect returns the redirect location and whether the reaction is a
// redirect at all.
func (r Reaction) Redirect() (string, bool) {
	if r.Kind == ReactionPermanentRedirect || r.Kind == ReactionTemporaryRedirect {
		return r.Location, true
	}
	return "", false
}

func (r Reaction) String() string {
	if loc, ok := r.Redirect(); ok {
		return fmt.Sprintf("%d %s", r.Code(), loc)
	}
	return strconv.Itoa(int(r.Code()))
}

// extractReaction splits the reaction prefix and suffix off a rule line
// already stripped of tags. It returns the remaining access/target text.
//
// One segment means HTTP 200, two segments carry an explicit status
// code, three segments describe a redirect (301 or 302 only). Anything
// beyond three segments is malformed.
func extractReaction(input string) (string, Reaction, error) {
	parts := strings.Split(input, "|")
	switch len(parts) {
	case 1:
		return parts[0], HTTPStatus(200), nil
	case 2:
		status, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			return "", Reaction{}, fmt.Errorf("%w: invalid HTTP status %q", ErrSyntax, parts[0])
		}
		return parts[1], HTTPStatus(uint16(status)), nil
	case 3:
		switch parts[0] {
		case "301":
			return parts[1], PermanentRedirect(parts[2]), nil
		case "302":
			return parts[1], TemporaryRedirect(parts[2]), nil
		default:
			return "", Reaction{}, fmt.Errorf("%w: redirect HTTP status expected 301 or 302, got %q", ErrSyntax, parts[0])
		}
	default:
		return "", Reaction{}, fmt.Errorf("%w: too many '|' separators", ErrSyntax)
	}
}
