package rule

import (
	"errors"
	"net"
	"strconv"
	"strings"
)

// ErrSyntax reports malformed rule text. Callers can match it with
// errors.Is to tell a grammar problem from other failures.
var ErrSyntax = errors.New("invalid rule syntax")

// Visitor carries the per-request facts a rule is evaluated against.
// Country and City return empty strings when the geography of the
// visitor could not be resolved.
type Visitor interface {
	Country() string
	City() string
	IP() net.IP
	URI() string
}

// Access is one origin entry of a rule. A plain entry grants the
// rule's reaction when its source matches; an excluding entry revokes
// whatever an earlier entry granted.
type Access struct {
	Excluding bool
	Source    Source
}

// ParseAccess classifies a single token. A leading "-" on a token of
// two or more characters makes it an excluding entry for the rest of
// the token.
func ParseAccess(input string) Access {
	if len(input) > 1 && input[0] == '-' {
		return Access{Excluding: true, Source: ParseSource(input[1:])}
	}
	return Access{Source: ParseSource(input)}
}

func (a Access) String() string {
	if a.Excluding {
		return "-" + a.Source.String()
	}
	return a.Source.String()
}

// Rule is one access-control statement: an ordered access list, an
// ordered target list, one reaction and optional tags. Both lists are
// never empty; parsing substitutes the wildcard defaults.
type Rule struct {
	Access   []Access
	Target   []Target
	Reaction Reaction
	Tags     []string
}

// Parse reads a rule from one line of text.
//
// The line is split at "#" first: everything after the first "#" is a
// comma-separated tag list (text after a second "#" is dropped). The
// remainder carries an optional reaction separated by "|", then a
// comma-separated mix of access and target tokens. Tokens starting
// with "/" or "^" are targets, everything else is an access entry.
//
// Examples:
//
//	200|US,CA,/path/to/resource
//	200|US,CA,/path/to/resource#blacklist,recent
//	301|-GB,^/path/to/resource|/not-found
//	403|-US
func Parse(src string) (Rule, error) {
	var tags []string
	remains := src
	if hash := strings.Split(src, "#"); len(hash) > 1 {
		tags = strings.Split(hash[1], ",")
		remains = hash[0]
	}
	input, reaction, err := extractReaction(remains)
	if err != nil {
		return Rule{}, err
	}
	var access []Access
	var target []Target
	for _, part := range strings.Split(input, ",") {
		if strings.HasPrefix(part, "/") || strings.HasPrefix(part, "^") {
			target = append(target, ParseTarget(part))
		} else {
			access = append(access, ParseAccess(part))
		}
	}
	// empty lists turn it into the allow-all rule
	if len(access) == 0 {
		access = append(access, Access{Source: Source{Kind: SourceAny}})
	}
	if len(target) == 0 {
		target = append(target, Target{Kind: TargetAny})
	}
	return Rule{
		Access:   access,
		Target:   target,
		Reaction: reaction,
		Tags:     tags,
	}, nil
}

// String renders the rule in its canonical text form:
// [code|]access,target[|redirect][#tags]. The status code prefix is
// omitted for 200, and an access list consisting only of wildcard
// entries renders as nothing. Parsing the result yields a rule
// structurally equal to the receiver.
func (r Rule) String() string {
	var out []string
	if r.Reaction.Code() != 200 {
		out = append(out, strconv.Itoa(int(r.Reaction.Code())))
	}
	var parts []string
	if !r.accessAllAny() {
		for _, access := range r.Access {
			if a := access.String(); a != "" {
				parts = append(parts, a)
			}
		}
	}
	for _, target := range r.Target {
		if t := target.String(); t != "" {
			parts = append(parts, t)
		}
	}
	out = append(out, strings.Join(parts, ","))
	if redirect, ok := r.Reaction.Redirect(); ok {
		out = append(out, redirect)
	}
	line := strings.Join(out, "|")
	if len(r.Tags) > 0 {
		line += "#" + strings.Join(r.Tags, ",")
	}
	return line
}

func (r Rule) accessAllAny() bool {
	for _, a := range r.Access {
		if a.Excluding || a.Source.Kind != SourceAny {
			return false
		}
	}
	return true
}

// React evaluates the rule against a visitor. The target list is
// checked first: the first matching target lets the access phase run,
// no match means the rule does not apply. The access list is then swept
// in full, keeping a candidate reaction. A matching plain entry sets
// the candidate, a matching excluding entry clears it, so later entries
// win over earlier ones. An excluding wildcard never fires.
func (r Rule) React(v Visitor) (Reaction, bool) {
	matched := len(r.Target) == 0
	for _, t := range r.Target {
		if t.Matches(v.URI()) {
			matched = true
			break
		}
	}
	if !matched {
		return Reaction{}, false
	}

	granted := false
	for _, a := range r.Access {
		if a.Excluding {
			if a.Source.Kind != SourceAny && a.Source.Matches(v) {
				granted = false
			}
		} else if a.Source.Matches(v) {
			granted = true
		}
	}
	if !granted {
		return Reaction{}, false
	}
	return r.Reaction, true
}
