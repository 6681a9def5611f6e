// Package tags implements the tag filter used to scope rule listing
// and bulk mutation to a subset of a security group.
package tags

import "strings"

// Filter holds an including and an excluding tag set. The zero-ish
// filter produced by New matches every rule.
type Filter struct {
	including map[string]struct{}
	excluding map[string]struct{}
}

func New() Filter {
	return Filter{
		including: make(map[string]struct{}),
		excluding: make(map[string]struct{}),
	}
}

// FromQuery builds a filter from a comma-separated query string.
// Tokens prefixed with "-" go to the excluding set, all others to the
// including set. An empty query yields the match-all filter.
func FromQuery(input string) Filter {
	f := New()
	for _, tag := range strings.Split(input, ",") {
		if strings.HasPrefix(tag, "-") {
			if tag = tag[1:]; tag != "" {
				f.excluding[tag] = struct{}{}
			}
		} else if tag != "" {
			f.including[tag] = struct{}{}
		}
	}
	return f
}

// Matches reports whether a rule with the given tags passes the
// filter. Any excluded tag rejects the rule; with a non-empty
// including set at least one tag must be present.
func (f Filter) Matches(tags []string) bool {
	if len(f.including) == 0 && len(f.excluding) == 0 {
		return true
	}
	for _, tag := range tags {
		if _, ok := f.excluding[tag]; ok {
			return false
		}
	}
	if len(f.including) == 0 {
		return true
	}
	for _, tag := range tags {
		if _, ok := f.including[tag]; ok {
			return true
		}
	}
	return false
}

// Empty reports whether the filter constrains anything at all.
func (f Filter) Empty() bool {
	return len(f.including) == 0 && len(f.excluding) == 0
}

func (f Filter) String() string {
	var out []string
	for tag := range f.including {
		out = append(out, tag)
	}
	for tag := range f.excluding {
		out = append(out, "-"+tag)
	}
	return strings.Join(out, ",")
}
