package rule

import "strings"

type TargetKind int

const (
	TargetAny TargetKind = iota
	TargetPath
	TargetPathPrefix
)

// Target is one URI condition of a rule: an exact path, a path prefix,
// or the wildcard matching any URI.
type Target struct {
	Kind TargetKind
	Path string
}

// ParseTarget classifies a single token. Tokens starting with "/" are
// exact paths, tokens starting with "^" are prefixes (the prefix text
// follows the caret), anything else is the wildcard.
func ParseTarget(input string) Target {
	switch {
	case strings.HasPrefix(input, "/"):
		return Target{Kind: TargetPath, Path: input}
	case strings.HasPrefix(input, "^"):
		return Target{Kind: TargetPathPrefix, Path: input[1:]}
	default:
		return Target{Kind: TargetAny}
	}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetPath:
		return t.Path
	case TargetPathPrefix:
		return "^" + t.Path
	default:
		return ""
	}
}

// Matches reports whether the visitor URI satisfies this target. An
// exact path also matches the same path with one trailing slash added.
func (t Target) Matches(uri string) bool {
	switch t.Kind {
	case TargetPath:
		return uri == t.Path || uri == t.Path+"/"
	case TargetPathPrefix:
		return strings.HasPrefix(uri, t.Path)
	}
	return true
}
