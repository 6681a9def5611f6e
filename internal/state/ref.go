package state

import (
	"fmt"
	"strconv"
)

// RefKind selects how a RuleRef addresses rules inside a group.
type RefKind int

const (
	// RefAll addresses every rule of the group.
	RefAll RefKind = iota
	// RefIndex addresses one rule by its combined index.
	RefIndex
	// RefTag addresses every rule carrying a tag.
	RefTag
)

// RuleRef addresses rules for update and delete operations.
type RuleRef struct {
	Kind  RefKind
	Index int
	Tag   string
}

// All addresses every rule of a group.
func All() RuleRef { return RuleRef{Kind: RefAll} }

// ByIndex addresses the rule at a combined index.
func ByIndex(i int) RuleRef { return RuleRef{Kind: RefIndex, Index: i} }

// ByTag addresses the rules matching a tag expression, e.g.
// "blacklist" or "blacklist,-temp". An empty expression matches
// every rule.
func ByTag(tag string) RuleRef { return RuleRef{Kind: RefTag, Tag: tag} }

// ParseRef reads a ref from its CLI form: "all", "index N" or "tag T".
func ParseRef(kind, value string) (RuleRef, error) {
	switch kind {
	case "all":
		return All(), nil
	case "index":
		i, err := strconv.Atoi(value)
		if err != nil {
			return RuleRef{}, fmt.Errorf("invalid rule index %q", value)
		}
		return ByIndex(i), nil
	case "tag":
		return ByTag(value), nil
	default:
		return RuleRef{}, fmt.Errorf("unknown rule reference %q, want index, tag or all", kind)
	}
}

func (r RuleRef) String() string {
	switch r.Kind {
	case RefIndex:
		return "index " + strconv.Itoa(r.Index)
	case RefTag:
		return "tag " + r.Tag
	default:
		return "all"
	}
}
