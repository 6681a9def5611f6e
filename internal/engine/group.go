// Package engine owns the per-group rule store. Rules whose shape
// allows an exact-match key (trivial on one axis, constrained on the
// other) go into an O(1) lookup map; everything else lands on a
// sequential scan list evaluated in insertion order.
package engine

import (
	"strings"

	"github.com/wcrbrm/traefik-guard/internal/rule"
)

// Group is one named security group. A combined index addresses the
// indexed rules first (0..len(indexed)), then the non-indexed ones.
type Group struct {
	Name string

	index      map[string]rule.Reaction
	indexed    []rule.Rule
	nonIndexed []rule.Rule
}

func NewGroup(name string) *Group {
	return &Group{
		Name:  name,
		index: make(map[string]rule.Reaction),
	}
}

// isAccessTrivial reports whether the access list is exactly the
// wildcard default, leaving the target list as the real constraint.
func isAccessTrivial(r rule.Rule) bool {
	return len(r.Access) == 1 && !r.Access[0].Excluding && r.Access[0].Source.Kind == rule.SourceAny
}

// isTargetTrivial reports whether the target list is exactly the
// wildcard default, leaving the access list as the real constraint.
func isTargetTrivial(r rule.Rule) bool {
	return len(r.Target) == 1 && r.Target[0].Kind == rule.TargetAny
}

// indexKeys derives the exact-match lookup keys of a rule. Rules
// constrained on both axes (or on neither) yield no keys and stay on
// the scan list.
func indexKeys(r rule.Rule) []string {
	if isAccessTrivial(r) {
		var keys []string
		for _, t := range r.Target {
			if t.Kind != rule.TargetPath {
				continue
			}
			keys = append(keys, t.Path)
			if !strings.HasSuffix(t.Path, "/") {
				keys = append(keys, t.Path+"/")
			}
		}
		return keys
	}
	if isTargetTrivial(r) {
		// Excluding entries key the same way as plain ones: a pure
		// block rule like "401|-JP" only ever fires through the
		// index, a linear scan skips it.
		var keys []string
		for _, a := range r.Access {
			switch a.Source.Kind {
			case rule.SourceIPv4:
				keys = append(keys, a.Source.IP.String())
			case rule.SourceCountry:
				keys = append(keys, a.Source.Country)
			}
		}
		return keys
	}
	return nil
}

// Add appends the rule to the group and returns its combined index.
// An indexable rule registers every key in the lookup map; a later
// rule sharing a key silently shadows the earlier reaction.
func (g *Group) Add(r rule.Rule) int {
	keys := indexKeys(r)
	if len(keys) > 0 {
		for _, k := range keys {
			g.index[k] = r.Reaction
		}
		g.indexed = append(g.indexed, r)
		return len(g.indexed) - 1
	}
	g.nonIndexed = append(g.nonIndexed, r)
	return len(g.indexed) + len(g.nonIndexed) - 1
}

func (g *Group) Count() int {
	return len(g.indexed) + len(g.nonIndexed)
}

// Reset drops every rule and lookup key.
func (g *Group) Reset() {
	g.index = make(map[string]rule.Reaction)
	g.indexed = nil
	g.nonIndexed = nil
}

// Rules returns a copy of all rules in combined-index order.
func (g *Group) Rules() []rule.Rule {
	out := make([]rule.Rule, 0, g.Count())
	out = append(out, g.indexed...)
	out = append(out, g.nonIndexed...)
	return out
}

// Rule returns the rule at the combined index.
func (g *Group) Rule(i int) (rule.Rule, bool) {
	if i < 0 || i >= g.Count() {
		return rule.Rule{}, false
	}
	if i < len(g.indexed) {
		return g.indexed[i], true
	}
	return g.nonIndexed[i-len(g.indexed)], true
}

// Remove deletes the rule at the combined index. For an indexed rule
// its keys are recomputed and dropped from the lookup map.
func (g *Group) Remove(i int) {
	if i < 0 || i >= g.Count() {
		return
	}
	if i < len(g.indexed) {
		g.dropKeys(g.indexed[i])
		g.indexed = append(g.indexed[:i], g.indexed[i+1:]...)
		return
	}
	j := i - len(g.indexed)
	g.nonIndexed = append(g.nonIndexed[:j], g.nonIndexed[j+1:]...)
}

// Set replaces the rule at the combined index. The replacement is
// re-partitioned, so a rule changing shape moves between the indexed
// and non-indexed containers.
func (g *Group) Set(i int, r rule.Rule) {
	if i < 0 || i >= g.Count() {
		return
	}
	g.Remove(i)
	g.Add(r)
}

// RemoveMany deletes the rules at all given combined indices in one
// pass. Out-of-range indices are ignored.
func (g *Group) RemoveMany(indices []int) {
	removedIndexed := make(map[int]bool)
	removedScan := make(map[int]bool)
	for _, i := range indices {
		if i < 0 || i >= g.Count() {
			continue
		}
		if i < len(g.indexed) {
			removedIndexed[i] = true
		} else {
			removedScan[i-len(g.indexed)] = true
		}
	}
	for i := range removedIndexed {
		g.dropKeys(g.indexed[i])
	}

	indexed := g.indexed[:0]
	for i, r := range g.indexed {
		if !removedIndexed[i] {
			indexed = append(indexed, r)
		}
	}
	g.indexed = indexed

	nonIndexed := g.nonIndexed[:0]
	for j, r := range g.nonIndexed {
		if !removedScan[j] {
			nonIndexed = append(nonIndexed, r)
		}
	}
	g.nonIndexed = nonIndexed
}

// SetMany collapses the rules at all given combined indices into one
// replacement rule, appended through Add.
func (g *Group) SetMany(indices []int, r rule.Rule) {
	g.RemoveMany(indices)
	g.Add(r)
}

// React evaluates the group against a visitor. The lookup map is
// probed first with the visitor IP, country, URI with a trailing
// slash, and the URI as given; on a miss the scan list is evaluated
// in insertion order.
func (g *Group) React(v rule.Visitor) (rule.Reaction, bool) {
	keys := make([]string, 0, 4)
	if ip := v.IP(); ip != nil {
		keys = append(keys, ip.String())
	}
	if country := v.Country(); country != "" {
		keys = append(keys, country)
	}
	uri := v.URI()
	if !strings.HasSuffix(uri, "/") {
		keys = append(keys, uri+"/")
	}
	keys = append(keys, uri)

	for _, k := range keys {
		if reaction, ok := g.index[k]; ok {
			return reaction, true
		}
	}
	for _, r := range g.nonIndexed {
		if reaction, ok := r.React(v); ok {
			return reaction, true
		}
	}
	return rule.Reaction{}, false
}

func (g *Group) dropKeys(r rule.Rule) {
	for _, k := range indexKeys(r) {
		delete(g.index, k)
	}
}
