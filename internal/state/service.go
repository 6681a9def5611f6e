// Package state keeps the named security groups behind a single
// service value: directory load and save, the CRUD operations the CLI
// and the HTTP API share, and reaction lookup.
package state

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wcrbrm/traefik-guard/internal/engine"
	"github.com/wcrbrm/traefik-guard/internal/rule"
	"github.com/wcrbrm/traefik-guard/internal/tags"
)

// ErrNotFound reports an operation addressing a group or a rule that
// does not exist.
var ErrNotFound = errors.New("not found")

const rulesSuffix = ".rules.txt"

// Service owns every security group by name. All operations take the
// one mutex for their whole duration, mutations persist synchronously
// before the lock is released.
type Service struct {
	mu     sync.Mutex
	root   string
	groups map[string]*engine.Group
}

// New returns a service with an empty "default" group. Rules mutated
// through it are saved under root; an empty root disables persistence.
func New(root string) *Service {
	return &Service{
		root: root,
		groups: map[string]*engine.Group{
			"default": engine.NewGroup("default"),
		},
	}
}

// FromPath loads every "<name>.rules.txt" file under root into a group
// of that name. Unreadable files and unparsable lines are logged and
// skipped, loading never fails on bad content.
func FromPath(root string) (*Service, error) {
	s := New(root)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading rules dir %s: %w", root, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), rulesSuffix) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), rulesSuffix)
		g := engine.NewGroup(name)
		if err := loadGroupFile(g, filepath.Join(root, entry.Name())); err != nil {
			slog.Warn("skipping rules file", "file", entry.Name(), "error", err)
			continue
		}
		s.groups[name] = g
	}
	return s, nil
}

func loadGroupFile(g *engine.Group, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := rule.Parse(line)
		if err != nil {
			slog.Warn("skipping rule", "group", g.Name, "line", line, "error", err)
			continue
		}
		g.Add(r)
	}
	return scanner.Err()
}

// save rewrites the group file from the current rule set. Caller holds
// the mutex. Failures are logged, the in-memory state stays as is.
func (s *Service) save(name string) {
	if s.root == "" {
		return
	}
	g, ok := s.groups[name]
	if !ok {
		return
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		slog.Error("saving rules", "group", name, "error", err)
		return
	}
	var b strings.Builder
	for _, r := range g.Rules() {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	path := filepath.Join(s.root, name+rulesSuffix)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		slog.Error("saving rules", "group", name, "error", err)
	}
}

// CreateRule parses input line by line and adds every rule to the
// named group, creating the group on first use. It stops at the first
// malformed line but keeps the rules added before it, and reports the
// combined index of the last rule added.
func (s *Service) CreateRule(nsg string, input string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[nsg]
	if !ok {
		g = engine.NewGroup(nsg)
		s.groups[nsg] = g
	}

	last := -1
	var parseErr error
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r, err := rule.Parse(line)
		if err != nil {
			parseErr = err
			break
		}
		last = g.Add(r)
	}
	s.save(nsg)
	return last, parseErr
}

// ListRules returns the serialized rules of a group, newline-joined,
// narrowed by the tag filter. An unknown group yields an empty string.
func (s *Service) ListRules(nsg string, filter tags.Filter) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[nsg]
	if !ok {
		return ""
	}
	var lines []string
	for _, r := range g.Rules() {
		if !filter.Matches(r.Tags) {
			continue
		}
		lines = append(lines, r.String())
	}
	return strings.Join(lines, "\n")
}

// UpdateRule replaces the rules a ref addresses with the single rule
// parsed from input. Addressing by index replaces one rule, by tag it
// collapses every tagged rule into the replacement; updating all rules
// at once is rejected.
func (s *Service) UpdateRule(nsg string, ref RuleRef, input string) error {
	r, err := rule.Parse(strings.TrimSpace(input))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[nsg]
	if !ok {
		return fmt.Errorf("group %q: %w", nsg, ErrNotFound)
	}

	switch ref.Kind {
	case RefAll:
		return errors.New("update requires an index or a tag reference")
	case RefIndex:
		if _, ok := g.Rule(ref.Index); !ok {
			return fmt.Errorf("rule %d: %w", ref.Index, ErrNotFound)
		}
		g.Set(ref.Index, r)
	case RefTag:
		indices := taggedIndices(g, ref.Tag)
		if len(indices) == 0 {
			return nil
		}
		g.SetMany(indices, r)
	}
	s.save(nsg)
	return nil
}

// DeleteRule removes the rules a ref addresses. Deleting from an
// unknown group is a no-op, an out-of-range index is an error, the
// all ref resets the group.
func (s *Service) DeleteRule(nsg string, ref RuleRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[nsg]
	if !ok {
		return nil
	}

	switch ref.Kind {
	case RefAll:
		g.Reset()
	case RefIndex:
		if _, ok := g.Rule(ref.Index); !ok {
			return fmt.Errorf("rule %d: %w", ref.Index, ErrNotFound)
		}
		g.Remove(ref.Index)
	case RefTag:
		indices := taggedIndices(g, ref.Tag)
		if len(indices) == 0 {
			return nil
		}
		g.RemoveMany(indices)
	}
	s.save(nsg)
	return nil
}

// React resolves the reaction of the named group for a visitor.
// Unknown groups and unmatched visitors pass with HTTP 200.
func (s *Service) React(nsg string, v rule.Visitor) rule.Reaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[nsg]
	if !ok {
		return rule.HTTPStatus(200)
	}
	re, ok := g.React(v)
	if !ok {
		return rule.HTTPStatus(200)
	}
	return re
}

// Count reports the number of rules in a group, zero when unknown.
func (s *Service) Count(nsg string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[nsg]
	if !ok {
		return 0
	}
	return g.Count()
}

// taggedIndices resolves a tag expression ("blacklist", "blacklist,-temp")
// to combined indices. An empty expression matches every rule.
func taggedIndices(g *engine.Group, expr string) []int {
	filter := tags.FromQuery(expr)
	var indices []int
	for i, r := range g.Rules() {
		if filter.Matches(r.Tags) {
			indices = append(indices, i)
		}
	}
	return indices
}
