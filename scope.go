package conduit

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// MatchOperation matches a rule against the model name of the operation type
	MatchOperation = "operation"
	// MatchPath matches a rule against the URL path of the request
	MatchPath = "path"
)

var (
	// ErrInvalidRule is returned when a scope rule has an unknown match type or an invalid pattern
	ErrInvalidRule = errors.New("invalid scope rule")

	// ErrRuleExists is returned when adding a rule that is already in the list
	ErrRuleExists = errors.New("rule already exists")

	// ErrRuleNotFound is returned when removing a rule that is not in the list
	ErrRuleNotFound = errors.New("rule not found")
)

// Rule is a single scope rule: a compiled pattern and what it is matched against.
type Rule struct {
	Pattern   *regexp.Regexp // Compiled regular expression pattern
	MatchType string         // MatchOperation or MatchPath
}

// Scope decides which dispatches are written to the journal.
// Exclude rules win over include rules; a dispatch matching neither gets DefaultAllow.
// A nil Scope allows everything.
type Scope struct {
	IncludeRules map[string]Rule // Key format: "pattern|matchType"
	ExcludeRules map[string]Rule // Key format: "pattern|matchType"
	DefaultAllow bool
}

// NewScope creates a Scope without rules.
func NewScope(defaultAllow bool) *Scope {
	return &Scope{
		IncludeRules: make(map[string]Rule),
		ExcludeRules: make(map[string]Rule),
		DefaultAllow: defaultAllow,
	}
}

// ParseScope builds a Scope from rules written as "matchType:pattern".
// A leading "-" makes an exclude rule, for example "-path:^/metrics$".
// Dispatches matching no rule are allowed unless include rules are given.
func ParseScope(rules []string) (*Scope, error) {
	scope := NewScope(true)
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		exclude := strings.HasPrefix(rule, "-")
		matchType, pattern, ok := strings.Cut(strings.TrimPrefix(rule, "-"), ":")
		if !ok {
			return nil, fmt.Errorf("parsing %q : %w", rule, ErrInvalidRule)
		}
		if err := scope.AddRule(pattern, matchType, exclude); err != nil {
			return nil, err
		}
		if !exclude {
			scope.DefaultAllow = false
		}
	}
	return scope, nil
}

// AddRule adds a rule to the include or exclude list.
func (s *Scope) AddRule(pattern, matchType string, exclude bool) error {
	matchType = strings.ToLower(matchType)
	if matchType != MatchOperation && matchType != MatchPath {
		return fmt.Errorf("match type %q : %w", matchType, ErrInvalidRule)
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("pattern %q : %w: %w", pattern, ErrInvalidRule, err)
	}
	key := ruleKey(compiled.String(), matchType)

	rules := s.IncludeRules
	if exclude {
		rules = s.ExcludeRules
	}
	if _, exists := rules[key]; exists {
		return fmt.Errorf("%s : %w", key, ErrRuleExists)
	}
	rules[key] = Rule{Pattern: compiled, MatchType: matchType}
	return nil
}

// RemoveRule removes a rule from the include or exclude list.
func (s *Scope) RemoveRule(pattern, matchType string, exclude bool) error {
	key := ruleKey(pattern, strings.ToLower(matchType))

	rules := s.IncludeRules
	if exclude {
		rules = s.ExcludeRules
	}
	if _, exists := rules[key]; !exists {
		return fmt.Errorf("%s : %w", key, ErrRuleNotFound)
	}
	delete(rules, key)
	return nil
}

// ClearRules removes every include and exclude rule.
func (s *Scope) ClearRules() {
	s.IncludeRules = make(map[string]Rule)
	s.ExcludeRules = make(map[string]Rule)
}

// Matches reports whether a dispatch of operation for a request to path is in scope.
func (s *Scope) Matches(operation, path string) bool {
	if s == nil {
		return true
	}

	target := func(rule Rule) string {
		if rule.MatchType == MatchOperation {
			return operation
		}
		return path
	}

	for _, rule := range s.ExcludeRules {
		if rule.Pattern.MatchString(target(rule)) {
			return false
		}
	}
	for _, rule := range s.IncludeRules {
		if rule.Pattern.MatchString(target(rule)) {
			return true
		}
	}
	return s.DefaultAllow
}

func ruleKey(pattern, matchType string) string {
	return pattern + "|" + matchType
}
