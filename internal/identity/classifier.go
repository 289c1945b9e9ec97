// Package identity isolates the organizational policy deciding which actor
// identifiers are allowed to initiate a mutation. Every mutating operation in the
// economy consults a Classifier before doing anything else.
package identity

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// DefaultForbiddenPatterns reject any identifier containing one of these
// substrings, case-insensitively. Human names that happen to contain one are
// admitted only through an explicit allow-list (see Allow).
var DefaultForbiddenPatterns = []string{
	`AUTO`,
	`CRON`,
	`AI`,
	`SYSTEM`,
	`BOT`,
	`ALGORITHM`,
}

// Classifier decides whether an actor identifier may initiate a mutation.
type Classifier interface {
	IsForbidden(actorID string) bool
}

type PatternClassifier struct {
	patterns []*regexp2.Regexp
	allowed  map[string]struct{}
}

func NewPatternClassifier(patterns []string) (*PatternClassifier, error) {
	if len(patterns) == 0 {
		patterns = DefaultForbiddenPatterns
	}

	compiled := make([]*regexp2.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("regexp2.Compile(%q) -> %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return &PatternClassifier{patterns: compiled, allowed: map[string]struct{}{}}, nil
}

// Allow exempts exact identifiers, compared case-insensitively, from the
// forbidden patterns. Blank entries are ignored.
func (c *PatternClassifier) Allow(actorIDs ...string) *PatternClassifier {
	for _, id := range actorIDs {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			c.allowed[id] = struct{}{}
		}
	}
	return c
}

// MustDefault returns a classifier over DefaultForbiddenPatterns.
func MustDefault() *PatternClassifier {
	c, err := NewPatternClassifier(DefaultForbiddenPatterns)
	if err != nil {
		panic(err)
	}
	return c
}

// IsForbidden treats a blank identifier as forbidden: an operation without a
// human behind it is never allowed.
func (c *PatternClassifier) IsForbidden(actorID string) bool {
	id := strings.TrimSpace(actorID)
	if id == "" {
		return true
	}
	if _, ok := c.allowed[strings.ToLower(id)]; ok {
		return false
	}

	for _, re := range c.patterns {
		matched, err := re.MatchString(id)
		if err != nil || matched {
			return true
		}
	}

	return false
}
