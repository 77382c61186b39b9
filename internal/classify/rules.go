package classify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/relaydev/relay/internal/registry"
	"github.com/relaydev/relay/pkg/models"
)

// Sentinel errors for rule table operations.
var (
	ErrNoRules            = errors.New("rule table requires at least one rule")
	ErrNoFallbackAgent    = errors.New("rule table requires a fallback agent")
	ErrRuleTargetUnknown  = errors.New("rule targets an unregistered agent")
	ErrRuleMissingPattern = errors.New("rule requires at least one pattern")
)

// Rule is one entry of the ordered classification rule table: a pattern
// set, the category it evidences, and the agent that serves it.
type Rule struct {
	// Patterns is the keyword evidence for this rule. A rule matches when
	// any pattern appears in the request text (case-insensitive).
	Patterns []string `yaml:"patterns"`
	// Category is the task category this rule produces.
	Category string `yaml:"category"`
	// Agent is the registered agent that serves the category.
	Agent string `yaml:"agent"`
}

// matches returns how many of the rule's patterns occur in the lowercased
// text, along with the byte offset of the earliest occurrence. A count of
// zero means no match.
func (r *Rule) matches(lower string) (count, earliest int) {
	earliest = -1
	for _, p := range r.Patterns {
		idx := strings.Index(lower, strings.ToLower(p))
		if idx < 0 {
			continue
		}
		count++
		if earliest < 0 || idx < earliest {
			earliest = idx
		}
	}
	return count, earliest
}

// RuleTable is the deterministic Classifier implementation: rules are
// evaluated top to bottom and the first matching rule wins for its
// category. Ties are broken strictly by declaration order, never by
// confidence magnitude. A request may match rules for several independent
// categories; every such match is returned.
type RuleTable struct {
	rules    []Rule
	fallback string
}

// NewRuleTable builds a rule table with the given fallback agent for
// ambiguous requests.
func NewRuleTable(rules []Rule, fallbackAgent string) (*RuleTable, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	if fallbackAgent == "" {
		return nil, ErrNoFallbackAgent
	}
	for i, r := range rules {
		if len(r.Patterns) == 0 {
			return nil, fmt.Errorf("%w: rule %d (%s)", ErrRuleMissingPattern, i, r.Category)
		}
	}
	return &RuleTable{rules: rules, fallback: fallbackAgent}, nil
}

// ruleFile is the YAML shape of a rule table configuration file.
type ruleFile struct {
	FallbackAgent string `yaml:"fallback_agent"`
	Rules         []Rule `yaml:"rules"`
}

// LoadRuleFile reads an ordered rule table from a YAML file. The table's
// content is opaque configuration to the engine, not logic it owns.
func LoadRuleFile(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	return NewRuleTable(file.Rules, file.FallbackAgent)
}

// Fallback returns the fallback agent ID for ambiguous requests.
func (t *RuleTable) Fallback() string {
	return t.fallback
}

// WithFallback returns a copy of the table routing ambiguous requests to
// a different fallback agent. Used when configuration overrides the rule
// file's fallback.
func (t *RuleTable) WithFallback(agentID string) *RuleTable {
	return &RuleTable{rules: t.rules, fallback: agentID}
}

// Match holds a category match and where its evidence first appears in
// the request text. The position orders sequential plans.
type Match struct {
	// Candidate is the ranked classification outcome.
	Candidate models.RankedCandidate
	// Position is the byte offset of the earliest matching pattern.
	Position int
}

// Classify implements the Classifier interface.
func (t *RuleTable) Classify(req *models.Request, reg *registry.Registry) ([]models.RankedCandidate, error) {
	matches, err := t.Evaluate(req, reg)
	if err != nil {
		return nil, err
	}
	out := make([]models.RankedCandidate, len(matches))
	for i, m := range matches {
		out[i] = m.Candidate
	}
	return out, nil
}

// Evaluate runs the rule table and returns matches with their text
// positions. The first matching rule wins for its category; later rules
// for an already-matched category are skipped regardless of how many
// patterns they hit. With no match at all, a single ambiguous candidate
// routed to the fallback agent is returned.
func (t *RuleTable) Evaluate(req *models.Request, reg *registry.Registry) ([]Match, error) {
	lower := strings.ToLower(req.OriginalText)

	var matches []Match
	seen := make(map[string]bool)

	for _, rule := range t.rules {
		if seen[rule.Category] {
			continue
		}
		count, earliest := rule.matches(lower)
		if count == 0 {
			continue
		}
		if !reg.Has(rule.Agent) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrRuleTargetUnknown, rule.Category, rule.Agent)
		}
		seen[rule.Category] = true
		matches = append(matches, Match{
			Candidate: models.RankedCandidate{
				Category:   rule.Category,
				AgentID:    rule.Agent,
				Confidence: float64(count) / float64(len(rule.Patterns)),
			},
			Position: earliest,
		})
	}

	if len(matches) == 0 {
		if !reg.Has(t.fallback) {
			return nil, fmt.Errorf("%w: fallback %s", ErrRuleTargetUnknown, t.fallback)
		}
		matches = append(matches, Match{
			Candidate: models.RankedCandidate{
				Category:   models.CategoryAmbiguous,
				AgentID:    t.fallback,
				Confidence: 0,
			},
		})
	}

	return matches, nil
}
