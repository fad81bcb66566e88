package workflow

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pesio-ai/be-doc-approvals/internal/apperrors"
)

// RuleSet is an ordered collection of rules evaluated by priority.
// Mutation goes through Add/Remove only; evaluation works on a snapshot so
// an in-flight evaluation never observes a partial update.
type RuleSet struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewRuleSet builds a rule set from pre-validated rules. Invalid rules are
// rejected.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	s := &RuleSet{}
	for _, r := range rules {
		if _, err := s.Add(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add validates and appends a rule, normalizing the condition's case and
// assigning an ID when absent. The rule as stored is returned so callers
// see the generated ID without re-reading the set.
func (s *RuleSet) Add(rule Rule) (Rule, error) {
	cond, err := ParseCondition(string(rule.Condition))
	if err != nil {
		return Rule{}, err
	}
	rule.Condition = cond

	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rules {
		if existing.ID == rule.ID {
			return Rule{}, apperrors.Newf(apperrors.CodeValidation, "rule %s already exists", rule.ID)
		}
	}
	s.rules = append(s.rules, rule)
	return rule, nil
}

// Remove deletes a rule by ID, reporting whether it existed.
func (s *RuleSet) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns a copy of the current rules in insertion order.
func (s *RuleSet) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// Evaluate runs all rules against the context in priority order (stable on
// ties) and returns the deduplicated ordered action list. Two rules
// triggering the same action yield it once, so step insertion stays
// idempotent. A rule that fails to evaluate only disables itself; the
// failure is collected as a warning and remaining rules still run.
func (s *RuleSet) Evaluate(docCtx Context) ([]Action, []Warning) {
	rules := s.Rules()
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	var (
		actions  []Action
		warnings []Warning
		seen     = make(map[Action]struct{})
	)
	for _, rule := range rules {
		matched, err := rule.Evaluate(docCtx)
		if err != nil {
			warnings = append(warnings, Warning{
				Rule:    rule.Name,
				Action:  rule.Action,
				Message: err.Error(),
			})
			continue
		}
		if !matched {
			continue
		}
		if _, dup := seen[rule.Action]; dup {
			continue
		}
		seen[rule.Action] = struct{}{}
		actions = append(actions, rule.Action)
	}
	return actions, warnings
}
