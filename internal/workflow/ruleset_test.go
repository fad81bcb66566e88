package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleSetEvaluateDeduplicatesActions(t *testing.T) {
	// Two distinct rules both firing add_legal_review must yield it once.
	set, err := NewRuleSet(
		Rule{Name: "High Value", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 1_000_000, Action: "add_legal_review", Priority: 1},
		Rule{Name: "NDA", Condition: ConditionEquals, Field: "contract_type", Threshold: "NDA", Action: "add_legal_review", Priority: 2},
	)
	require.NoError(t, err)

	actions, warnings := set.Evaluate(Context{
		"contract_value": 2_000_000,
		"contract_type":  "NDA",
	})
	assert.Empty(t, warnings)
	assert.Equal(t, []Action{"add_legal_review"}, actions)
}

func TestRuleSetEvaluatePriorityOrder(t *testing.T) {
	set, err := NewRuleSet(
		Rule{Name: "Exec", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 5_000_000, Action: "add_executive_approval", Priority: 3},
		Rule{Name: "Legal", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 1_000_000, Action: "add_legal_review", Priority: 1},
		Rule{Name: "Finance", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 100_000, Action: "add_finance_approval", Priority: 2},
	)
	require.NoError(t, err)

	actions, warnings := set.Evaluate(Context{"contract_value": 6_000_000})
	assert.Empty(t, warnings)
	assert.Equal(t, []Action{"add_legal_review", "add_finance_approval", "add_executive_approval"}, actions)
}

func TestRuleSetEvaluateBadRuleOnlyDisablesItself(t *testing.T) {
	set := &RuleSet{}
	_, err := set.Add(
		Rule{Name: "Good", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 100, Action: "add_finance_approval", Priority: 1},
	)
	require.NoError(t, err)
	// Bypass Add validation to simulate a rule corrupted after persistence.
	set.rules = append(set.rules, Rule{
		ID: "bad", Name: "Bad", Condition: ConditionGreaterThan,
		Field: "contract_value", Threshold: "not a number", Action: "add_legal_review", Priority: 2,
	})

	actions, warnings := set.Evaluate(Context{"contract_value": 500})
	assert.Equal(t, []Action{"add_finance_approval"}, actions)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Bad", warnings[0].Rule)
}

func TestRuleSetAddAssignsIDAndRejectsDuplicates(t *testing.T) {
	set := &RuleSet{}
	rule := Rule{Name: "r", Condition: ConditionEquals, Field: "f", Threshold: "v", Action: "add_legal_review"}

	added, err := set.Add(rule)
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, added, set.Rules()[0])

	_, err = set.Add(added)
	require.Error(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestRuleSetAddNormalizesConditionCase(t *testing.T) {
	set := &RuleSet{}
	added, err := set.Add(Rule{
		Name: "High Value", Condition: "GREATER_THAN",
		Field: "contract_value", Threshold: 1_000_000, Action: "add_legal_review",
	})
	require.NoError(t, err)
	assert.Equal(t, ConditionGreaterThan, added.Condition)

	// The normalized rule evaluates cleanly and fires.
	actions, warnings := set.Evaluate(Context{"contract_value": 2_000_000})
	assert.Empty(t, warnings)
	assert.Equal(t, []Action{"add_legal_review"}, actions)
}

func TestRuleSetRemove(t *testing.T) {
	set := &RuleSet{}
	_, err := set.Add(Rule{ID: "r1", Name: "r", Condition: ConditionEquals, Field: "f", Threshold: "v", Action: "add_legal_review"})
	require.NoError(t, err)

	assert.True(t, set.Remove("r1"))
	assert.False(t, set.Remove("r1"))
	assert.Equal(t, 0, set.Len())
}

func TestRuleSetEvaluateEmpty(t *testing.T) {
	set := &RuleSet{}
	actions, warnings := set.Evaluate(Context{"contract_value": 10_000_000})
	assert.Empty(t, actions)
	assert.Empty(t, warnings)
}
