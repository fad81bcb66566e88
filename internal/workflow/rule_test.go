package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-doc-approvals/internal/apperrors"
)

func TestRuleEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		docCtx  Context
		matched bool
		wantErr bool
	}{
		{
			name:    "greater_than matches",
			rule:    Rule{Name: "high value", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 1_000_000, Action: "add_legal_review"},
			docCtx:  Context{"contract_value": 2_500_000},
			matched: true,
		},
		{
			name:    "greater_than boundary is exclusive",
			rule:    Rule{Name: "high value", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 1_000_000, Action: "add_legal_review"},
			docCtx:  Context{"contract_value": 1_000_000},
			matched: false,
		},
		{
			name:    "greater_than with json decoded float",
			rule:    Rule{Name: "high value", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 1_000_000, Action: "add_legal_review"},
			docCtx:  Context{"contract_value": float64(1_000_001)},
			matched: true,
		},
		{
			name:    "less_than matches",
			rule:    Rule{Name: "small", Condition: ConditionLessThan, Field: "contract_value", Threshold: 10_000, Action: "add_finance_approval"},
			docCtx:  Context{"contract_value": 500},
			matched: true,
		},
		{
			name:    "equals string",
			rule:    Rule{Name: "nda", Condition: ConditionEquals, Field: "contract_type", Threshold: "NDA", Action: "add_legal_review"},
			docCtx:  Context{"contract_type": "NDA"},
			matched: true,
		},
		{
			name:    "equals is type strict",
			rule:    Rule{Name: "code", Condition: ConditionEquals, Field: "dept_code", Threshold: 5, Action: "add_finance_approval"},
			docCtx:  Context{"dept_code": "5"},
			matched: false,
		},
		{
			name:    "equals numeric across int and float",
			rule:    Rule{Name: "code", Condition: ConditionEquals, Field: "dept_code", Threshold: 5, Action: "add_finance_approval"},
			docCtx:  Context{"dept_code": float64(5)},
			matched: true,
		},
		{
			name:    "in_list matches",
			rule:    Rule{Name: "risky", Condition: ConditionInList, Field: "vendor_type", Threshold: []any{"High Risk", "New Vendor"}, Action: "add_executive_approval"},
			docCtx:  Context{"vendor_type": "High Risk"},
			matched: true,
		},
		{
			name:    "in_list no match",
			rule:    Rule{Name: "risky", Condition: ConditionInList, Field: "vendor_type", Threshold: []any{"High Risk"}, Action: "add_executive_approval"},
			docCtx:  Context{"vendor_type": "Trusted"},
			matched: false,
		},
		{
			name:    "not_in_list matches",
			rule:    Rule{Name: "unapproved region", Condition: ConditionNotInList, Field: "region", Threshold: []any{"EU", "US"}, Action: "add_compliance_review"},
			docCtx:  Context{"region": "APAC"},
			matched: true,
		},
		{
			name:    "not_in_list no match when present",
			rule:    Rule{Name: "unapproved region", Condition: ConditionNotInList, Field: "region", Threshold: []any{"EU", "US"}, Action: "add_compliance_review"},
			docCtx:  Context{"region": "EU"},
			matched: false,
		},
		{
			name:    "contains substring",
			rule:    Rule{Name: "urgent", Condition: ConditionContains, Field: "title", Threshold: "urgent", Action: "escalate_to_executive"},
			docCtx:  Context{"title": "urgent: datacenter contract"},
			matched: true,
		},
		{
			name:    "missing field does not apply",
			rule:    Rule{Name: "high value", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 1_000_000, Action: "add_legal_review"},
			docCtx:  Context{"contract_type": "NDA"},
			matched: false,
		},
		{
			name:    "nil field value does not apply",
			rule:    Rule{Name: "high value", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 1_000_000, Action: "add_legal_review"},
			docCtx:  Context{"contract_value": nil},
			matched: false,
		},
		{
			name:    "non numeric field on numeric comparison errors",
			rule:    Rule{Name: "high value", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 1_000_000, Action: "add_legal_review"},
			docCtx:  Context{"contract_value": "a lot"},
			wantErr: true,
		},
		{
			name:    "non list threshold on in_list errors",
			rule:    Rule{Name: "risky", Condition: ConditionInList, Field: "vendor_type", Threshold: "High Risk", Action: "add_executive_approval"},
			docCtx:  Context{"vendor_type": "High Risk"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, err := tt.rule.Evaluate(tt.docCtx)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.CodeValidation, apperrors.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestRuleValidate(t *testing.T) {
	valid := Rule{Name: "r", Condition: ConditionGreaterThan, Field: "contract_value", Threshold: 100, Action: "add_legal_review"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *Rule)
	}{
		{"empty name", func(r *Rule) { r.Name = "" }},
		{"empty field", func(r *Rule) { r.Field = "" }},
		{"empty action", func(r *Rule) { r.Action = "" }},
		{"unknown condition", func(r *Rule) { r.Condition = "approximately" }},
		{"string threshold on numeric condition", func(r *Rule) { r.Threshold = "high" }},
		{"string threshold on upper case numeric condition", func(r *Rule) {
			r.Condition = "GREATER_THAN"
			r.Threshold = "high"
		}},
		{"scalar threshold on list condition", func(r *Rule) {
			r.Condition = ConditionInList
			r.Threshold = "EU"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeValidation, apperrors.Code(err))
		})
	}
}

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition("GREATER_THAN")
	require.NoError(t, err)
	assert.Equal(t, ConditionGreaterThan, c)

	_, err = ParseCondition("between")
	require.Error(t, err)
}
