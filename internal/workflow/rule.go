package workflow

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pesio-ai/be-doc-approvals/internal/apperrors"
)

// Condition is the comparator a rule applies to a context field.
type Condition string

const (
	ConditionGreaterThan Condition = "greater_than"
	ConditionLessThan    Condition = "less_than"
	ConditionEquals      Condition = "equals"
	ConditionInList      Condition = "in_list"
	ConditionNotInList   Condition = "not_in_list"
	ConditionContains    Condition = "contains"
)

// ParseCondition converts a wire string into a Condition.
func ParseCondition(s string) (Condition, error) {
	switch c := Condition(strings.ToLower(s)); c {
	case ConditionGreaterThan, ConditionLessThan, ConditionEquals,
		ConditionInList, ConditionNotInList, ConditionContains:
		return c, nil
	default:
		return "", apperrors.Newf(apperrors.CodeValidation, "unknown rule condition %q", s)
	}
}

// Rule is a single conditional test producing an action when satisfied.
// Rules are immutable once added to a RuleSet; Evaluate is a pure function
// of the context.
type Rule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Condition   Condition `json:"condition"`
	Field       string    `json:"field"`
	Threshold   any       `json:"threshold"`
	Action      Action    `json:"action"`
	Priority    int       `json:"priority"` // lower evaluates first
	Description string    `json:"description,omitempty"`
}

// Validate checks the rule's shape against its condition type.
func (r Rule) Validate() error {
	if r.Name == "" {
		return apperrors.InvalidInput("name", "rule name is required")
	}
	if r.Field == "" {
		return apperrors.InvalidInput("field", "rule field is required")
	}
	if r.Action == "" {
		return apperrors.InvalidInput("action", "rule action is required")
	}
	cond, err := ParseCondition(string(r.Condition))
	if err != nil {
		return err
	}

	switch cond {
	case ConditionGreaterThan, ConditionLessThan:
		if _, ok := toFloat(r.Threshold); !ok {
			return apperrors.InvalidInput("threshold",
				fmt.Sprintf("condition %s requires a numeric threshold", r.Condition))
		}
	case ConditionInList, ConditionNotInList:
		if !isList(r.Threshold) {
			return apperrors.InvalidInput("threshold",
				fmt.Sprintf("condition %s requires a list threshold", r.Condition))
		}
	}
	return nil
}

// Evaluate tests the rule against a document context.
// A missing field means the rule does not apply (false, nil). A field of the
// wrong type for a numeric comparison is a validation error.
func (r Rule) Evaluate(docCtx Context) (bool, error) {
	value, ok := docCtx[r.Field]
	if !ok || value == nil {
		return false, nil
	}

	switch r.Condition {
	case ConditionGreaterThan, ConditionLessThan:
		v, ok := toFloat(value)
		if !ok {
			return false, apperrors.Newf(apperrors.CodeValidation,
				"field %q is not numeric (got %T)", r.Field, value)
		}
		t, ok := toFloat(r.Threshold)
		if !ok {
			return false, apperrors.Newf(apperrors.CodeValidation,
				"rule %q threshold is not numeric (got %T)", r.Name, r.Threshold)
		}
		if r.Condition == ConditionGreaterThan {
			return v > t, nil
		}
		return v < t, nil

	case ConditionEquals:
		return valuesEqual(value, r.Threshold), nil

	case ConditionInList:
		return listContains(r.Threshold, value, r.Name)

	case ConditionNotInList:
		in, err := listContains(r.Threshold, value, r.Name)
		if err != nil {
			return false, err
		}
		return !in, nil

	case ConditionContains:
		return strings.Contains(fmt.Sprint(value), fmt.Sprint(r.Threshold)), nil
	}

	return false, apperrors.Newf(apperrors.CodeValidation, "unknown rule condition %q", r.Condition)
}

// ── value helpers ─────────────────────────────────────────────────────────────

// toFloat normalizes numeric types (including JSON-decoded float64) for
// comparison.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// valuesEqual compares numerically when both sides are numeric, otherwise by
// exact value. "5" never equals 5.
func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func listContains(threshold, value any, ruleName string) (bool, error) {
	if !isList(threshold) {
		return false, apperrors.Newf(apperrors.CodeValidation,
			"rule %q threshold is not a list (got %T)", ruleName, threshold)
	}
	list := reflect.ValueOf(threshold)
	for i := 0; i < list.Len(); i++ {
		if valuesEqual(list.Index(i).Interface(), value) {
			return true, nil
		}
	}
	return false, nil
}
