package workflow

// Predefined rule sets for common approval scenarios. Deployments start from
// one of these and adjust per tenant through the rules API.

// ValueBasedRules routes contracts by monetary value.
func ValueBasedRules() []Rule {
	return []Rule{
		{
			Name:      "High Value Contract",
			Condition: ConditionGreaterThan,
			Field:     "contract_value",
			Threshold: 1_000_000,
			Action:    "add_legal_review",
			Priority:  1,
		},
		{
			Name:      "Very High Value Contract",
			Condition: ConditionGreaterThan,
			Field:     "contract_value",
			Threshold: 5_000_000,
			Action:    "add_executive_approval",
			Priority:  2,
		},
	}
}

// TypeBasedRules routes contracts by document type.
func TypeBasedRules() []Rule {
	return []Rule{
		{
			Name:      "NDA Requires Legal",
			Condition: ConditionEquals,
			Field:     "contract_type",
			Threshold: "NDA",
			Action:    "add_legal_review",
			Priority:  1,
		},
		{
			Name:      "Vendor Agreement Requires Finance",
			Condition: ConditionEquals,
			Field:     "contract_type",
			Threshold: "Vendor Agreement",
			Action:    "add_finance_approval",
			Priority:  2,
		},
	}
}

// ContractApprovalRules is the full routing set for contract approvals.
func ContractApprovalRules() []Rule {
	return []Rule{
		{
			Name:      "Medium Value Contract",
			Condition: ConditionGreaterThan,
			Field:     "contract_value",
			Threshold: 100_000,
			Action:    "add_finance_approval",
			Priority:  2,
		},
		{
			Name:      "High Value Contract",
			Condition: ConditionGreaterThan,
			Field:     "contract_value",
			Threshold: 1_000_000,
			Action:    "add_legal_review",
			Priority:  3,
		},
		{
			Name:      "Very High Value Contract",
			Condition: ConditionGreaterThan,
			Field:     "contract_value",
			Threshold: 5_000_000,
			Action:    "add_executive_approval",
			Priority:  4,
		},
		{
			Name:      "NDA Requires Legal",
			Condition: ConditionEquals,
			Field:     "contract_type",
			Threshold: "NDA",
			Action:    "add_legal_review",
			Priority:  5,
		},
	}
}

// VendorOnboardingRules routes vendor onboarding by risk profile.
func VendorOnboardingRules() []Rule {
	return []Rule{
		{
			Name:      "Vendor Risk Assessment",
			Condition: ConditionInList,
			Field:     "vendor_type",
			Threshold: []any{"High Risk", "New Vendor"},
			Action:    "add_executive_approval",
			Priority:  1,
		},
		{
			Name:      "International Vendor",
			Condition: ConditionEquals,
			Field:     "vendor_country",
			Threshold: "International",
			Action:    "add_compliance_review",
			Priority:  2,
		},
	}
}

// ChangeOrderRules routes change orders by change amount.
func ChangeOrderRules() []Rule {
	return []Rule{
		{
			Name:      "Major Change",
			Condition: ConditionGreaterThan,
			Field:     "change_amount",
			Threshold: 500_000,
			Action:    "add_executive_approval",
			Priority:  1,
		},
	}
}
