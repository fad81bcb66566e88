package workflow

import "fmt"

// Step is a canonical workflow step token.
type Step string

const (
	StepSubmission        Step = "submission"
	StepInitialReview     Step = "initial_review"
	StepManagerApproval   Step = "manager_approval"
	StepLegalReview       Step = "legal_review"
	StepFinanceApproval   Step = "finance_approval"
	StepComplianceReview  Step = "compliance_review"
	StepExecutiveApproval Step = "executive_approval"
	StepFinalApproval     Step = "final_approval"
	StepCompleted         Step = "completed"
)

// Sentinel reports whether the step is a bookkeeping marker that never gets
// an approval record.
func (s Step) Sentinel() bool {
	return s == StepSubmission || s == StepCompleted
}

var knownSteps = map[Step]struct{}{
	StepSubmission:        {},
	StepInitialReview:     {},
	StepManagerApproval:   {},
	StepLegalReview:       {},
	StepFinanceApproval:   {},
	StepComplianceReview:  {},
	StepExecutiveApproval: {},
	StepFinalApproval:     {},
	StepCompleted:         {},
}

// Skeleton is the canonical ordered step list of a workflow template,
// immutable after construction. Synthesis never mutates the skeleton.
type Skeleton struct {
	name  string
	steps []Step
}

// Name returns the template name.
func (k Skeleton) Name() string { return k.name }

// Steps returns a copy of the canonical step sequence.
func (k Skeleton) Steps() []Step {
	out := make([]Step, len(k.steps))
	copy(out, k.steps)
	return out
}

var templates = map[string]Skeleton{
	"simple": {
		name:  "simple",
		steps: []Step{StepSubmission, StepManagerApproval, StepCompleted},
	},
	"standard": {
		name: "standard",
		steps: []Step{
			StepSubmission, StepInitialReview, StepManagerApproval,
			StepFinalApproval, StepCompleted,
		},
	},
	"comprehensive": {
		name: "comprehensive",
		steps: []Step{
			StepSubmission, StepInitialReview, StepManagerApproval,
			StepLegalReview, StepFinanceApproval, StepExecutiveApproval,
			StepFinalApproval, StepCompleted,
		},
	},
}

// Template resolves a template name to its skeleton and the seed rules it
// ships with. The value_based and type_based templates are the standard
// skeleton plus predefined rules.
func Template(name string) (Skeleton, []Rule, bool) {
	if k, ok := templates[name]; ok {
		return k, nil, true
	}
	switch name {
	case "value_based":
		return templates["standard"], ValueBasedRules(), true
	case "type_based":
		return templates["standard"], TypeBasedRules(), true
	}
	return Skeleton{}, nil, false
}

// ── Action → step insertion table ─────────────────────────────────────────────

type anchor int

const (
	anchorBefore anchor = iota
	anchorAfter
)

type insertion struct {
	step   Step
	anchor anchor
	target Step
}

// actionInsertions maps each known action to the dynamic step it adds and
// the anchor it splices at. Checked at init so a bad entry fails fast
// instead of surfacing as a runtime lookup miss.
var actionInsertions = map[Action]insertion{
	"add_legal_review":       {StepLegalReview, anchorBefore, StepFinalApproval},
	"add_finance_approval":   {StepFinanceApproval, anchorBefore, StepFinalApproval},
	"add_compliance_review":  {StepComplianceReview, anchorBefore, StepFinalApproval},
	"add_executive_approval": {StepExecutiveApproval, anchorBefore, StepCompleted},
	"escalate_to_executive":  {StepExecutiveApproval, anchorBefore, StepCompleted},
}

func init() {
	for action, ins := range actionInsertions {
		if _, ok := knownSteps[ins.step]; !ok {
			panic(fmt.Sprintf("action %s inserts unknown step %s", action, ins.step))
		}
		if _, ok := knownSteps[ins.target]; !ok {
			panic(fmt.Sprintf("action %s anchors at unknown step %s", action, ins.target))
		}
		if ins.step.Sentinel() {
			panic(fmt.Sprintf("action %s would insert sentinel step %s", action, ins.step))
		}
	}
	for name, k := range templates {
		if len(k.steps) < 2 || k.steps[0] != StepSubmission || k.steps[len(k.steps)-1] != StepCompleted {
			panic(fmt.Sprintf("template %s must start with submission and end with completed", name))
		}
	}
}

// SynthesizeSteps splices the dynamic steps for the given actions into the
// skeleton and returns the final ordered step list. Unknown actions are
// collected as warnings without aborting synthesis of the others; a step
// already present is never inserted twice. The result always begins with
// submission and ends with completed.
func SynthesizeSteps(skeleton Skeleton, actions []Action) ([]Step, []Warning) {
	steps := skeleton.Steps()
	var warnings []Warning

	for _, action := range actions {
		ins, ok := actionInsertions[action]
		if !ok {
			warnings = append(warnings, Warning{
				Action:  action,
				Message: fmt.Sprintf("unknown action %q: no step mapping configured", action),
			})
			continue
		}
		if stepIndex(steps, ins.step) >= 0 {
			continue
		}

		pos := stepIndex(steps, ins.target)
		switch {
		case pos < 0:
			// Anchor absent from this skeleton: fall back to just before completed.
			pos = len(steps) - 1
		case ins.anchor == anchorAfter:
			pos++
		}

		steps = append(steps, "")
		copy(steps[pos+1:], steps[pos:])
		steps[pos] = ins.step
	}
	return steps, warnings
}

func stepIndex(steps []Step, step Step) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return -1
}
