// Package policy decides whether a change request may be applied
// without human review.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the policy.
const (
	DecisionAuto   = "auto"
	DecisionReview = "review"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.change_policy.decision"),
		rego.Module("change_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the change policy. Input is a map with keys
// request_type, auto_approvable and priority. Anything other than an
// explicit "auto" decision means the request waits for human review;
// the gate fails closed.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionReview, nil
	}

	if decision, ok := results[0].Expressions[0].Value.(string); ok {
		return decision, nil
	}

	return DecisionReview, nil
}

// DefaultPolicy is the server-side auto-approve gate. The model's
// autoApprovable flag is necessary but never sufficient: the request
// type must also be on the allow-list and the priority must not be
// high.
const DefaultPolicy = `
package change_policy

import rego.v1

default decision := "review"

auto_allowed := {"hours_update", "contact_info"}

decision := "auto" if {
	input.auto_approvable == true
	input.request_type in auto_allowed
	input.priority != "high"
}
`
