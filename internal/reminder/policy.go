package reminder

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Mode selects whether a due task is re-notified on every scan.
type Mode string

const (
	// ModeRepeat notifies on every scan while the task stays due.
	ModeRepeat Mode = "repeat"
	// ModeOnce notifies once per distinct deadline.
	ModeOnce Mode = "once"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeRepeat || m == ModeOnce
}

// Decisions returned by the notify policy.
const (
	DecisionSend = "send"
	DecisionSkip = "skip"
)

// PolicyInput is the document the notify policy is evaluated against.
type PolicyInput struct {
	Mode            Mode    `json:"mode"`
	TaskID          int64   `json:"task_id"`
	OwnerID         string  `json:"owner_id"`
	HoursLeft       float64 `json:"hours_left"`
	AlreadyNotified bool    `json:"already_notified"`
}

// Policy decides whether a due task gets a notification in this scan.
type Policy struct {
	query rego.PreparedEvalQuery
}

// NewPolicy compiles the rego module. The module must define
// data.reminder_policy.decision.
func NewPolicy(ctx context.Context, module string) (*Policy, error) {
	r := rego.New(
		rego.Query("data.reminder_policy.decision"),
		rego.Module("reminder_policy.rego", module),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Policy{query: query}, nil
}

// Decide evaluates the policy. An undefined result means send.
func (p *Policy) Decide(ctx context.Context, in PolicyInput) (string, error) {
	results, err := p.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionSend, nil
	}

	decision, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected policy result %T", results[0].Expressions[0].Value)
	}
	switch decision {
	case DecisionSend, DecisionSkip:
		return decision, nil
	}
	return "", fmt.Errorf("unknown policy decision %q", decision)
}

// DefaultPolicy re-notifies in repeat mode and skips already notified
// deadlines in once mode.
const DefaultPolicy = `
package reminder_policy

default decision = "send"

decision = "skip" {
	input.mode == "once"
	input.already_notified
}
`
