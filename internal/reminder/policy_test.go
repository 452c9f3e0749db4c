package reminder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	policy, err := NewPolicy(ctx, DefaultPolicy)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   PolicyInput
		want string
	}{
		{"repeat first", PolicyInput{Mode: ModeRepeat}, DecisionSend},
		{"repeat again", PolicyInput{Mode: ModeRepeat, AlreadyNotified: true}, DecisionSend},
		{"once first", PolicyInput{Mode: ModeOnce}, DecisionSend},
		{"once again", PolicyInput{Mode: ModeOnce, AlreadyNotified: true}, DecisionSkip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Decide(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomPolicyCanUseHoursLeft(t *testing.T) {
	ctx := context.Background()
	policy, err := NewPolicy(ctx, `
package reminder_policy

default decision = "skip"

decision = "send" {
	input.hours_left <= 1
}
`)
	require.NoError(t, err)

	got, err := policy.Decide(ctx, PolicyInput{Mode: ModeRepeat, HoursLeft: 0.5})
	require.NoError(t, err)
	assert.Equal(t, DecisionSend, got)

	got, err = policy.Decide(ctx, PolicyInput{Mode: ModeRepeat, HoursLeft: 5})
	require.NoError(t, err)
	assert.Equal(t, DecisionSkip, got)
}

func TestPolicyRejectsUnknownDecision(t *testing.T) {
	ctx := context.Background()
	policy, err := NewPolicy(ctx, `
package reminder_policy

decision = "maybe" { true }
`)
	require.NoError(t, err)

	_, err = policy.Decide(ctx, PolicyInput{Mode: ModeRepeat})
	assert.Error(t, err)
}

func TestNewPolicyRejectsInvalidModule(t *testing.T) {
	_, err := NewPolicy(context.Background(), "package reminder_policy\ndecision = ")
	assert.Error(t, err)
}

func TestPolicyWithoutDecisionSends(t *testing.T) {
	ctx := context.Background()
	policy, err := NewPolicy(ctx, "package reminder_policy\n\nunused = true\n")
	require.NoError(t, err)

	got, err := policy.Decide(ctx, PolicyInput{Mode: ModeOnce, AlreadyNotified: true})
	require.NoError(t, err)
	assert.Equal(t, DecisionSend, got)
}
