package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyDecisions(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	tests := []struct {
		name           string
		requestType    string
		autoApprovable bool
		priority       string
		want           string
	}{
		{"hours update flagged auto", "hours_update", true, "low", DecisionAuto},
		{"contact info flagged auto", "contact_info", true, "medium", DecisionAuto},
		{"model flag alone is not enough", "content_change", true, "low", DecisionReview},
		{"logo update never auto", "logo_update", true, "low", DecisionReview},
		{"allow-listed type without flag", "hours_update", false, "low", DecisionReview},
		{"high priority always reviewed", "hours_update", true, "high", DecisionReview},
		{"unknown type reviewed", "delete_everything", true, "low", DecisionReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := engine.Evaluate(ctx, map[string]interface{}{
				"request_type":    tt.requestType,
				"auto_approvable": tt.autoApprovable,
				"priority":        tt.priority,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision)
		})
	}
}

func TestEngineRejectsBrokenPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), `package change_policy
	decision := `)
	assert.Error(t, err)
}
