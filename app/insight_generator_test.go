package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"attrition/adapters/llm"
	"attrition/ai"
	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/domain/insight"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(client *llm.MockLLMClient) *InsightGenerator {
	return NewInsightGenerator(client, ai.NewPromptManager("", zerolog.Nop()), InsightConfig{Model: "test", Concurrency: 2}, zerolog.Nop())
}

func salesRecord() employee.ScoredRecord {
	return employee.NewScoredRecord(employee.Record{"EmployeeID": "1000", "department": "Sales", "tenure": "2", "engagement_score": "1.5"}, 0.75)
}

func TestGenerateParsesResponse(t *testing.T) {
	client := &llm.MockLLMClient{}
	out := newGenerator(client).Generate(context.Background(), salesRecord())

	assert.False(t, out.Degraded)
	assert.NoError(t, out.Reason)
	assert.Equal(t, "1000", out.EmployeeID)
	assert.Equal(t, "Engagement has dropped below the team average.", out.Insight.Diagnostic)
	assert.NotEmpty(t, out.Insight.Prescriptive)
	assert.NotEmpty(t, out.Insight.Preventive)

	prompts := client.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Attrition risk: 75.0% (High Risk)")
}

func TestGenerateMissingPreventive(t *testing.T) {
	client := &llm.MockLLMClient{Response: "Diagnostic: Low engagement.\nPrescriptive: Mentor program."}
	out := newGenerator(client).Generate(context.Background(), salesRecord())
	assert.False(t, out.Degraded)
	assert.Equal(t, insight.Record{Diagnostic: "Low engagement.", Prescriptive: "Mentor program."}, out.Insight)
}

func TestGenerateDegradesOnModelFailure(t *testing.T) {
	client := &llm.MockLLMClient{Error: errors.New("connection refused")}
	out := newGenerator(client).Generate(context.Background(), salesRecord())

	assert.True(t, out.Degraded)
	assert.Equal(t, insight.Degraded(), out.Insight)
	assert.ErrorIs(t, out.Reason, core.ErrInsightUnavailable)
	assert.Contains(t, out.ReasonText(), "connection refused")
}

func TestGenerateWithoutClientDegrades(t *testing.T) {
	g := NewInsightGenerator(nil, ai.NewPromptManager("", zerolog.Nop()), InsightConfig{}, zerolog.Nop())
	out := g.Generate(context.Background(), salesRecord())
	assert.True(t, out.Degraded)
	assert.Equal(t, insight.Unavailable, out.Insight.Diagnostic)
}

func TestGenerateBatchKeepsOrder(t *testing.T) {
	var records []employee.ScoredRecord
	for i := 0; i < 7; i++ {
		records = append(records, employee.NewScoredRecord(employee.Record{"EmployeeID": fmt.Sprint(i), "department": "Ops"}, 0.9))
	}

	client := &llm.MockLLMClient{}
	out, err := newGenerator(client).GenerateBatch(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, out, 7)
	for i, o := range out {
		assert.Equal(t, fmt.Sprint(i), o.EmployeeID)
		assert.False(t, o.Degraded)
	}
	assert.Len(t, client.Prompts(), 7)
}

func TestGenerateBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newGenerator(&llm.MockLLMClient{}).GenerateBatch(ctx, []employee.ScoredRecord{salesRecord()})
	assert.ErrorIs(t, err, context.Canceled)
}
