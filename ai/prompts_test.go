package ai

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"attrition/domain/employee"
	"attrition/domain/schema"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterPromptListsNamesOnly(t *testing.T) {
	pm := NewPromptManager("", zerolog.Nop())
	reg := schema.FromDataset(
		[]string{"department", "tenure", "salary_band"},
		[]employee.Record{{"department": "Sales", "tenure": "2", "salary_band": "Confidential-Band-7"}},
	)

	prompt, err := pm.CompileFilterPrompt("  show high risk employees in Sales ", reg)
	require.NoError(t, err)

	assert.Contains(t, prompt, "- department (categorical)")
	assert.Contains(t, prompt, "- tenure (numeric)")
	assert.Contains(t, prompt, "- Attrition_Probability (numeric)")
	assert.Contains(t, prompt, "Question: show high risk employees in Sales\n")
	assert.Contains(t, prompt, `{"Attrition_Probability": ">0.6"}`)
	assert.Contains(t, prompt, "> < = ≥ ≤")
	assert.NotContains(t, prompt, "Confidential-Band-7")
	assert.False(t, strings.Contains(prompt, "{ATTRIBUTES}"))
}

func TestInsightPromptEmbedsRecord(t *testing.T) {
	pm := NewPromptManager("", zerolog.Nop())
	rec := employee.NewScoredRecord(employee.Record{"EmployeeID": "42", "department": "Eng", "tenure": "8", "engagement_score": "4.2"}, 0.2)

	prompt, err := pm.CompileInsightPrompt(rec)
	require.NoError(t, err)
	assert.Contains(t, prompt, "Department: Eng")
	assert.Contains(t, prompt, "Tenure (years): 8")
	assert.Contains(t, prompt, "Engagement score: 4.2")
	assert.Contains(t, prompt, "Attrition risk: 20.0% (Low Risk)")
	assert.Contains(t, prompt, "Preventive: ...")
}

func TestPromptOverrideFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PromptRetentionInsight+".txt"), []byte("Custom for {DEPARTMENT}"), 0o644))

	pm := NewPromptManager(dir, zerolog.Nop())
	rec := employee.NewScoredRecord(employee.Record{"department": "Ops"}, 0.9)

	prompt, err := pm.CompileInsightPrompt(rec)
	require.NoError(t, err)
	assert.Equal(t, "Custom for Ops", prompt)

	// templates without an override file fall back to the built-in text
	_, err = pm.LoadPrompt(PromptFilterTranslation)
	assert.NoError(t, err)
}

func TestLoadPromptUnknown(t *testing.T) {
	pm := NewPromptManager(t.TempDir(), zerolog.Nop())
	_, err := pm.LoadPrompt("does_not_exist")
	assert.Error(t, err)
}
