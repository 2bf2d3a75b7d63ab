package ai

import (
	"strconv"
	"strings"

	"attrition/domain/employee"
	"attrition/domain/filter"
	"attrition/domain/insight"
	"attrition/domain/schema"
)

// CompileFilterPrompt renders the translation prompt for a query.
//
// Only attribute names and kinds are embedded. Record values never reach
// the model, which keeps prompts small and avoids leaking employee data.
func (pm *PromptManager) CompileFilterPrompt(query string, reg *schema.Registry) (string, error) {
	return pm.RenderPrompt(PromptFilterTranslation, map[string]string{
		"ATTRIBUTES":     reg.Describe(),
		"QUERY":          strings.TrimSpace(query),
		"OPERATORS":      operatorList(),
		"RISK_THRESHOLD": strconv.FormatFloat(employee.RiskThreshold, 'f', -1, 64),
	})
}

// CompileInsightPrompt renders the retention prompt for one scored employee.
func (pm *PromptManager) CompileInsightPrompt(rec employee.ScoredRecord) (string, error) {
	return pm.RenderPrompt(PromptRetentionInsight, insight.FieldsFor(rec).Replacements())
}

func operatorList() string {
	ops := make([]string, len(filter.Operators))
	for i, op := range filter.Operators {
		ops[i] = string(op)
	}
	return strings.Join(ops, " ")
}
