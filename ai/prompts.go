package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Built-in template names
const (
	PromptFilterTranslation = "filter_translation"
	PromptRetentionInsight  = "retention_insight"
)

var builtinPrompts = map[string]string{
	PromptFilterTranslation: `You translate HR analytics questions into dataset filters.

The dataset has exactly these columns:
{ATTRIBUTES}
Question: {QUERY}

Return a single JSON object mapping column names to conditions and nothing else.
- Use only the column names listed above.
- For an exact match use the value as a string, e.g. {"department": "Sales"}.
- For a numeric comparison use a string made of one operator and a number, e.g. {"tenure": ">5"}.
- Allowed operators: {OPERATORS}
- An employee is high risk when Attrition_Probability is above {RISK_THRESHOLD}; "high risk" means {"Attrition_Probability": ">{RISK_THRESHOLD}"}.
- If the question does not constrain the data, return {}.
`,
	PromptRetentionInsight: `You are an HR analytics assistant. For the following employee:

Employee ID: {EMPLOYEE_ID}
Department: {DEPARTMENT}
Tenure (years): {TENURE}
Engagement score: {ENGAGEMENT_SCORE}
Attrition risk: {RISK_PERCENT} ({RISK_LABEL})

Please return:
1. Diagnostic Insight - Why might this employee leave?
2. Prescriptive Insight - What can be done to retain them?
3. Preventive Insight - What company-wide policy might help prevent similar attrition?

Format the output exactly like this:
Diagnostic: ...
Prescriptive: ...
Preventive: ...
`,
}

// Global map to track initialized prompt directories (to avoid duplicate logs)
var (
	initializedDirs   = make(map[string]bool)
	initializedDirsMu sync.Mutex
)

// PromptManager loads prompt templates. Files named <name>.txt in PromptsDir
// override the built-in templates.
type PromptManager struct {
	PromptsDir string
	logger     zerolog.Logger
}

// NewPromptManager creates a prompt manager; promptsDir may be empty.
func NewPromptManager(promptsDir string, logger zerolog.Logger) *PromptManager {
	logger = logger.With().Str("component", "prompt_manager").Logger()

	if promptsDir != "" {
		initializedDirsMu.Lock()
		if !initializedDirs[promptsDir] {
			initializedDirs[promptsDir] = true
			logger.Info().Str("dir", promptsDir).Msg("prompt overrides enabled")
		}
		initializedDirsMu.Unlock()
	}

	return &PromptManager{PromptsDir: promptsDir, logger: logger}
}

// LoadPrompt loads a prompt template by name
func (pm *PromptManager) LoadPrompt(name string) (string, error) {
	if pm.PromptsDir != "" {
		path := filepath.Join(pm.PromptsDir, name+".txt")
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			return string(content), nil
		case !os.IsNotExist(err):
			return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
		}
	}

	if tmpl, ok := builtinPrompts[name]; ok {
		return tmpl, nil
	}
	return "", fmt.Errorf("prompt template not found: %s", name)
}

// RenderPrompt replaces {PLACEHOLDER} with values
func (pm *PromptManager) RenderPrompt(name string, replacements map[string]string) (string, error) {
	template, err := pm.LoadPrompt(name)
	if err != nil {
		return "", err
	}

	pairs := make([]string, 0, len(replacements)*2)
	for placeholder, value := range replacements {
		pairs = append(pairs, "{"+placeholder+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template), nil
}
