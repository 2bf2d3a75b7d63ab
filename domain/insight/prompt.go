package insight

import (
	"strconv"
	"strings"

	"attrition/domain/employee"
)

// PromptFields are the record values embedded in the retention prompt.
type PromptFields struct {
	EmployeeID      string
	Department      string
	Tenure          string
	EngagementScore string
	RiskPercent     string
	RiskLabel       string
}

// FieldsFor extracts prompt values from a scored record. Missing attributes render as "unknown".
func FieldsFor(rec employee.ScoredRecord) PromptFields {
	return PromptFields{
		EmployeeID:      orUnknown(rec.EmployeeID()),
		Department:      orUnknown(rec.Attributes[employee.AttrDepartment]),
		Tenure:          orUnknown(rec.Attributes[employee.AttrTenure]),
		EngagementScore: orUnknown(rec.Attributes[employee.AttrEngagementScore]),
		RiskPercent:     Percent(rec.Probability),
		RiskLabel:       rec.Label,
	}
}

// Replacements maps template placeholders to values.
func (f PromptFields) Replacements() map[string]string {
	return map[string]string{
		"EMPLOYEE_ID":      f.EmployeeID,
		"DEPARTMENT":       f.Department,
		"TENURE":           f.Tenure,
		"ENGAGEMENT_SCORE": f.EngagementScore,
		"RISK_PERCENT":     f.RiskPercent,
		"RISK_LABEL":       f.RiskLabel,
	}
}

// Percent formats a probability as a percentage with one decimal, e.g. 0.75 -> "75.0%".
func Percent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 1, 64) + "%"
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
