package filter

import "fmt"

// WarningKind names a non-fatal filter problem
type WarningKind string

const (
	WarningUnknownColumn  WarningKind = "unknown_column"
	WarningConditionParse WarningKind = "condition_parse"
)

// Warning reports a condition that was dropped or skipped
type Warning struct {
	Kind      WarningKind `json:"kind"`
	Attribute string      `json:"attribute"`
	Message   string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Attribute, w.Message)
}

func unknownColumn(attr string) Warning {
	return Warning{Kind: WarningUnknownColumn, Attribute: attr, Message: "attribute is not in the schema; condition dropped"}
}

func conditionParse(attr, format string, args ...any) Warning {
	return Warning{Kind: WarningConditionParse, Attribute: attr, Message: fmt.Sprintf(format, args...)}
}

// CountByKind tallies warnings for metrics and logs
func CountByKind(warnings []Warning) map[WarningKind]int {
	out := make(map[WarningKind]int, 2)
	for _, w := range warnings {
		out[w.Kind]++
	}
	return out
}
