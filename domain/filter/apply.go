package filter

import (
	"strconv"
	"strings"

	"attrition/domain/employee"
	"attrition/domain/schema"
)

// Apply narrows records by every condition in spec (logical AND).
// The input slice is never modified. Conditions on attributes outside reg,
// with unknown operators, or comparing non-numeric values are skipped with a warning.
func Apply(records []employee.ScoredRecord, spec Spec, reg *schema.Registry) ([]employee.ScoredRecord, []Warning) {
	working := make([]employee.ScoredRecord, len(records))
	copy(working, records)

	var warnings []Warning
	for _, cond := range spec.Conditions {
		if !reg.Has(cond.Attribute) {
			warnings = append(warnings, unknownColumn(cond.Attribute))
			continue
		}

		switch cond.Kind {
		case KindEquality:
			working = keep(working, func(r employee.ScoredRecord) bool {
				v, _ := r.Value(cond.Attribute)
				return v == cond.Value
			})
		case KindComparison:
			if !cond.Operator.Valid() || !validOperand(cond.Operand) {
				warnings = append(warnings, conditionParse(cond.Attribute, "invalid comparison %q", cond.Expression()))
				continue
			}
			values, ok := numericValues(working, cond.Attribute)
			if !ok {
				warnings = append(warnings, conditionParse(cond.Attribute, "attribute has non-numeric values; comparison %s skipped", cond.Expression()))
				continue
			}
			next := working[:0:0]
			for i, r := range working {
				if cond.Operator.Compare(values[i], cond.Operand) {
					next = append(next, r)
				}
			}
			working = next
		default:
			warnings = append(warnings, conditionParse(cond.Attribute, "unknown condition kind %q", cond.Kind))
		}
	}

	return working, warnings
}

func keep(records []employee.ScoredRecord, pred func(employee.ScoredRecord) bool) []employee.ScoredRecord {
	out := make([]employee.ScoredRecord, 0, len(records))
	for _, r := range records {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// numericValues parses attr for every record; ok is false if any value is not a number.
func numericValues(records []employee.ScoredRecord, attr string) ([]float64, bool) {
	values := make([]float64, len(records))
	for i, r := range records {
		if attr == employee.AttrAttritionProbability {
			values[i] = r.Probability
			continue
		}
		raw, _ := r.Value(attr)
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || !validOperand(f) {
			return nil, false
		}
		values[i] = f
	}
	return values, true
}
