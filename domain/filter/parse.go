package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"attrition/domain/core"
	"attrition/domain/schema"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxConditionLength bounds string condition values accepted from a model
const MaxConditionLength = 128

// conditionSchema accepts a single scalar condition value
var conditionSchema = jsonschema.MustCompileString("condition.schema.json", fmt.Sprintf(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": ["string", "number", "boolean"],
	"minLength": 1,
	"maxLength": %d
}`, MaxConditionLength))

var comparisonPattern = regexp.MustCompile(`^\s*(>=|<=|==|≥|≤|>|<|=)\s*([-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?)\s*$`)

// ExtractObjects returns every balanced top-level {...} span in text.
// Quotes and escapes are tracked only inside a span.
func ExtractObjects(text string) []string {
	var (
		objects  []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if depth > 0 && inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				objects = append(objects, text[start:i+1])
				start = -1
			}
		}
	}
	return objects
}

// ParseObject extracts exactly one JSON object from free text.
// Candidates that are not valid JSON are ignored; zero or several valid objects fail.
func ParseObject(text string) (map[string]any, error) {
	candidates := ExtractObjects(text)
	if len(candidates) == 0 {
		return nil, core.NewTranslationError("no JSON object in model response", nil)
	}

	var (
		parsed  []map[string]any
		lastErr error
	)
	for _, c := range candidates {
		dec := json.NewDecoder(bytes.NewReader([]byte(c)))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			lastErr = err
			continue
		}
		parsed = append(parsed, obj)
	}

	switch len(parsed) {
	case 0:
		return nil, core.NewTranslationError("malformed JSON object in model response", lastErr)
	case 1:
		return parsed[0], nil
	default:
		return nil, core.NewTranslationError(fmt.Sprintf("model response contains %d JSON objects, expected one", len(parsed)), nil)
	}
}

// FromRaw maps a generic key/value object onto a typed Spec.
// Unknown keys and malformed conditions are dropped with warnings, never coerced.
func FromRaw(raw map[string]any, reg *schema.Registry) (Spec, []Warning) {
	var (
		spec     Spec
		warnings []Warning
		unknown  []string
	)

	for key := range raw {
		if !reg.Has(key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		warnings = append(warnings, unknownColumn(key))
	}

	for _, attr := range reg.Names() {
		value, ok := raw[attr]
		if !ok {
			continue
		}
		cond, warn := parseCondition(attr, value, reg)
		if warn != nil {
			warnings = append(warnings, *warn)
			continue
		}
		spec.Conditions = append(spec.Conditions, cond)
	}

	return spec, warnings
}

func parseCondition(attr string, value any, reg *schema.Registry) (Condition, *Warning) {
	if err := conditionSchema.Validate(value); err != nil {
		w := conditionParse(attr, "condition must be a non-empty string, number or boolean")
		return Condition{}, &w
	}

	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if !containsOperator(s) {
			if s == "" {
				w := conditionParse(attr, "empty condition value")
				return Condition{}, &w
			}
			return Equals(attr, s), nil
		}
		op, operand, err := parseComparison(s)
		if err != nil {
			w := conditionParse(attr, "%v", err)
			return Condition{}, &w
		}
		if kind := reg.KindOf(attr); kind == schema.KindCategorical {
			w := conditionParse(attr, "comparison on %s attribute", kind)
			return Condition{}, &w
		}
		return Compare(attr, op, operand), nil
	case json.Number:
		return Equals(attr, v.String()), nil
	case float64:
		return Equals(attr, strconv.FormatFloat(v, 'f', -1, 64)), nil
	case bool:
		return Equals(attr, strconv.FormatBool(v)), nil
	}

	w := conditionParse(attr, "unsupported condition type %T", value)
	return Condition{}, &w
}

func containsOperator(s string) bool {
	return strings.ContainsAny(s, "<>=≥≤")
}

// parseComparison accepts a single operator token followed by a number
func parseComparison(s string) (Operator, float64, error) {
	m := comparisonPattern.FindStringSubmatch(s)
	if m == nil {
		return "", 0, fmt.Errorf("comparison %q must be one operator followed by a number", s)
	}
	op, ok := ParseOperator(m[1])
	if !ok {
		return "", 0, fmt.Errorf("unsupported operator %q", m[1])
	}
	operand, err := strconv.ParseFloat(m[2], 64)
	if err != nil || !validOperand(operand) {
		return "", 0, fmt.Errorf("invalid operand %q", m[2])
	}
	return op, operand, nil
}
