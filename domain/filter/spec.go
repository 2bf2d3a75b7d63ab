package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConditionKind distinguishes equality from numeric comparison
type ConditionKind string

const (
	KindEquality   ConditionKind = "equality"
	KindComparison ConditionKind = "comparison"
)

// Operator is one of the permitted comparison tokens
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpEqual        Operator = "="
	OpGreaterEqual Operator = "≥"
	OpLessEqual    Operator = "≤"
)

// Operators lists the canonical operator vocabulary
var Operators = []Operator{OpGreater, OpLess, OpEqual, OpGreaterEqual, OpLessEqual}

// operatorAliases maps accepted input spellings to canonical operators
var operatorAliases = map[string]Operator{
	">":  OpGreater,
	"<":  OpLess,
	"=":  OpEqual,
	"==": OpEqual,
	"≥":  OpGreaterEqual,
	">=": OpGreaterEqual,
	"≤":  OpLessEqual,
	"<=": OpLessEqual,
}

// ParseOperator normalises an operator token
func ParseOperator(token string) (Operator, bool) {
	op, ok := operatorAliases[strings.TrimSpace(token)]
	return op, ok
}

// Valid reports whether op is canonical
func (op Operator) Valid() bool {
	for _, o := range Operators {
		if op == o {
			return true
		}
	}
	return false
}

// Compare applies the operator to a left value and the operand
func (op Operator) Compare(left, operand float64) bool {
	switch op {
	case OpGreater:
		return left > operand
	case OpLess:
		return left < operand
	case OpEqual:
		return left == operand
	case OpGreaterEqual:
		return left >= operand
	case OpLessEqual:
		return left <= operand
	}
	return false
}

// Condition narrows a dataset on one attribute
type Condition struct {
	Attribute string        `json:"attribute"`
	Kind      ConditionKind `json:"kind"`
	Value     string        `json:"value,omitempty"`
	Operator  Operator      `json:"operator,omitempty"`
	Operand   float64       `json:"operand,omitempty"`
}

// Equals builds an equality condition
func Equals(attr, value string) Condition {
	return Condition{Attribute: attr, Kind: KindEquality, Value: value}
}

// Compare builds a comparison condition
func Compare(attr string, op Operator, operand float64) Condition {
	return Condition{Attribute: attr, Kind: KindComparison, Operator: op, Operand: operand}
}

// Expression renders the condition value the way the model is asked to write it
func (c Condition) Expression() string {
	if c.Kind == KindComparison {
		return string(c.Operator) + strconv.FormatFloat(c.Operand, 'f', -1, 64)
	}
	return c.Value
}

func (c Condition) String() string {
	if c.Kind == KindComparison {
		return fmt.Sprintf("%s %s %s", c.Attribute, c.Operator, strconv.FormatFloat(c.Operand, 'f', -1, 64))
	}
	return fmt.Sprintf("%s = %q", c.Attribute, c.Value)
}

// Spec is a validated, schema-bound set of conditions combined with AND.
// Each attribute appears at most once.
type Spec struct {
	Conditions []Condition `json:"conditions"`
}

// IsEmpty reports whether the spec filters nothing
func (s Spec) IsEmpty() bool {
	return len(s.Conditions) == 0
}

// Get returns the condition on attr
func (s Spec) Get(attr string) (Condition, bool) {
	for _, c := range s.Conditions {
		if c.Attribute == attr {
			return c, true
		}
	}
	return Condition{}, false
}

// AsMap renders the spec as attribute → expression
func (s Spec) AsMap() map[string]string {
	out := make(map[string]string, len(s.Conditions))
	for _, c := range s.Conditions {
		out[c.Attribute] = c.Expression()
	}
	return out
}

func (s Spec) String() string {
	if s.IsEmpty() {
		return "(no conditions)"
	}
	parts := make([]string, len(s.Conditions))
	for i, c := range s.Conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " AND ")
}

func validOperand(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
