package schema

import (
	"fmt"
	"strconv"
	"strings"

	"attrition/domain/employee"
)

// Kind classifies an attribute for validation
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindIdentifier  Kind = "identifier"
)

// Attribute is one known column
type Attribute struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Description string `json:"description,omitempty"`
	Derived     bool   `json:"derived,omitempty"`
}

// Registry is the closed set of attributes queries may reference.
// Attribute order is preserved so prompts and exports are stable.
type Registry struct {
	attrs []Attribute
	index map[string]int
}

// NewRegistry builds a registry; later duplicates replace earlier declarations.
func NewRegistry(attrs ...Attribute) *Registry {
	r := &Registry{index: make(map[string]int, len(attrs))}
	for _, a := range attrs {
		r.add(a)
	}
	return r
}

func (r *Registry) add(a Attribute) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return
	}
	if i, ok := r.index[a.Name]; ok {
		r.attrs[i] = a
		return
	}
	r.index[a.Name] = len(r.attrs)
	r.attrs = append(r.attrs, a)
}

// Has reports whether the attribute is known
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.index[name]
	return ok
}

// Lookup returns the attribute declaration
func (r *Registry) Lookup(name string) (Attribute, bool) {
	if r == nil {
		return Attribute{}, false
	}
	i, ok := r.index[name]
	if !ok {
		return Attribute{}, false
	}
	return r.attrs[i], true
}

// KindOf returns the declared kind, or "" for unknown attributes
func (r *Registry) KindOf(name string) Kind {
	a, _ := r.Lookup(name)
	return a.Kind
}

// IsNumeric reports whether comparisons are allowed on the attribute
func (r *Registry) IsNumeric(name string) bool {
	return r.KindOf(name) == KindNumeric
}

// Names returns attribute names in declaration order
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.attrs))
	for i, a := range r.attrs {
		names[i] = a.Name
	}
	return names
}

// Attributes returns a copy of the declarations
func (r *Registry) Attributes() []Attribute {
	if r == nil {
		return nil
	}
	out := make([]Attribute, len(r.attrs))
	copy(out, r.attrs)
	return out
}

// Len returns the number of attributes
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.attrs)
}

// Describe renders "name (kind)" lines for prompts. Values are never included.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, a := range r.Attributes() {
		fmt.Fprintf(&b, "- %s (%s)", a.Name, a.Kind)
		if a.Description != "" {
			fmt.Fprintf(&b, ": %s", a.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// DerivedAttributes are appended to every scored dataset.
func DerivedAttributes() []Attribute {
	return []Attribute{
		{Name: employee.AttrAttritionProbability, Kind: KindNumeric, Description: "model-estimated probability of leaving, 0 to 1", Derived: true},
		{Name: employee.AttrRiskLabel, Kind: KindCategorical, Description: `"High Risk" or "Low Risk"`, Derived: true},
		{Name: employee.AttrRiskFlag, Kind: KindCategorical, Description: `"true" when Attrition_Probability exceeds the risk threshold`, Derived: true},
	}
}

// Employee returns the declared employee attributes plus the derived fields.
func Employee() *Registry {
	attrs := []Attribute{
		{Name: employee.AttrEmployeeID, Kind: KindIdentifier, Description: "employee identifier"},
		{Name: employee.AttrDepartment, Kind: KindCategorical, Description: "department name"},
		{Name: employee.AttrTenure, Kind: KindNumeric, Description: "tenure in years"},
		{Name: employee.AttrEngagementScore, Kind: KindNumeric, Description: "engagement score, 0 to 5"},
		{Name: employee.AttrJobSatisfaction, Kind: KindNumeric, Description: "job satisfaction score"},
	}
	return NewRegistry(append(attrs, DerivedAttributes()...)...)
}

// FromDataset builds the registry for one ingested batch: the given columns with kinds
// taken from the declared employee registry when known and inferred from values otherwise.
// Declared attributes absent from the dataset are not included.
func FromDataset(columns []string, rows []employee.Record) *Registry {
	declared := Employee()
	r := NewRegistry()
	for _, col := range columns {
		if a, ok := declared.Lookup(col); ok && !a.Derived {
			r.add(a)
			continue
		}
		r.add(Attribute{Name: col, Kind: InferKind(col, rows)})
	}
	if !r.Has(employee.AttrEmployeeID) {
		r.add(Attribute{Name: employee.AttrEmployeeID, Kind: KindIdentifier, Description: "employee identifier"})
	}
	for _, d := range DerivedAttributes() {
		r.add(d)
	}
	return r
}

// InferKind classifies a column as numeric when every non-blank value parses as a number.
func InferKind(column string, rows []employee.Record) Kind {
	if column == employee.AttrEmployeeID {
		return KindIdentifier
	}
	seen := 0
	for _, row := range rows {
		v := strings.TrimSpace(row[column])
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return KindCategorical
		}
		seen++
	}
	if seen == 0 {
		return KindCategorical
	}
	return KindNumeric
}
