package employee

import (
	"strconv"
	"strings"
)

// Attribute names with fixed meaning across ingestion, scoring and export.
const (
	AttrEmployeeID      = "EmployeeID"
	AttrDepartment      = "department"
	AttrTenure          = "tenure"
	AttrEngagementScore = "engagement_score"
	AttrJobSatisfaction = "job_satisfaction"

	AttrAttritionProbability = "Attrition_Probability"
	AttrRiskLabel            = "Risk_Label"
	AttrRiskFlag             = "Risk_Flag"
)

// RiskThreshold is the attrition probability above which an employee is flagged.
// Scorer, heuristic query vocabulary, summaries and exports all read this value.
const RiskThreshold = 0.6

// FirstSyntheticID is the identifier given to the first row of a file without EmployeeID.
const FirstSyntheticID = 1000

const (
	LabelHighRisk = "High Risk"
	LabelLowRisk  = "Low Risk"
)

// DerivedAttributes lists the columns added by scoring, in export order.
var DerivedAttributes = []string{AttrAttritionProbability, AttrRiskLabel, AttrRiskFlag}

// Record is one raw employee row: attribute name to cell value.
type Record map[string]string

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the trimmed EmployeeID, or "" when absent.
func (r Record) ID() string {
	return strings.TrimSpace(r[AttrEmployeeID])
}

// Has reports whether the attribute is present with a non-blank value.
func (r Record) Has(attr string) bool {
	v, ok := r[attr]
	return ok && strings.TrimSpace(v) != ""
}

// Float parses a numeric attribute.
func (r Record) Float(attr string) (float64, bool) {
	v, ok := r[attr]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SyntheticID returns the identifier assigned to the row at index when none was supplied.
func SyntheticID(index int) string {
	return strconv.Itoa(FirstSyntheticID + index)
}

// SyntheticIDs assigns identifiers to the rows without EmployeeID, keyed by row
// index. A row gets SyntheticID(index) unless a supplied or earlier assigned id
// already holds that value, in which case the next free number is taken.
// Assigned ids are unique within the file and strictly increasing.
func SyntheticIDs(records []Record) map[int]string {
	used := make(map[string]bool, len(records))
	for _, r := range records {
		if id := r.ID(); id != "" {
			used[id] = true
		}
	}

	out := make(map[int]string)
	next := FirstSyntheticID
	for i, r := range records {
		if r.ID() != "" {
			continue
		}
		n := max(FirstSyntheticID+i, next)
		for used[strconv.Itoa(n)] {
			n++
		}
		id := strconv.Itoa(n)
		used[id] = true
		out[i] = id
		next = n + 1
	}
	return out
}

// IsHighRisk applies the shared threshold.
func IsHighRisk(probability float64) bool {
	return probability > RiskThreshold
}

// LabelFor returns the human label for a flag.
func LabelFor(flag bool) string {
	if flag {
		return LabelHighRisk
	}
	return LabelLowRisk
}

// ScoredRecord is an employee record with its derived risk fields.
// It is built once by the scorer and treated as read-only afterwards.
type ScoredRecord struct {
	Attributes  Record  `json:"attributes"`
	Probability float64 `json:"attrition_probability"`
	Label       string  `json:"risk_label"`
	Flag        bool    `json:"risk_flag"`
}

// NewScoredRecord derives label and flag from the probability.
func NewScoredRecord(attrs Record, probability float64) ScoredRecord {
	flag := IsHighRisk(probability)
	return ScoredRecord{
		Attributes:  attrs,
		Probability: probability,
		Label:       LabelFor(flag),
		Flag:        flag,
	}
}

// EmployeeID returns the record identifier.
func (s ScoredRecord) EmployeeID() string {
	return s.Attributes.ID()
}

// Value resolves raw and derived attributes by name as strings.
func (s ScoredRecord) Value(attr string) (string, bool) {
	switch attr {
	case AttrAttritionProbability:
		return FormatProbability(s.Probability), true
	case AttrRiskLabel:
		return s.Label, true
	case AttrRiskFlag:
		return strconv.FormatBool(s.Flag), true
	}
	v, ok := s.Attributes[attr]
	return v, ok
}

// Row flattens the record for export: the given columns followed by the derived fields.
func (s ScoredRecord) Row(columns []string) []string {
	row := make([]string, 0, len(columns)+len(DerivedAttributes))
	for _, c := range columns {
		row = append(row, s.Attributes[c])
	}
	for _, d := range DerivedAttributes {
		v, _ := s.Value(d)
		row = append(row, v)
	}
	return row
}

// FormatProbability renders a probability the way filters and exports compare it.
func FormatProbability(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// HighRisk returns the flagged subset in input order.
func HighRisk(records []ScoredRecord) []ScoredRecord {
	out := make([]ScoredRecord, 0, len(records))
	for _, r := range records {
		if r.Flag {
			out = append(out, r)
		}
	}
	return out
}

// FindByID returns the first record with the given EmployeeID.
func FindByID(records []ScoredRecord, id string) (ScoredRecord, bool) {
	id = strings.TrimSpace(id)
	for _, r := range records {
		if r.EmployeeID() == id {
			return r, true
		}
	}
	return ScoredRecord{}, false
}

// Columns returns the raw attribute columns of a scored dataset: EmployeeID first
// when the source lacked it, with any derived names removed.
func Columns(headers []string) []string {
	derived := make(map[string]bool, len(DerivedAttributes))
	for _, d := range DerivedAttributes {
		derived[d] = true
	}
	out := make([]string, 0, len(headers)+1)
	hasID := false
	for _, h := range headers {
		if derived[h] {
			continue
		}
		if h == AttrEmployeeID {
			hasID = true
		}
		out = append(out, h)
	}
	if !hasID {
		out = append([]string{AttrEmployeeID}, out...)
	}
	return out
}
