package heuristic

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"attrition/domain/employee"
	"attrition/domain/schema"
)

// Planner turns a query into a filter object using a fixed vocabulary, for
// deployments without a language model. Its output is untrusted in the same
// way model output is and goes through the same validation.
//
// Recognised phrases:
//   - "high risk" / "at risk" and "low risk"
//   - "<attribute> above|below|at least|at most N" (and synonyms, N may end in %)
//   - any categorical level present in the dataset, e.g. "Sales"
type Planner struct{}

// NewPlanner creates a heuristic planner
func NewPlanner() *Planner {
	return &Planner{}
}

var (
	highRiskPattern = regexp.MustCompile(`(?i)\b(high[\s-]+risk|at[\s-]+risk|likely to leave|flight risk)\b`)
	lowRiskPattern  = regexp.MustCompile(`(?i)\b(low[\s-]+risk|not at risk|likely to stay)\b`)
)

var comparatorPhrases = []struct {
	phrase string
	op     string
}{
	{"greater than or equal to", "≥"},
	{"less than or equal to", "≤"},
	{"at least", "≥"},
	{"at most", "≤"},
	{"no more than", "≤"},
	{"no less than", "≥"},
	{"greater than", ">"},
	{"more than", ">"},
	{"higher than", ">"},
	{"less than", "<"},
	{"lower than", "<"},
	{"fewer than", "<"},
	{"above", ">"},
	{"over", ">"},
	{"below", "<"},
	{"under", "<"},
	{"equal to", "="},
	{"exactly", "="},
}

// attributeAliases are extra spellings for attributes analysts name loosely
var attributeAliases = map[string][]string{
	employee.AttrAttritionProbability: {"attrition probability", "attrition risk", "risk score", "risk", "probability"},
	employee.AttrEngagementScore:      {"engagement"},
	employee.AttrJobSatisfaction:      {"satisfaction"},
}

// Plan returns a JSON object mapping attribute names to conditions.
// levels holds the distinct values of categorical attributes.
func (p *Planner) Plan(query string, reg *schema.Registry, levels map[string][]string) string {
	conds := make(map[string]string)

	for _, attr := range reg.Names() {
		if !reg.IsNumeric(attr) {
			continue
		}
		if expr, ok := matchComparison(query, attr); ok {
			conds[attr] = expr
		}
	}

	if _, set := conds[employee.AttrAttritionProbability]; !set && reg.Has(employee.AttrAttritionProbability) {
		threshold := strconv.FormatFloat(employee.RiskThreshold, 'f', -1, 64)
		switch {
		case lowRiskPattern.MatchString(query):
			conds[employee.AttrAttritionProbability] = "≤" + threshold
		case highRiskPattern.MatchString(query):
			conds[employee.AttrAttritionProbability] = ">" + threshold
		}
	}

	for _, attr := range reg.Names() {
		if _, set := conds[attr]; set {
			continue
		}
		if level, ok := matchLevel(query, levels[attr]); ok {
			conds[attr] = level
		}
	}

	out, err := json.Marshal(conds)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// PlanQuery plans against the categorical levels present in records
func (p *Planner) PlanQuery(query string, reg *schema.Registry, records []employee.ScoredRecord) string {
	return p.Plan(query, reg, Levels(records, reg))
}

func matchComparison(query, attr string) (string, bool) {
	for _, name := range spellings(attr) {
		for _, cp := range comparatorPhrases {
			re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\s+(?:is\s+|of\s+)?` +
				regexp.QuoteMeta(cp.phrase) + `\s+(-?\d+(?:\.\d+)?)(\s*%)?`)
			m := re.FindStringSubmatch(query)
			if m == nil {
				continue
			}
			n, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if m[2] != "" {
				n /= 100
			}
			return cp.op + strconv.FormatFloat(n, 'f', -1, 64), true
		}
	}
	return "", false
}

// spellings lists the ways an attribute may be written in a query, longest first
func spellings(attr string) []string {
	lower := strings.ToLower(attr)
	set := map[string]bool{
		lower:                               true,
		strings.ReplaceAll(lower, "_", " "): true,
	}
	for _, a := range attributeAliases[attr] {
		set[a] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// matchLevel finds the longest categorical level mentioned as a whole word
func matchLevel(query string, levels []string) (string, bool) {
	best := ""
	for _, level := range levels {
		if len(level) <= len(best) {
			continue
		}
		re := regexp.MustCompile(`(?i)(^|[^\pL\pN_])` + regexp.QuoteMeta(level) + `($|[^\pL\pN_])`)
		if re.MatchString(query) {
			best = level
		}
	}
	return best, best != ""
}

// Levels collects the distinct values of the non-derived categorical attributes,
// in first-seen order.
func Levels(records []employee.ScoredRecord, reg *schema.Registry) map[string][]string {
	out := make(map[string][]string)
	for _, a := range reg.Attributes() {
		if a.Kind != schema.KindCategorical || a.Derived {
			continue
		}
		seen := make(map[string]bool)
		for _, r := range records {
			v := strings.TrimSpace(r.Attributes[a.Name])
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out[a.Name] = append(out[a.Name], v)
		}
	}
	return out
}
