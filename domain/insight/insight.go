package insight

import (
	"regexp"
	"strings"
)

// Unavailable is the diagnostic text of a degraded insight.
const Unavailable = "Analysis unavailable"

// Label names one of the three fixed insight sections.
type Label string

const (
	LabelDiagnostic   Label = "diagnostic"
	LabelPrescriptive Label = "prescriptive"
	LabelPreventive   Label = "preventive"
)

// Labels lists the sections in display order.
var Labels = []Label{LabelDiagnostic, LabelPrescriptive, LabelPreventive}

// Title returns the label as written in model output, e.g. "Diagnostic".
func (l Label) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}

// Record is the fixed three-field retention insight for one employee.
// All keys are always serialised, empty when the model gave nothing usable.
type Record struct {
	Diagnostic   string `json:"diagnostic"`
	Prescriptive string `json:"prescriptive"`
	Preventive   string `json:"preventive"`
}

// Degraded returns the placeholder record used when the model call fails.
func Degraded() Record {
	return Record{Diagnostic: Unavailable}
}

// Get returns the text of one section.
func (r Record) Get(l Label) string {
	switch l {
	case LabelDiagnostic:
		return r.Diagnostic
	case LabelPrescriptive:
		return r.Prescriptive
	case LabelPreventive:
		return r.Preventive
	}
	return ""
}

func (r *Record) set(l Label, text string) {
	switch l {
	case LabelDiagnostic:
		r.Diagnostic = text
	case LabelPrescriptive:
		r.Prescriptive = text
	case LabelPreventive:
		r.Preventive = text
	}
}

// IsEmpty reports whether no section was recovered.
func (r Record) IsEmpty() bool {
	return r.Diagnostic == "" && r.Prescriptive == "" && r.Preventive == ""
}

// labelPattern matches a section label at the start of a line. List markers,
// headings and emphasis around the label are tolerated, as is an "Insight" suffix.
var labelPattern = regexp.MustCompile(`(?im)^[\t >#*_+\-]*(?:\d+[.)][\t ]*)?[*_]*[\t ]*(diagnostic|prescriptive|preventive)(?:[\t ]+insight)?[\t ]*[*_]*[\t ]*:[*_]*`)

// Parse recovers the three sections from free model text. Each section spans
// from its label to the next recognised label or the end of the text, with
// whitespace collapsed. The first occurrence of a label wins; a missing label
// leaves its field empty.
func Parse(text string) Record {
	var rec Record
	matches := labelPattern.FindAllStringSubmatchIndex(text, -1)
	seen := make(map[Label]bool, len(Labels))

	for i, m := range matches {
		label := Label(strings.ToLower(text[m[2]:m[3]]))
		if seen[label] {
			continue
		}
		seen[label] = true

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		rec.set(label, collapse(text[m[1]:end]))
	}
	return rec
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
