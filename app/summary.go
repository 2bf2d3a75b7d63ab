package app

import (
	"sort"
	"strings"

	"attrition/domain/employee"

	"github.com/montanaflynn/stats"
)

// DepartmentSummary aggregates one department
type DepartmentSummary struct {
	Department     string  `json:"department"`
	Employees      int     `json:"employees"`
	AtRisk         int     `json:"at_risk"`
	MeanRisk       float64 `json:"mean_risk"`
	MeanEngagement float64 `json:"mean_engagement"`
}

// Summary holds the organisation-level dashboard figures for a scored batch
type Summary struct {
	TotalEmployees int                 `json:"total_employees"`
	AtRisk         int                 `json:"at_risk"`
	AtRiskShare    float64             `json:"at_risk_share"`
	RiskThreshold  float64             `json:"risk_threshold"`
	MeanRisk       float64             `json:"mean_risk"`
	MedianRisk     float64             `json:"median_risk"`
	P90Risk        float64             `json:"p90_risk"`
	MeanEngagement float64             `json:"mean_engagement"`
	MeanTenure     float64             `json:"mean_tenure"`
	Departments    []DepartmentSummary `json:"departments"`
}

// Summarize computes dashboard statistics. Numeric attributes that are blank or
// non-numeric are left out of their averages; a missing department groups under "Unknown".
func Summarize(records []employee.ScoredRecord) Summary {
	s := Summary{TotalEmployees: len(records), RiskThreshold: employee.RiskThreshold}
	if len(records) == 0 {
		return s
	}

	var (
		risk       = make(stats.Float64Data, 0, len(records))
		engagement stats.Float64Data
		tenure     stats.Float64Data
		byDept     = make(map[string]*deptAccumulator)
		order      []string
	)

	for _, r := range records {
		risk = append(risk, r.Probability)
		if r.Flag {
			s.AtRisk++
		}
		if v, ok := r.Attributes.Float(employee.AttrEngagementScore); ok {
			engagement = append(engagement, v)
		}
		if v, ok := r.Attributes.Float(employee.AttrTenure); ok {
			tenure = append(tenure, v)
		}

		dept := strings.TrimSpace(r.Attributes[employee.AttrDepartment])
		if dept == "" {
			dept = "Unknown"
		}
		acc, ok := byDept[dept]
		if !ok {
			acc = &deptAccumulator{}
			byDept[dept] = acc
			order = append(order, dept)
		}
		acc.add(r)
	}

	s.AtRiskShare = float64(s.AtRisk) / float64(len(records))
	s.MeanRisk = mean(risk)
	s.MedianRisk, _ = risk.Median()
	s.P90Risk, _ = risk.Percentile(90)
	s.MeanEngagement = mean(engagement)
	s.MeanTenure = mean(tenure)

	for _, name := range order {
		acc := byDept[name]
		s.Departments = append(s.Departments, DepartmentSummary{
			Department:     name,
			Employees:      len(acc.risk),
			AtRisk:         acc.atRisk,
			MeanRisk:       mean(acc.risk),
			MeanEngagement: mean(acc.engagement),
		})
	}
	sort.SliceStable(s.Departments, func(i, j int) bool {
		return s.Departments[i].MeanRisk > s.Departments[j].MeanRisk
	})

	return s
}

type deptAccumulator struct {
	risk       stats.Float64Data
	engagement stats.Float64Data
	atRisk     int
}

func (a *deptAccumulator) add(r employee.ScoredRecord) {
	a.risk = append(a.risk, r.Probability)
	if r.Flag {
		a.atRisk++
	}
	if v, ok := r.Attributes.Float(employee.AttrEngagementScore); ok {
		a.engagement = append(a.engagement, v)
	}
}

// mean returns 0 for empty input instead of stats.EmptyInputErr
func mean(data stats.Float64Data) float64 {
	m, err := data.Mean()
	if err != nil {
		return 0
	}
	return m
}
