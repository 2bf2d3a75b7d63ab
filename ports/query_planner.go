package ports

import (
	"attrition/domain/employee"
	"attrition/domain/schema"
)

// QueryPlanner turns a query into a JSON filter object without a language model.
// Its output is untrusted and goes through the same validation as model output.
type QueryPlanner interface {
	PlanQuery(query string, reg *schema.Registry, records []employee.ScoredRecord) string
}
