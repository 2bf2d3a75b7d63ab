package ports

import "attrition/domain/employee"

// Predictor is a trained attrition classifier.
type Predictor interface {
	// PredictProbability returns the probability that the employee leaves, in [0,1].
	PredictProbability(rec employee.Record) (float64, error)
	// RequiredAttributes lists the record attributes the model reads.
	RequiredAttributes() []string
}

// ModelSource yields the predictor new batches are scored with. It may return nil
// when no model is loaded.
type ModelSource interface {
	Predictor() Predictor
}
