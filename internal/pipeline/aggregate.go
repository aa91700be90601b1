package pipeline

import "github.com/clarusrisk/diligence-cli/internal/model"

// severityDeduction is the confidence cost of each result status. Statuses
// outside the map (including error) cost the unknown deduction.
var severityDeduction = map[model.Status]int{
	model.StatusOK:       0,
	model.StatusUnknown:  5,
	model.StatusWarning:  10,
	model.StatusCritical: 100,
}

const defaultDeduction = 5

// AggregateStatus reduces per-adapter results to one overall status: the most
// severe status present. An empty result set is unknown.
func AggregateStatus(results []model.CheckResult) model.Status {
	status := model.StatusUnknown
	for i, r := range results {
		if i == 0 {
			status = r.Status
			continue
		}
		status = model.Worse(status, r.Status)
	}
	return status
}

// ConfidenceScore computes the 0-100 confidence score: 100 minus the summed
// deductions, with the total deduction capped at 100 before subtraction.
func ConfidenceScore(results []model.CheckResult) int {
	total := 0
	for _, r := range results {
		d, ok := severityDeduction[r.Status]
		if !ok {
			d = defaultDeduction
		}
		total += d
	}
	if total > 100 {
		total = 100
	}
	return 100 - total
}
