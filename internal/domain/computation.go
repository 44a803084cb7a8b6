package domain

// ComputationResult is the output of a closed-form formula.
type ComputationResult struct {
	Formula       string   `json:"formula"`
	Query         string   `json:"query"`
	Result        string   `json:"result"`
	NumericResult *float64 `json:"numeric_result,omitempty"`
	GraphSVG      string   `json:"graph_svg,omitempty"`
}

// Value returns the numeric result, or 0 when none was produced.
func (c ComputationResult) Value() float64 {
	if c.NumericResult == nil {
		return 0
	}
	return *c.NumericResult
}
