package model

// Tender describes an upcoming tender being evaluated.
type Tender struct {
	ID          string  `json:"id" yaml:"id"`
	Title       string  `json:"title" yaml:"title"`
	Sector      string  `json:"sector" yaml:"sector"`
	BuyerName   string  `json:"procuring_entity" yaml:"procuring_entity"`
	ValueAmount float64 `json:"value_amount,omitempty" yaml:"value_amount"`
}

// Factor is one weighted component of a prediction score.
type Factor struct {
	Name         string  `json:"name"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// TPSResult is the outcome of scoring a tender. TPS is nil when there is not
// enough award history to support a number.
type TPSResult struct {
	TPS        *int     `json:"tps"`
	Label      string   `json:"label,omitempty"`
	Action     string   `json:"action,omitempty"`
	Message    string   `json:"message,omitempty"`
	DataPoints int      `json:"data_points"`
	Factors    []Factor `json:"factor_scores,omitempty"`
	Insight    string   `json:"top_insight,omitempty"`
}

// Factor returns the named factor from the breakdown.
func (r *TPSResult) Factor(name string) (Factor, bool) {
	for _, f := range r.Factors {
		if f.Name == name {
			return f, true
		}
	}
	return Factor{}, false
}
