package models

// CriterionScore is one criterion's contribution to a match score.
type CriterionScore struct {
	Score        float64  `json:"score"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
	Evidence     []string `json:"evidence,omitempty"`
}

// SignalHits are the NLP group hits found in a description.
type SignalHits struct {
	Positive map[string][]string `json:"positive_hits"`
	Negative map[string][]string `json:"negative_hits"`
}

// ScoreResult is the explainable outcome of scoring one listing.
type ScoreResult struct {
	Matches        bool                      `json:"matches"`
	GateFailure    string                    `json:"gate_failure,omitempty"`
	Points         float64                   `json:"score_points"`
	Possible       float64                   `json:"score_possible"`
	Percent        float64                   `json:"score_percent"`
	Tier           string                    `json:"tier"`
	Breakdown      map[string]CriterionScore `json:"feature_scores,omitempty"`
	SoftCapPenalty float64                   `json:"soft_cap_penalty"`
	HOAPenalty     float64                   `json:"hoa_penalty"`
	TopPositives   []string                  `json:"top_positives"`
	Tradeoff       string                    `json:"tradeoff,omitempty"`
	Signals        SignalHits                `json:"signals"`
}
