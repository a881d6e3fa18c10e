package models

// Factor describes the nearest modelled noise source of one kind.
type Factor struct {
	Name      string  `json:"name"`
	DistanceM float64 `json:"distance_m"`
}

// TranquilityResult is the geospatial quietness estimate for a coordinate.
// Score is nil outside every covered metro.
type TranquilityResult struct {
	Score      *int              `json:"score"`
	Factors    map[string]Factor `json:"factors"`
	Warnings   []string          `json:"warnings"`
	Confidence string            `json:"confidence"`
}
