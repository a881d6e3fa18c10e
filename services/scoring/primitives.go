package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Labels are the human-facing names of the scored criteria.
var Labels = map[string]string{
	"natural_light":       "Natural light",
	"outdoor_space":       "Outdoor space",
	"character_soul":      "Character & soul",
	"kitchen_quality":     "Kitchen quality",
	"location_quiet":      "Quiet location",
	"office_space":        "Office space",
	"indoor_outdoor_flow": "Indoor-outdoor flow",
	"high_ceilings":       "High ceilings",
	"layout_intelligence": "Layout intelligence",
	"move_in_ready":       "Move-in ready",
	"views":               "Views",
	"in_unit_laundry":     "In-unit laundry",
	"parking":             "Parking",
	"central_hvac":        "Central HVAC",
	"gas_stove":           "Gas stove",
	"dishwasher":          "Dishwasher",
	"storage":             "Storage",
	"pet_friendly":        "Pet friendly",
	"gym_fitness":         "Gym / fitness",
	"building_quality":    "Building quality",
	"doorman_concierge":   "Doorman / concierge",
}

// Label returns the display label for a criterion.
func Label(criterion string) string {
	if l, ok := Labels[criterion]; ok {
		return l
	}
	return strings.ReplaceAll(criterion, "_", " ")
}

// Tier thresholds are inclusive lower bounds.
const (
	TierExceptional = "Exceptional"
	TierStrong      = "Strong"
	TierInteresting = "Interesting"
	TierPass        = "Pass"
)

// Tier buckets a score percentage.
func Tier(percent float64) string {
	switch {
	case percent >= 80:
		return TierExceptional
	case percent >= 70:
		return TierStrong
	case percent >= 60:
		return TierInteresting
	default:
		return TierPass
	}
}

// maxHits is the keyword hit count that earns full credit.
const maxHits = 4

// FromHits converts a hit count into a 0..10 sub-score.
func FromHits(hits float64) float64 {
	if hits <= 0 {
		return 0
	}
	return math.Min(10, hits/maxHits*10)
}

// Blend averages the available components.
func Blend(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SoftCapPenalty grows linearly from 0 at the soft cap to 10 at the hard
// cap. A missing hard cap is treated as equal to the soft cap.
func SoftCapPenalty(price, soft, hard *float64) float64 {
	if price == nil || soft == nil {
		return 0
	}
	h := *soft
	if hard != nil {
		h = *hard
	}
	p := *price
	switch {
	case p <= *soft:
		return 0
	case p >= h:
		return 10
	}
	span := h - *soft
	if span <= 0 {
		return 10
	}
	return 10 * (p - *soft) / span
}

// HOAPenalty is 0 up to $800/mo, 5 up to $1000/mo and 10 above.
func HOAPenalty(fee *float64) float64 {
	if fee == nil {
		return 0
	}
	switch {
	case *fee <= 800:
		return 0
	case *fee <= 1000:
		return 5
	default:
		return 10
	}
}

// FormatCurrency renders a price compactly ("$1.25M", "$950,000").
func FormatCurrency(v float64) string {
	if v >= 1_000_000 {
		s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v/1_000_000), "0"), ".")
		return "$" + s + "M"
	}
	return "$" + withCommas(int64(math.Round(v)))
}

func withCommas(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
