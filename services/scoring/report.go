package scoring

import (
	"fmt"
	"sort"
	"strings"

	"homescout/models"
)

// Match is one ranked result.
type Match struct {
	Listing   *models.Listing
	Result    models.ScoreResult
	Narrative string
}

// MatchReport is the outcome of a ranked query.
type MatchReport struct {
	Analyzed int
	Matches  []Match
	Summary  string
}

// FindMatches scores every listing and returns those passing the gates with
// at least minPercent, best first. limit <= 0 means no limit.
func (e *Engine) FindMatches(listings []*models.Listing, minPercent float64, limit int) MatchReport {
	report := MatchReport{Analyzed: len(listings)}
	for _, l := range listings {
		ok, res := e.ScoreListing(l, minPercent)
		if !ok {
			continue
		}
		report.Matches = append(report.Matches, Match{Listing: l, Result: res, Narrative: Narrative(l, res)})
	}

	sort.SliceStable(report.Matches, func(i, j int) bool {
		a, b := report.Matches[i], report.Matches[j]
		if a.Result.Percent != b.Result.Percent {
			return a.Result.Percent > b.Result.Percent
		}
		return a.Listing.ID < b.Listing.ID
	})
	if limit > 0 && len(report.Matches) > limit {
		report.Matches = report.Matches[:limit]
	}
	report.Summary = SkipSummary(report.Analyzed, len(report.Matches), e.ActiveFilters())
	return report
}

// ActiveFilters describes the configured hard filters.
func (e *Engine) ActiveFilters() []string {
	hf := e.crit.HardFilters
	var out []string
	if hf.PriceMax != nil {
		out = append(out, "price under "+FormatCurrency(*hf.PriceMax))
	}
	if hf.BedroomsMin != nil {
		out = append(out, fmt.Sprintf("%g+ beds", *hf.BedroomsMin))
	}
	if hf.BathroomsMin != nil {
		out = append(out, fmt.Sprintf("%g+ baths", *hf.BathroomsMin))
	}
	if hf.SqftMin != nil {
		out = append(out, fmt.Sprintf("%s+ sqft", withCommas(int64(*hf.SqftMin))))
	}
	if len(hf.Neighborhoods) > 0 {
		out = append(out, strings.Join(hf.Neighborhoods, "/"))
	}
	return out
}

// SkipSummary reports how much was filtered out, e.g.
// "Analyzed 847 listings. Showing 12 that matter."
func SkipSummary(analyzed, shown int, filters []string) string {
	if analyzed-shown <= 0 {
		return fmt.Sprintf("Showing all %d matching listings.", shown)
	}
	summary := fmt.Sprintf("Analyzed %s listings. Showing %d that matter.", withCommas(int64(analyzed)), shown)
	if len(filters) > 0 {
		n := len(filters)
		if n > 3 {
			n = 3
		}
		summary += " Filtered by: " + strings.Join(filters[:n], ", ")
		if len(filters) > 3 {
			summary += fmt.Sprintf(" +%d more", len(filters)-3)
		}
	}
	return summary
}

// Narrative explains a match in one or two sentences.
func Narrative(l *models.Listing, res models.ScoreResult) string {
	if len(res.Breakdown) == 0 {
		return "Meets your basic requirements."
	}
	top := make([]string, 0, len(res.TopPositives))
	for _, p := range res.TopPositives {
		top = append(top, strings.ToLower(p))
	}

	var narrative string
	switch pct := res.Percent; {
	case pct >= 85:
		switch len(top) {
		case 0:
			narrative = "Excellent match across your criteria."
		case 1:
			narrative = fmt.Sprintf("Excellent match: standout %s.", top[0])
		default:
			narrative = fmt.Sprintf("Excellent match: exceptional %s and %s.", top[0], top[1])
		}
	case pct >= 70:
		switch len(top) {
		case 0:
			narrative = "Strong match on your key requirements."
		case 1:
			narrative = fmt.Sprintf("Strong match with notable %s.", top[0])
		default:
			narrative = fmt.Sprintf("Strong match: great %s with solid %s.", top[0], top[1])
		}
	case pct >= 55:
		if len(top) > 0 {
			narrative = fmt.Sprintf("Good fit with %s.", top[0])
		} else {
			narrative = "Good fit for your criteria."
		}
	case pct >= 40:
		if len(top) > 0 {
			narrative = fmt.Sprintf("Worth considering: has %s.", top[0])
		} else {
			narrative = "Worth a look if other priorities are flexible."
		}
	default:
		narrative = "Meets some requirements but missing key features."
	}

	var callouts []string
	if l.TranquilityScore != nil && *l.TranquilityScore >= 80 {
		callouts = append(callouts, "Very quiet location.")
	}
	if l.LightScore != nil {
		switch {
		case *l.LightScore >= 75:
			callouts = append(callouts, "Excellent light potential.")
		case *l.LightScore <= 35:
			callouts = append(callouts, "Limited natural light expected.")
		}
	}
	if l.VisualQuality != nil {
		switch v := *l.VisualQuality; {
		case v >= 85:
			callouts = append(callouts, "Beautifully maintained with modern finishes.")
		case v >= 70:
			callouts = append(callouts, "Well-presented property.")
		case v <= 45:
			callouts = append(callouts, "May need cosmetic updates.")
		}
	}
	if l.DaysOnMarket != nil && *l.DaysOnMarket <= 7 {
		callouts = append(callouts, fmt.Sprintf("New listing (%d days on market).", *l.DaysOnMarket))
	}
	if len(callouts) > 0 {
		narrative += " " + strings.Join(callouts, " ")
	}
	return narrative
}
