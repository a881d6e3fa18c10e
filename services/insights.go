package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"homescout/models"
	"homescout/services/scoring"
	"homescout/utils"
)

// TierUnscored counts listings with no cached match score.
const TierUnscored = "Unscored"

const topMatchesToShow = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate builds the end-of-run report. run may be nil when no ingestion
// ran; tiers come from each listing's cached match score.
func (s *InsightService) Generate(run *models.RunStats, listings []*models.Listing, matches scoring.MatchReport) *models.InsightReport {
	report := &models.InsightReport{
		Sources:                map[string]models.SourceStats{},
		ListingsBySource:       make(map[string]int),
		ListingsByNeighborhood: make(map[string]int),
		TierCounts:             make(map[string]int),
		MatchSummary:           matches.Summary,
	}
	if run != nil {
		report.RunID = run.ID
		report.DetailCalls = run.DetailCalls
		report.LastError = run.LastError
		for k, v := range run.Sources {
			report.Sources[k] = v
		}
		if !run.EndedAt.IsZero() {
			report.Duration = run.EndedAt.Sub(run.StartedAt)
		}
	}

	report.TotalListings = len(listings)
	var prices []float64
	for _, l := range listings {
		if l.Source != "" {
			report.ListingsBySource[l.Source]++
		}
		if l.Neighborhood != "" {
			report.ListingsByNeighborhood[l.Neighborhood]++
		}
		if l.MatchScore != nil {
			report.TierCounts[scoring.Tier(*l.MatchScore)]++
		} else {
			report.TierCounts[TierUnscored]++
		}
		if l.Price != nil && *l.Price > 0 {
			prices = append(prices, *l.Price)
			if report.MostExpensive == nil || *l.Price > *report.MostExpensive.Price {
				report.MostExpensive = l
			}
		}
	}

	if len(prices) > 0 {
		sort.Float64s(prices)
		var total float64
		for _, p := range prices {
			total += p
		}
		report.AveragePrice = round2(total / float64(len(prices)))
		report.MinPrice = round2(prices[0])
		report.MaxPrice = round2(prices[len(prices)-1])
		report.MedianPrice = round2(median(prices))
	}

	for i, m := range matches.Matches {
		if i == topMatchesToShow {
			break
		}
		report.TopMatches = append(report.TopMatches, models.InsightMatch{
			ListingID: m.Listing.ID,
			Address:   m.Listing.Address,
			Price:     m.Listing.Price,
			Percent:   m.Result.Percent,
			Tier:      m.Result.Tier,
			Narrative: m.Narrative,
		})
	}
	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🏠 HOMESCOUT RUN REPORT\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Ingestion\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.RunID != "" {
		fmt.Printf("  Run          : %s (%s)\n", r.RunID, r.Duration.Round(time.Millisecond))
		fmt.Printf("  Detail calls : \033[1m%d\033[0m\n", r.DetailCalls)
		for _, name := range sortedKeys(r.Sources) {
			st := r.Sources[name]
			fmt.Printf("  %-12s : %d summaries, %d details, %d upserts\n", name, st.Summaries, st.DetailCalls, st.Upserts)
			if st.Error != "" {
				fmt.Printf("  %-12s   \033[1;31m%s\033[0m\n", "", truncate(st.Error, 44))
			}
		}
	} else {
		fmt.Printf("  No ingestion run\n")
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Inventory\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Total listings : \033[1m%d\033[0m\n", r.TotalListings)
	for _, src := range sortedKeys(r.ListingsBySource) {
		fmt.Printf("  %-14s : %d\n", src, r.ListingsBySource[src])
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Price Statistics\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Printf("  Average : \033[1;32m%s\033[0m\n", scoring.FormatCurrency(r.AveragePrice))
		fmt.Printf("  Median  : \033[1;32m%s\033[0m\n", scoring.FormatCurrency(r.MedianPrice))
		fmt.Printf("  Minimum : \033[1;32m%s\033[0m\n", scoring.FormatCurrency(r.MinPrice))
		fmt.Printf("  Maximum : \033[1;32m%s\033[0m\n", scoring.FormatCurrency(r.MaxPrice))
	} else {
		fmt.Printf("  No price data available\n")
	}
	if r.MostExpensive != nil {
		fmt.Printf("  Priciest: %s\n", truncate(r.MostExpensive.Address, 50))
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Tier Distribution\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for _, tier := range []string{scoring.TierExceptional, scoring.TierStrong, scoring.TierInteresting, scoring.TierPass, TierUnscored} {
		n := r.TierCounts[tier]
		if n == 0 {
			continue
		}
		fmt.Printf("  %-12s %s (%d)\n", tier, strings.Repeat("█", n), n)
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Top Matches\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.MatchSummary != "" {
		fmt.Printf("  %s\n", r.MatchSummary)
	}
	if len(r.TopMatches) == 0 {
		fmt.Printf("  No listings matched\n")
	}
	for i, m := range r.TopMatches {
		fmt.Printf("  \033[1m%d.\033[0m %-38s \033[1;32m%5.1f%%\033[0m %s\n",
			i+1, truncate(m.Address, 38), m.Percent, m.Tier)
		if m.Narrative != "" {
			fmt.Printf("     %s\n", truncate(m.Narrative, 70))
		}
	}

	if len(r.ListingsByNeighborhood) > 0 {
		fmt.Println()
		fmt.Printf("\033[1;33m  Listings by Neighborhood\033[0m\n")
		fmt.Printf("  %s\n", thin)
		type hoodCount struct {
			name  string
			count int
		}
		var hoods []hoodCount
		for name, n := range r.ListingsByNeighborhood {
			hoods = append(hoods, hoodCount{name, n})
		}
		sort.Slice(hoods, func(i, j int) bool {
			if hoods[i].count != hoods[j].count {
				return hoods[i].count > hoods[j].count
			}
			return hoods[i].name < hoods[j].name
		})
		for _, h := range hoods {
			fmt.Printf("  %-30s %s (%d)\n", truncate(h.name, 28), strings.Repeat("█", h.count), h.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
