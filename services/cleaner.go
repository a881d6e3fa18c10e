package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"homescout/models"
	"homescout/utils"
)

var (
	// priceRegexp captures a numeric amount with an optional k/m suffix
	priceRegexp = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([kKmM])?\b`)
	// numberRegexp captures the first plain number
	numberRegexp = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// Cleaner normalises provider records before dedup and merge.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean trims and collapses text fields, blanks become nil, source and
// status are lowercased, and photo lists lose empties and duplicates.
// Records with no identifier at all cannot be deduplicated and are dropped.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.RawListing {
	result := make([]*models.RawListing, 0, len(raw))

	for _, r := range raw {
		if r == nil {
			continue
		}
		out := *r
		out.Source = lowerOpt(out.Source)
		out.SourceListingID = textOpt(out.SourceListingID)
		out.ListingID = textOpt(out.ListingID)
		out.URL = textOpt(out.URL)
		out.Address = textOpt(out.Address)
		out.Description = textOpt(out.Description)
		out.Neighborhood = textOpt(out.Neighborhood)
		out.ListingStatus = lowerOpt(out.ListingStatus)
		out.PropertyType = textOpt(out.PropertyType)
		out.Photos = cleanPhotos(r.Photos)
		out.Price = positiveOpt(out.Price)
		out.HOAFee = positiveOpt(out.HOAFee)

		if out.Identifier() == "" {
			c.logger.Warn("[cleaner] Dropping record with no id or url: %s", models.Str(out.Address))
			continue
		}
		result = append(result, &out)
	}

	if dropped := len(raw) - len(result); dropped > 0 {
		c.logger.Info("[cleaner] Cleaned %d → %d records (dropped %d)", len(raw), len(result), dropped)
	}
	return result
}

// ParsePrice extracts a dollar amount from display text such as
// "$1,250,000", "$3.2M" or "950K". Nil when nothing parses or the amount is
// not positive.
func ParsePrice(raw string) *float64 {
	m := priceRegexp.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || val <= 0 {
		return nil
	}
	switch strings.ToLower(m[2]) {
	case "k":
		val *= 1_000
	case "m":
		val *= 1_000_000
	}
	return &val
}

// ParseNumber extracts the first number from text like "2.5 ba" or
// "1,850 sqft".
func ParseNumber(raw string) *float64 {
	match := numberRegexp.FindString(raw)
	if match == "" {
		return nil
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &val
}

// ParseInt is ParseNumber truncated to an int.
func ParseInt(raw string) *int {
	f := ParseNumber(raw)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

func textOpt(p *string) *string {
	if p == nil {
		return nil
	}
	s := normaliseText(*p)
	if s == "" {
		return nil
	}
	return &s
}

func lowerOpt(p *string) *string {
	s := textOpt(p)
	if s == nil {
		return nil
	}
	lower := strings.ToLower(*s)
	return &lower
}

func positiveOpt(p *float64) *float64 {
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}

func cleanPhotos(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
