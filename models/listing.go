package models

import (
	"strings"
	"time"
)

// RawListing is the inter-stage record produced by providers and enriched by
// the orchestrator. Every scalar field is optional; nil means "not reported".
type RawListing struct {
	Source          *string  `json:"source,omitempty"`
	SourceListingID *string  `json:"source_listing_id,omitempty"`
	ListingID       *string  `json:"listing_id,omitempty"`
	URL             *string  `json:"url,omitempty"`
	Address         *string  `json:"address,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	Beds            *float64 `json:"beds,omitempty"`
	Baths           *float64 `json:"baths,omitempty"`
	Sqft            *float64 `json:"sqft,omitempty"`
	Lat             *float64 `json:"lat,omitempty"`
	Lon             *float64 `json:"lon,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Photos          []string `json:"photos,omitempty"`
	YearBuilt       *int     `json:"year_built,omitempty"`
	ListingStatus   *string  `json:"listing_status,omitempty"`
	Neighborhood    *string  `json:"neighborhood,omitempty"`
	DaysOnMarket    *int     `json:"days_on_market,omitempty"`
	PropertyType    *string  `json:"property_type,omitempty"`
	HOAFee          *float64 `json:"hoa_fee,omitempty"`
	ParkingSpaces   *int     `json:"parking_spaces,omitempty"`

	// ExplicitFlags are set by providers from structured amenity data and are
	// never cleared by text-derived flags.
	ExplicitFlags Flags `json:"explicit_flags"`

	// Derived by the orchestrator after merge.
	Flags          *Flags             `json:"flags,omitempty"`
	Tranquility    *TranquilityResult `json:"tranquility,omitempty"`
	LightPotential *LightPotential    `json:"light_potential,omitempty"`
}

// genericBoroughs are provider-level neighborhood values that must not
// replace a more specific one.
var genericBoroughs = map[string]struct{}{
	"brooklyn":      {},
	"manhattan":     {},
	"new york":      {},
	"queens":        {},
	"bronx":         {},
	"staten island": {},
}

// IsGenericNeighborhood reports whether name is a borough/city level value.
func IsGenericNeighborhood(name string) bool {
	_, ok := genericBoroughs[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Merge overlays detail onto the summary r field by field: non-nil detail
// values win, except a generic borough neighborhood never replaces a
// specific summary value. Detail photos replace summary photos when present.
// The receiver is not modified.
func (r *RawListing) Merge(detail *RawListing) *RawListing {
	out := *r
	out.Photos = append([]string(nil), r.Photos...)
	if detail == nil {
		return &out
	}

	out.Source = pickString(detail.Source, r.Source)
	out.SourceListingID = pickString(detail.SourceListingID, r.SourceListingID)
	out.ListingID = pickString(detail.ListingID, r.ListingID)
	out.URL = pickString(detail.URL, r.URL)
	out.Address = pickString(detail.Address, r.Address)
	out.Price = pickFloat(detail.Price, r.Price)
	out.Beds = pickFloat(detail.Beds, r.Beds)
	out.Baths = pickFloat(detail.Baths, r.Baths)
	out.Sqft = pickFloat(detail.Sqft, r.Sqft)
	out.Lat = pickFloat(detail.Lat, r.Lat)
	out.Lon = pickFloat(detail.Lon, r.Lon)
	out.Description = pickString(detail.Description, r.Description)
	out.YearBuilt = pickInt(detail.YearBuilt, r.YearBuilt)
	out.ListingStatus = pickString(detail.ListingStatus, r.ListingStatus)
	out.DaysOnMarket = pickInt(detail.DaysOnMarket, r.DaysOnMarket)
	out.PropertyType = pickString(detail.PropertyType, r.PropertyType)
	out.HOAFee = pickFloat(detail.HOAFee, r.HOAFee)
	out.ParkingSpaces = pickInt(detail.ParkingSpaces, r.ParkingSpaces)

	out.Neighborhood = pickString(detail.Neighborhood, r.Neighborhood)
	if detail.Neighborhood != nil && IsGenericNeighborhood(*detail.Neighborhood) &&
		r.Neighborhood != nil && strings.TrimSpace(*r.Neighborhood) != "" {
		out.Neighborhood = r.Neighborhood
	}

	if len(detail.Photos) > 0 {
		out.Photos = append([]string(nil), detail.Photos...)
	}

	out.ExplicitFlags = r.ExplicitFlags.Or(detail.ExplicitFlags)
	return &out
}

// Identifier returns the stable id used for detail lookups and dedup:
// source_listing_id, then listing_id, then url.
func (r *RawListing) Identifier() string {
	for _, v := range []*string{r.SourceListingID, r.ListingID, r.URL} {
		if v != nil && strings.TrimSpace(*v) != "" {
			return strings.TrimSpace(*v)
		}
	}
	return ""
}

// Str returns the value of an optional string or "".
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func pickString(newer, older *string) *string {
	if newer != nil {
		return newer
	}
	return older
}

func pickFloat(newer, older *float64) *float64 {
	if newer != nil {
		return newer
	}
	return older
}

func pickInt(newer, older *int) *int {
	if newer != nil {
		return newer
	}
	return older
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Listing is the canonical stored property record.
type Listing struct {
	ID              int64     `json:"id"`
	ListingID       string    `json:"listing_id,omitempty"`
	Source          string    `json:"source"`
	SourceListingID string    `json:"source_listing_id"`
	SourcesSeen     []string  `json:"sources_seen"`
	LastSeenAt      time.Time `json:"last_seen_at"`

	Address       string   `json:"address"`
	Price         *float64 `json:"price,omitempty"`
	Beds          *float64 `json:"beds,omitempty"`
	Baths         *float64 `json:"baths,omitempty"`
	Sqft          *float64 `json:"sqft,omitempty"`
	PropertyType  string   `json:"property_type,omitempty"`
	URL           string   `json:"url"`
	Lat           *float64 `json:"lat,omitempty"`
	Lon           *float64 `json:"lon,omitempty"`
	YearBuilt     *int     `json:"year_built,omitempty"`
	ListingStatus string   `json:"listing_status,omitempty"`
	Status        string   `json:"status"`
	Description   string   `json:"description,omitempty"`
	DaysOnMarket  *int     `json:"days_on_market,omitempty"`
	Neighborhood  string   `json:"neighborhood,omitempty"`
	HOAFee        *float64 `json:"hoa_fee,omitempty"`
	ParkingSpaces *int     `json:"parking_spaces,omitempty"`
	Photos        []string `json:"photos"`

	Flags Flags `json:"flags"`

	PriceReductionAmount *float64   `json:"price_reduction_amount,omitempty"`
	PriceReductionDate   *time.Time `json:"price_reduction_date,omitempty"`

	TranquilityScore   *int                      `json:"tranquility_score,omitempty"`
	TranquilityFactors map[string]Factor         `json:"tranquility_factors,omitempty"`
	LightScore         *int                      `json:"light_potential_score,omitempty"`
	LightSignals       []string                  `json:"light_potential_signals,omitempty"`
	VisualQuality      *float64                  `json:"visual_quality_score,omitempty"`
	VisualAssessment   *VisualAssessment         `json:"visual_assessment,omitempty"`
	PhotosHash         string                    `json:"photos_hash,omitempty"`
	MatchScore         *float64                  `json:"match_score,omitempty"`
	FeatureScores      map[string]CriterionScore `json:"feature_scores,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// VisualAssessment is the cached output of the photo vision job. The core
// treats it as opaque input.
type VisualAssessment struct {
	Dimensions map[string]float64 `json:"dimensions,omitempty"`
	RedFlags   []string           `json:"red_flags,omitempty"`
	Highlights []string           `json:"highlights,omitempty"`
	Confidence string             `json:"confidence,omitempty"`
}

// LightPotential is the heuristic natural-light estimate.
type LightPotential struct {
	Score      int      `json:"score"`
	Signals    []string `json:"signals"`
	Confidence string   `json:"confidence"`
}

// HasSource reports whether key is already in SourcesSeen.
func (l *Listing) HasSource(key string) bool {
	for _, s := range l.SourcesSeen {
		if s == key {
			return true
		}
	}
	return false
}
