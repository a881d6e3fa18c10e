// Package neighborhoods canonicalises neighborhood names and resolves them
// from coordinates when a provider reports none.
package neighborhoods

import (
	"strings"

	"homescout/services/geo"
	"homescout/services/signals"
)

// Area is a named neighborhood with its coordinate box and name aliases.
type Area struct {
	Name    string
	Box     geo.BoundingBox
	Aliases []string
}

// Focus lists the neighborhoods the resolver knows about.
var Focus = []Area{
	{
		Name:    "Dolores Heights",
		Box:     geo.BoundingBox{LatMin: 37.7540, LatMax: 37.7665, LonMin: -122.4385, LonMax: -122.4245},
		Aliases: []string{"dolores heights", "dolores"},
	},
	{
		Name:    "Potrero Hill",
		Box:     geo.BoundingBox{LatMin: 37.7480, LatMax: 37.7665, LonMin: -122.4165, LonMax: -122.3890},
		Aliases: []string{"potrero hill", "potrero", "portrero"},
	},
	{
		Name:    "Cole Valley",
		Box:     geo.BoundingBox{LatMin: 37.7600, LatMax: 37.7725, LonMin: -122.4565, LonMax: -122.4450},
		Aliases: []string{"cole valley", "cole"},
	},
	{
		Name:    "Haight-Ashbury",
		Box:     geo.BoundingBox{LatMin: 37.7660, LatMax: 37.7785, LonMin: -122.4525, LonMax: -122.4320},
		Aliases: []string{"haight-ashbury", "haight ashbury", "haight"},
	},
	{
		Name:    "NoPa",
		Box:     geo.BoundingBox{LatMin: 37.7720, LatMax: 37.7825, LonMin: -122.4470, LonMax: -122.4270},
		Aliases: []string{"nopa", "no pa", "north of panhandle", "north panhandle"},
	},
}

var generic = map[string]struct{}{
	"san francisco":    {},
	"sf":               {},
	"san-francisco":    {},
	"san francisco ca": {},
}

// Normalize maps a raw name to its canonical form. Generic city names and
// blanks return "". Unknown names are returned trimmed.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	cleaned := strings.ToLower(trimmed)
	if cleaned == "" {
		return ""
	}
	if _, ok := generic[cleaned]; ok {
		return ""
	}
	for _, a := range Focus {
		if cleaned == strings.ToLower(a.Name) {
			return a.Name
		}
		for _, alias := range a.Aliases {
			if signals.ContainsPhrase(cleaned, alias) {
				return a.Name
			}
		}
	}
	return trimmed
}

// NormalizeList canonicalises names, dropping blanks and duplicates.
func NormalizeList(names []string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, n := range names {
		c := Normalize(n)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// FromCoordinates returns the first area whose box contains the point.
func FromCoordinates(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return ""
	}
	p := geo.Point{Lat: *lat, Lon: *lon}
	for _, a := range Focus {
		if a.Box.Contains(p) {
			return a.Name
		}
	}
	return ""
}

// Resolve prefers the reported name and falls back to coordinates.
func Resolve(raw string, lat, lon *float64) string {
	if c := Normalize(raw); c != "" {
		return c
	}
	return FromCoordinates(lat, lon)
}
