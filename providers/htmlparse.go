package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"homescout/models"
)

// listingTypes are the JSON-LD @type values that describe a property.
var listingTypes = map[string]struct{}{
	"Apartment":             {},
	"Condominium":           {},
	"House":                 {},
	"SingleFamilyResidence": {},
	"Residence":             {},
	"Townhouse":             {},
	"Product":               {},
}

var signedNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func parseDocument(html []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseListingHTML extracts one listing from a detail page: the best JSON-LD
// property object first, then og: and place: meta tags for missing fields.
func ParseListingHTML(html []byte) (*models.RawListing, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}
	return listingFromDocument(doc), nil
}

func listingFromDocument(doc *goquery.Document) *models.RawListing {
	out := &models.RawListing{}
	if obj := selectListing(jsonLDObjects(doc)); obj != nil {
		out = normalizeJSONLD(obj)
	}

	if out.Description == nil {
		out.Description = metaContent(doc, []string{"og:description"}, []string{"description"})
	}
	if out.Address == nil {
		out.Address = metaContent(doc, []string{"og:title"}, nil)
	}
	if len(out.Photos) == 0 {
		if img := metaContent(doc, []string{"og:image"}, nil); img != nil {
			out.Photos = []string{*img}
		}
	}
	if out.URL == nil {
		out.URL = metaContent(doc, []string{"og:url"}, nil)
	}
	if out.Lat == nil || out.Lon == nil {
		if lat := metaContent(doc, []string{"place:location:latitude", "og:latitude"}, nil); lat != nil {
			out.Lat = parseFloat(*lat)
		}
		if lon := metaContent(doc, []string{"place:location:longitude", "og:longitude"}, nil); lon != nil {
			out.Lon = parseFloat(*lon)
		}
	}
	return out
}

// itemListURLs returns the urls of every JSON-LD ItemList element, in order
// and without duplicates.
func itemListURLs(doc *goquery.Document) []string {
	var urls []string
	seen := map[string]struct{}{}
	for _, obj := range jsonLDObjects(doc) {
		if !hasType(obj, "ItemList") {
			continue
		}
		for _, raw := range asList(obj["itemListElement"]) {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			u, _ := item["url"].(string)
			if u == "" {
				if nested, ok := item["item"].(map[string]any); ok {
					u, _ = nested["url"].(string)
				}
			}
			if u == "" {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls
}

func hasNextPage(doc *goquery.Document) bool {
	return doc.Find(`link[rel="next"], a[rel="next"]`).Length() > 0
}

func jsonLDObjects(doc *goquery.Document) []map[string]any {
	var out []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return
		}
		out = append(out, flattenJSONLD(data)...)
	})
	return out
}

func flattenJSONLD(data any) []map[string]any {
	switch v := data.(type) {
	case []any:
		var out []map[string]any
		for _, item := range v {
			out = append(out, flattenJSONLD(item)...)
		}
		return out
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			return flattenJSONLD(graph)
		}
		return []map[string]any{v}
	}
	return nil
}

// selectListing scores candidates by how many property fields they carry.
func selectListing(objects []map[string]any) map[string]any {
	var best map[string]any
	bestScore := -1
	for _, obj := range objects {
		typed := false
		for _, t := range asList(obj["@type"]) {
			if s, ok := t.(string); ok {
				if _, ok := listingTypes[s]; ok {
					typed = true
				}
			}
		}
		if !typed && obj["address"] == nil && obj["offers"] == nil {
			continue
		}

		score := 0
		for _, key := range []string{"address", "geo", "image"} {
			if obj[key] != nil {
				score++
			}
		}
		if obj["offers"] != nil || obj["price"] != nil {
			score++
		}
		if typed {
			score++
		}
		if score > bestScore {
			best, bestScore = obj, score
		}
	}
	return best
}

func normalizeJSONLD(obj map[string]any) *models.RawListing {
	offers, _ := first(obj["offers"]).(map[string]any)
	geo, _ := first(obj["geo"]).(map[string]any)

	floor := obj["floorSize"]
	if m, ok := floor.(map[string]any); ok {
		floor = firstPresent(m["value"], m["size"])
	}

	var photos []string
	for _, img := range asList(firstPresent(obj["image"], obj["images"])) {
		switch v := img.(type) {
		case string:
			photos = append(photos, v)
		case map[string]any:
			if u, ok := v["url"].(string); ok {
				photos = append(photos, u)
			}
		}
	}

	out := &models.RawListing{
		Address:     formatAddress(obj["address"]),
		Price:       parseFloatAny(firstPresent(obj["price"], offers["price"])),
		Beds:        parseFloatAny(firstPresent(obj["numberOfBedrooms"], obj["numberOfRooms"])),
		Baths:       parseFloatAny(firstPresent(obj["numberOfBathroomsTotal"], obj["numberOfBathrooms"], obj["bathroomCount"])),
		Sqft:        parseFloatAny(floor),
		Lat:         parseFloatAny(geo["latitude"]),
		Lon:         parseFloatAny(geo["longitude"]),
		Description: stringAny(obj["description"]),
		Photos:      photos,
		URL:         stringAny(obj["url"]),
		YearBuilt:   parseIntAny(obj["yearBuilt"]),
	}

	out.PropertyType = propertyType(asList(firstPresent(obj["category"], obj["@type"])))
	return out
}

// propertyType prefers a known listing type, else the first string.
func propertyType(values []any) *string {
	var fallback *string
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if _, known := listingTypes[s]; known {
			return &s
		}
		if fallback == nil {
			fallback = &s
		}
	}
	return fallback
}

func formatAddress(v any) *string {
	switch a := v.(type) {
	case string:
		return stringAny(a)
	case map[string]any:
		var parts []string
		for _, keys := range [][]string{
			{"streetAddress", "street", "streetLine"},
			{"addressLocality", "city"},
			{"addressRegion", "state"},
			{"postalCode", "zip"},
		} {
			for _, k := range keys {
				if s, ok := a[k].(string); ok && strings.TrimSpace(s) != "" {
					parts = append(parts, strings.TrimSpace(s))
					break
				}
			}
		}
		if len(parts) == 0 {
			return nil
		}
		joined := strings.Join(parts, ", ")
		return &joined
	}
	return nil
}

func metaContent(doc *goquery.Document, properties, names []string) *string {
	for _, p := range properties {
		if c, ok := doc.Find(`meta[property="` + p + `"]`).First().Attr("content"); ok && strings.TrimSpace(c) != "" {
			c = strings.TrimSpace(c)
			return &c
		}
	}
	for _, n := range names {
		if c, ok := doc.Find(`meta[name="` + n + `"]`).First().Attr("content"); ok && strings.TrimSpace(c) != "" {
			c = strings.TrimSpace(c)
			return &c
		}
	}
	return nil
}

func hasType(obj map[string]any, want string) bool {
	for _, t := range asList(obj["@type"]) {
		if t == want {
			return true
		}
	}
	return false
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	}
	return []any{v}
}

func first(v any) any {
	if l, ok := v.([]any); ok {
		if len(l) == 0 {
			return nil
		}
		return l[0]
	}
	return v
}

func firstPresent(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func stringAny(v any) *string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}

func parseFloat(s string) *float64 {
	m := signedNumber.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseFloatAny(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		return parseFloat(t)
	}
	return nil
}

func parseIntAny(v any) *int {
	f := parseFloatAny(v)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}
