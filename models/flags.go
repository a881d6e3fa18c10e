package models

// Flags are per-feature booleans derived from description keywords, or set
// directly by a provider that scraped a structured amenities section.
type Flags struct {
	NaturalLight         bool `json:"natural_light"`
	HighCeilings         bool `json:"high_ceilings"`
	OutdoorSpace         bool `json:"outdoor_space"`
	Parking              bool `json:"parking"`
	View                 bool `json:"view"`
	UpdatedSystems       bool `json:"updated_systems"`
	HomeOffice           bool `json:"home_office"`
	Storage              bool `json:"storage"`
	OpenFloorPlan        bool `json:"open_floor_plan"`
	ArchitecturalDetails bool `json:"architectural_details"`
	Luxury               bool `json:"luxury"`
	Designer             bool `json:"designer"`
	TechReady            bool `json:"tech_ready"`
	PetFriendly          bool `json:"pet_friendly"`
	NoPets               bool `json:"no_pets"`
	GymFitness           bool `json:"gym_fitness"`
	DoormanConcierge     bool `json:"doorman_concierge"`
	BuildingQuality      bool `json:"building_quality"`
	BusyStreet           bool `json:"busy_street"`
	FoundationIssues     bool `json:"foundation_issues"`
	HOAIssues            bool `json:"hoa_issues"`
	NorthFacingOnly      bool `json:"north_facing_only"`
	BasementUnit         bool `json:"basement_unit"`
	PriceReduced         bool `json:"price_reduced"`
	BackOnMarket         bool `json:"back_on_market"`
}

// flagFields maps signal names to the flag they set.
var flagFields = map[string]func(f *Flags) *bool{
	"natural_light":         func(f *Flags) *bool { return &f.NaturalLight },
	"high_ceilings":         func(f *Flags) *bool { return &f.HighCeilings },
	"outdoor_space":         func(f *Flags) *bool { return &f.OutdoorSpace },
	"parking":               func(f *Flags) *bool { return &f.Parking },
	"view":                  func(f *Flags) *bool { return &f.View },
	"updated_systems":       func(f *Flags) *bool { return &f.UpdatedSystems },
	"home_office":           func(f *Flags) *bool { return &f.HomeOffice },
	"storage":               func(f *Flags) *bool { return &f.Storage },
	"open_floor_plan":       func(f *Flags) *bool { return &f.OpenFloorPlan },
	"architectural_details": func(f *Flags) *bool { return &f.ArchitecturalDetails },
	"luxury":                func(f *Flags) *bool { return &f.Luxury },
	"designer":              func(f *Flags) *bool { return &f.Designer },
	"tech_ready":            func(f *Flags) *bool { return &f.TechReady },
	"pet_friendly":          func(f *Flags) *bool { return &f.PetFriendly },
	"no_pets":               func(f *Flags) *bool { return &f.NoPets },
	"gym_fitness":           func(f *Flags) *bool { return &f.GymFitness },
	"doorman_concierge":     func(f *Flags) *bool { return &f.DoormanConcierge },
	"building_quality":      func(f *Flags) *bool { return &f.BuildingQuality },
	"busy_street":           func(f *Flags) *bool { return &f.BusyStreet },
	"foundation_issues":     func(f *Flags) *bool { return &f.FoundationIssues },
	"hoa_issues":            func(f *Flags) *bool { return &f.HOAIssues },
	"north_facing_only":     func(f *Flags) *bool { return &f.NorthFacingOnly },
	"basement_unit":         func(f *Flags) *bool { return &f.BasementUnit },
	"price_reduced":         func(f *Flags) *bool { return &f.PriceReduced },
	"back_on_market":        func(f *Flags) *bool { return &f.BackOnMarket },
}

// Set applies a named signal. It reports false for names outside the table.
func (f *Flags) Set(name string, v bool) bool {
	field, ok := flagFields[name]
	if !ok {
		return false
	}
	*field(f) = v
	return true
}

// Get returns the value of a named flag.
func (f Flags) Get(name string) bool {
	field, ok := flagFields[name]
	if !ok {
		return false
	}
	return *field(&f)
}

// Or returns the union of two flag sets.
func (f Flags) Or(other Flags) Flags {
	out := f
	for _, field := range flagFields {
		if *field(&other) {
			*field(&out) = true
		}
	}
	return out
}

// FlagNames lists every known signal name.
func FlagNames() []string {
	names := make([]string, 0, len(flagFields))
	for name := range flagFields {
		names = append(names, name)
	}
	return names
}
