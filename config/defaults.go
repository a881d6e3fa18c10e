package config

// DefaultWeights apply when the criteria file configures no weights.
var DefaultWeights = map[string]float64{
	"natural_light":       10,
	"outdoor_space":       9,
	"character_soul":      8,
	"kitchen_quality":     7,
	"location_quiet":      6,
	"office_space":        4,
	"indoor_outdoor_flow": 4,
	"high_ceilings":       3,
	"layout_intelligence": 5,
	"move_in_ready":       4,
	"views":               3,
	"in_unit_laundry":     3,
	"parking":             3,
	"central_hvac":        2,
	"gas_stove":           2,
	"dishwasher":          1,
	"storage":             2,
	"pet_friendly":        2,
	"gym_fitness":         1,
	"building_quality":    3,
	"doorman_concierge":   1,
}

// DefaultFlagKeywords is the text-signal table used to derive listing flags.
var DefaultFlagKeywords = map[string][]string{
	"natural_light": {
		"natural light", "abundant light", "abundance of light", "bright", "sun-drenched",
		"light-filled", "luminous", "sunlit", "sun-soaked", "bathed in light", "floods of light",
		"flooded with light", "light and bright", "tons of light", "southern exposure",
		"south-facing", "west-facing", "floor-to-ceiling windows", "skylight",
	},
	"high_ceilings": {
		"high ceilings", "vaulted", "10 ft ceiling", "10-foot ceiling", "11 ft ceiling",
		"12 ft ceiling", "soaring", "cathedral", "coffered", "double-height", "tall ceiling", "lofty",
	},
	"outdoor_space": {
		"balcony", "deck", "patio", "yard", "garden", "terrace", "rooftop", "outdoor space",
		"private outdoor", "backyard", "back yard", "courtyard",
	},
	"parking": {
		"garage", "parking", "carport", "driveway", "off-street", "deeded parking", "1-car",
		"2-car", "attached garage", "detached garage", "parking space", "ev charging",
	},
	"view": {
		"view", "views", "panoramic", "vista", "overlook", "sweeping view", "stunning view",
		"unobstructed view", "bay view", "ocean view", "city view", "skyline",
	},
	"updated_systems": {
		"updated", "renovated", "remodeled", "new roof", "new hvac", "new plumbing",
		"new electrical", "new windows", "upgraded", "move-in ready", "turn-key", "modern systems",
	},
	"home_office": {
		"home office", "office", "study", "den", "workspace", "work from home", "wfh",
		"dedicated office", "bonus room", "flex space",
	},
	"storage": {
		"storage", "closet", "walk-in", "pantry", "built-in", "abundant storage", "attic",
		"workshop", "linen closet",
	},
	"open_floor_plan": {
		"open floor", "open concept", "open plan", "open layout", "great room", "open kitchen",
		"kitchen opens to", "loft-like", "spacious layout",
	},
	"architectural_details": {
		"crown molding", "wainscoting", "hardwood", "exposed beam", "exposed brick",
		"original detail", "period detail", "character", "charm", "millwork",
	},
	"luxury": {
		"luxury", "luxurious", "high-end", "premium", "bespoke", "upscale", "sophisticated", "elegant",
	},
	"designer": {
		"designer", "architect", "designed by", "custom design", "professionally designed",
		"interior designer", "thoughtfully designed",
	},
	"tech_ready": {
		"smart home", "nest", "fiber", "high-speed internet", "cat6", "security system",
		"video doorbell", "keyless entry",
	},
	"pet_friendly": {
		"pet friendly", "pet-friendly", "pets allowed", "dogs allowed", "cats allowed",
		"pets welcome", "pet ok", "dog run",
	},
	"no_pets": {
		"no pets", "no pet", "no-pet", "no dogs", "no cats", "no animals", "pet-free", "sorry no pets",
	},
	"gym_fitness": {
		"fitness center", "gym", "fitness room", "yoga studio", "exercise room", "health club",
	},
	"doorman_concierge": {
		"doorman", "full-time doorman", "24-hour doorman", "concierge", "lobby attendant",
		"virtual doorman", "attended lobby", "live-in super",
	},
	"building_quality": {
		"boutique building", "well-maintained", "landmark building", "elevator building", "prewar",
		"pre-war", "brownstone", "designer finishes",
	},
	"busy_street": {
		"busy street", "high traffic", "main road", "arterial", "freeway", "highway",
	},
	"foundation_issues": {
		"foundation issue", "settling", "cracks", "retrofit needed", "soft story", "unreinforced",
		"sagging", "sloping floors", "as-is", "fixer",
	},
	"hoa_issues": {
		"litigation", "lawsuit", "special assessment", "pending litigation", "high hoa",
		"hoa issues", "deferred maintenance",
	},
	"north_facing_only": {
		"north facing", "north-facing", "faces north", "northern exposure only",
	},
	"basement_unit": {
		"garden level", "lower level", "basement unit", "below grade", "bottom unit",
	},
	"price_reduced": {
		"price reduced", "reduced", "price improvement", "below market",
	},
	"back_on_market": {
		"back on market", "back on the market", "fell through", "previous buyer",
	},
}

// DefaultCriterionKeywords are the per-criterion keyword lists consulted by
// the scoring engine in addition to the NLP signal groups.
var DefaultCriterionKeywords = map[string][]string{
	"office": {
		"home office", "office", "study", "den", "workspace", "work from home", "wfh",
		"dedicated office", "bonus room",
	},
	"indoor_outdoor": {
		"indoor-outdoor", "indoor outdoor", "folding doors", "sliding doors", "opens to",
		"seamless", "flow to", "outdoor entertaining",
	},
	"layout": {
		"open layout", "open floor plan", "open concept", "great room", "well laid out",
		"good flow", "functional layout", "spacious layout", "loft-like", "loft style",
		"wide open", "expansive", "generously proportioned", "spacious living", "open living",
	},
	"layout_negative": {
		"awkward layout", "odd layout", "railroad", "chopped up", "low ceiling", "low ceilings",
		"narrow hallway", "tight layout", "cramped", "compact layout",
	},
	"laundry": {
		"in-unit laundry", "in unit laundry", "washer/dryer", "washer dryer", "laundry in unit",
		"stackable washer", "laundry closet",
	},
	"laundry_building": {
		"laundry in building", "shared laundry", "common laundry",
	},
	"central_hvac": {
		"central air", "central a/c", "central ac", "forced air", "central heat", "hvac",
	},
	"gas_stove": {
		"gas range", "gas stove", "gas cooktop", "gas burner",
	},
	"dishwasher": {
		"dishwasher", "bosch", "miele",
	},
	"parking_street_only": {
		"street parking only", "permit parking", "no garage",
	},
	"no_parking": {
		"no parking", "parking not available",
	},
	"kitchen": {
		"chef's kitchen", "gourmet kitchen", "remodeled kitchen", "quartz", "marble counters",
		"island", "wolf", "sub-zero", "viking",
	},
	"move_in_ready": {
		"move-in ready", "turn-key", "turnkey", "fully renovated", "newly renovated", "pristine",
	},
	"quiet": {
		"quiet street", "tree-lined", "peaceful", "tranquil", "serene", "cul-de-sac",
	},
	"views": {
		"view", "views", "panoramic", "skyline", "bay view", "ocean view", "city view",
	},
}

// DefaultLightPositive are keywords that raise the light-potential estimate.
var DefaultLightPositive = []string{
	"south-facing", "south facing", "southwest", "west-facing", "west facing", "western exposure",
	"southern exposure", "top floor", "top level", "upper floor", "penthouse", "corner unit",
	"corner apartment", "end unit", "floor-to-ceiling windows", "floor to ceiling windows",
	"wall of windows", "walls of windows", "panoramic windows", "skylights", "skylight",
	"clerestory", "bright", "sun-drenched", "sun-filled", "light-filled", "natural light",
	"floods of light", "bathed in light", "sunny", "sunlit", "luminous", "airy",
}

// DefaultLightNegative are keywords that lower the light-potential estimate.
var DefaultLightNegative = []string{
	"north-facing", "north facing", "northern exposure", "faces north", "garden level", "basement",
	"lower level", "below grade", "bottom unit", "interior unit", "no natural light", "dark",
	"dimly lit", "limited light", "shaded", "windowless", "few windows", "small windows",
}
