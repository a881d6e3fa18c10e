package scoring

import (
	"fmt"
	"strings"

	"homescout/config"
	"homescout/models"
	"homescout/services/signals"
)

// input is everything a criterion scorer may look at for one listing.
type input struct {
	l     *models.Listing
	text  string
	hits  models.SignalHits
	flags models.Flags
	crit  *config.Criteria
}

func newInput(l *models.Listing, crit *config.Criteria) input {
	return input{
		l:     l,
		text:  signals.Normalize(l.Description),
		hits:  signals.Analyze(l.Description, crit.NLPSignals),
		flags: l.Flags.Or(signals.ExtractFlags(l.Description, crit.FlagKeywords)),
		crit:  crit,
	}
}

func (in input) pos(group string) []string { return in.hits.Positive[group] }
func (in input) neg(group string) []string { return in.hits.Negative[group] }

// kw returns hits for a named criterion keyword list.
func (in input) kw(name string) []string {
	return signals.FindHits(in.text, in.crit.CriterionKeywords[name])
}

// flagKW returns hits for a flag keyword list.
func (in input) flagKW(name string) []string {
	return signals.FindHits(in.text, in.crit.FlagKeywords[name])
}

// groupWeight is the multiplier of a positive group; unset means 1.
func (in input) groupWeight(group string) float64 {
	g, ok := in.crit.NLPSignals.Positive[group]
	if !ok || g.Weight <= 0 {
		return 1
	}
	return g.Weight
}

// negCap turns a negative group hit into a ceiling. The group weight is the
// penalty strength: a strength of 0.6 caps the sub-score at 4.
func (in input) negCap(group string, fallback float64) (float64, bool) {
	if len(in.neg(group)) == 0 {
		return 0, false
	}
	strength := fallback
	if g, ok := in.crit.NLPSignals.Negative[group]; ok && g.Weight > 0 {
		strength = g.Weight
	}
	return clamp(10*(1-strength), 0, 10), true
}

// sub accumulates the components, floors and ceilings of one sub-score.
type sub struct {
	parts    []float64
	floor    float64
	ceiling  float64
	evidence []string
}

func newSub() *sub { return &sub{ceiling: 10} }

func (s *sub) add(v float64, why string) {
	s.parts = append(s.parts, clamp(v, 0, 10))
	if why != "" {
		s.evidence = append(s.evidence, why)
	}
}

func (s *sub) keywords(label string, hits []string, weight float64) {
	var why string
	if len(hits) > 0 {
		why = label + ": " + strings.Join(hits, ", ")
	}
	s.add(FromHits(float64(len(hits))*weight), why)
}

// present scores 10 when any hit or the flag is present, else 0.
func (s *sub) present(label string, hits []string, flag bool) {
	switch {
	case len(hits) > 0:
		s.add(10, label+": "+strings.Join(hits, ", "))
	case flag:
		s.add(10, label+" flag")
	default:
		s.add(0, "")
	}
}

func (s *sub) floorAt(v float64, why string) {
	if v > s.floor {
		s.floor = v
	}
	s.evidence = append(s.evidence, why)
}

func (s *sub) capAt(v float64, why string) {
	if v < s.ceiling {
		s.ceiling = v
	}
	s.evidence = append(s.evidence, why)
}

func (s *sub) value() (float64, []string) {
	v := Blend(s.parts...)
	if v < s.floor {
		v = s.floor
	}
	if v > s.ceiling {
		v = s.ceiling
	}
	return clamp(v, 0, 10), s.evidence
}

type scorer func(in input) (float64, []string)

var scorers = map[string]scorer{
	"natural_light":       scoreNaturalLight,
	"outdoor_space":       scoreOutdoor,
	"character_soul":      scoreCharacter,
	"kitchen_quality":     scoreKitchen,
	"location_quiet":      scoreQuiet,
	"office_space":        scoreOffice,
	"indoor_outdoor_flow": scoreIndoorOutdoor,
	"high_ceilings":       scoreCeilings,
	"layout_intelligence": scoreLayout,
	"move_in_ready":       scoreMoveInReady,
	"views":               scoreViews,
	"in_unit_laundry":     scoreLaundry,
	"parking":             scoreParking,
	"central_hvac": func(in input) (float64, []string) {
		s := newSub()
		s.present("hvac", in.kw("central_hvac"), false)
		return s.value()
	},
	"gas_stove": func(in input) (float64, []string) {
		s := newSub()
		s.present("gas", in.kw("gas_stove"), false)
		return s.value()
	},
	"dishwasher": func(in input) (float64, []string) {
		s := newSub()
		s.present("dishwasher", in.kw("dishwasher"), false)
		return s.value()
	},
	"storage":      scoreStorage,
	"pet_friendly": scorePets,
	"gym_fitness": func(in input) (float64, []string) {
		s := newSub()
		s.present("gym", in.flagKW("gym_fitness"), in.flags.GymFitness)
		return s.value()
	},
	"building_quality": scoreBuilding,
	"doorman_concierge": func(in input) (float64, []string) {
		s := newSub()
		s.present("doorman", in.flagKW("doorman_concierge"), in.flags.DoormanConcierge)
		return s.value()
	},
}

// Criteria returns the names of all criteria the engine can score.
func Criteria() []string {
	out := make([]string, 0, len(scorers))
	for name := range scorers {
		out = append(out, name)
	}
	return out
}

func scoreNaturalLight(in input) (float64, []string) {
	s := newSub()
	s.keywords("light", in.pos(signals.GroupLight), in.groupWeight(signals.GroupLight))
	if in.l.LightScore != nil {
		s.add(float64(*in.l.LightScore)/10, fmt.Sprintf("light potential %d", *in.l.LightScore))
	}
	if in.flags.NaturalLight {
		s.floorAt(6, "natural light flag")
	}
	if v, ok := in.negCap(signals.GroupDark, 0.6); ok {
		s.capAt(v, "dark: "+strings.Join(in.neg(signals.GroupDark), ", "))
	}
	if in.flags.BasementUnit || in.flags.NorthFacingOnly {
		s.capAt(4, "basement or north-facing")
	}
	return s.value()
}

func scoreOutdoor(in input) (float64, []string) {
	s := newSub()
	private := in.pos("outdoor_private")
	premium := in.pos("outdoor_premium")
	s.keywords("outdoor", union(in.pos("outdoor"), private, premium), in.groupWeight("outdoor"))
	if in.flags.OutdoorSpace {
		s.floorAt(5, "outdoor space flag")
	}
	switch {
	case len(premium) > 0:
		s.floorAt(9, "premium outdoor: "+strings.Join(premium, ", "))
	case len(private) > 0:
		s.floorAt(7.5, "private outdoor: "+strings.Join(private, ", "))
	default:
		if v, ok := in.negCap("weak_outdoor", 0.6); ok {
			s.capAt(v, "weak outdoor: "+strings.Join(in.neg("weak_outdoor"), ", "))
		}
	}
	return s.value()
}

func scoreCharacter(in input) (float64, []string) {
	s := newSub()
	s.keywords("character", union(in.pos("character"), in.pos("quality")), in.groupWeight("character"))
	if in.flags.ArchitecturalDetails {
		s.floorAt(5, "architectural details flag")
	}
	if v, ok := in.negCap("flipper", 0.7); ok {
		s.capAt(v, "flip signals")
	}
	return s.value()
}

func scoreKitchen(in input) (float64, []string) {
	s := newSub()
	s.keywords("kitchen", union(in.pos("kitchen"), in.kw("kitchen")), in.groupWeight("kitchen"))
	if in.flags.Luxury || in.flags.Designer {
		s.floorAt(4, "luxury or designer finishes")
	}
	if v, ok := in.negCap("condition", 0.6); ok {
		s.capAt(v, "condition concerns")
	}
	return s.value()
}

func scoreQuiet(in input) (float64, []string) {
	s := newSub()
	// The measured score is a floor; quiet wording can only lift it.
	s.keywords("quiet", in.kw("quiet"), 1)
	if in.l.TranquilityScore != nil {
		s.floorAt(float64(*in.l.TranquilityScore)/10, fmt.Sprintf("tranquility %d", *in.l.TranquilityScore))
	}
	if v, ok := in.negCap(signals.GroupLocationNoise, 0.6); ok {
		s.capAt(v, "noise: "+strings.Join(in.neg(signals.GroupLocationNoise), ", "))
	}
	if in.flags.BusyStreet {
		s.capAt(2, "busy street flag")
	}
	return s.value()
}

func scoreOffice(in input) (float64, []string) {
	s := newSub()
	s.keywords("office", in.kw("office"), 1)
	if in.flags.HomeOffice {
		s.floorAt(6, "home office flag")
	}
	return s.value()
}

func scoreIndoorOutdoor(in input) (float64, []string) {
	s := newSub()
	s.keywords("flow", in.kw("indoor_outdoor"), 1)
	if in.flags.OutdoorSpace && in.flags.OpenFloorPlan {
		s.floorAt(4, "open plan with outdoor space")
	}
	return s.value()
}

func scoreCeilings(in input) (float64, []string) {
	s := newSub()
	s.keywords("ceilings", in.flagKW("high_ceilings"), 1)
	if in.flags.HighCeilings {
		s.floorAt(8, "high ceilings flag")
	}
	for _, hit := range in.kw("layout_negative") {
		if strings.HasPrefix(hit, "low ceiling") {
			s.capAt(2, hit)
			break
		}
	}
	return s.value()
}

func scoreLayout(in input) (float64, []string) {
	s := newSub()
	s.keywords("layout", in.kw("layout"), 1)
	if in.flags.OpenFloorPlan {
		s.floorAt(6, "open floor plan flag")
	}
	if bad := in.kw("layout_negative"); len(bad) > 0 {
		s.capAt(3, "layout concerns: "+strings.Join(bad, ", "))
	}
	return s.value()
}

func scoreMoveInReady(in input) (float64, []string) {
	s := newSub()
	s.keywords("ready", in.kw("move_in_ready"), 1)
	if in.flags.UpdatedSystems {
		s.floorAt(6, "updated systems flag")
	}
	if v, ok := in.negCap("condition", 0.6); ok {
		s.capAt(v, "condition concerns")
	}
	if in.flags.FoundationIssues {
		s.capAt(2, "foundation issues flag")
	}
	return s.value()
}

func scoreViews(in input) (float64, []string) {
	s := newSub()
	s.keywords("views", union(in.kw("views"), in.flagKW("view")), 1)
	if in.flags.View {
		s.floorAt(6, "view flag")
	}
	return s.value()
}

func scoreLaundry(in input) (float64, []string) {
	s := newSub()
	unit := in.kw("laundry")
	building := in.kw("laundry_building")
	switch {
	case len(unit) > 0:
		s.add(10, "laundry: "+strings.Join(unit, ", "))
	case len(building) > 0:
		s.add(4, "building laundry: "+strings.Join(building, ", "))
	default:
		s.add(0, "")
	}
	return s.value()
}

func scoreParking(in input) (float64, []string) {
	s := newSub()
	s.keywords("parking", in.flagKW("parking"), 1)
	if in.l.ParkingSpaces != nil && *in.l.ParkingSpaces > 0 {
		s.floorAt(10, fmt.Sprintf("%d parking spaces", *in.l.ParkingSpaces))
	}
	if in.flags.Parking {
		s.floorAt(7, "parking flag")
	}
	if street := in.kw("parking_street_only"); len(street) > 0 {
		s.capAt(3, "street parking: "+strings.Join(street, ", "))
	}
	if none := in.kw("no_parking"); len(none) > 0 {
		s.capAt(0, "no parking")
	}
	return s.value()
}

func scoreStorage(in input) (float64, []string) {
	s := newSub()
	s.keywords("storage", in.flagKW("storage"), 1)
	if in.flags.Storage {
		s.floorAt(6, "storage flag")
	}
	return s.value()
}

func scorePets(in input) (float64, []string) {
	s := newSub()
	s.present("pets", in.flagKW("pet_friendly"), in.flags.PetFriendly)
	if in.flags.NoPets || len(in.neg(signals.GroupNoPets)) > 0 {
		s.capAt(0, "no pets")
	}
	return s.value()
}

func scoreBuilding(in input) (float64, []string) {
	s := newSub()
	s.keywords("building", in.flagKW("building_quality"), 1)
	if in.l.VisualQuality != nil {
		s.floorAt(*in.l.VisualQuality/10, fmt.Sprintf("visual quality %.0f", *in.l.VisualQuality))
	}
	if in.flags.BuildingQuality {
		s.floorAt(7, "building quality flag")
	}
	if in.flags.HOAIssues {
		s.capAt(4, "hoa issues flag")
	}
	return s.value()
}

func union(lists ...[]string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
