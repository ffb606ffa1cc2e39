package hospital

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/kilianp07/ambudispatch/core/geo"
)

// DefaultRecommendRadiusKm bounds recommendations when no radius is given.
const DefaultRecommendRadiusKm = 50

// Triage is the urgency assessed by the call taker.
type Triage string

const (
	TriageCritical   Triage = "critical"
	TriageUrgent     Triage = "urgent"
	TriageSemiUrgent Triage = "semi-urgent"
	TriageNonUrgent  Triage = "non-urgent"
)

// ParseTriage maps a triage label to a Triage. An empty label is
// non-urgent.
func ParseTriage(s string) (Triage, error) {
	switch t := Triage(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TriageNonUrgent, nil
	case TriageCritical, TriageUrgent, TriageSemiUrgent, TriageNonUrgent:
		return t, nil
	default:
		return "", fmt.Errorf("unknown triage level %q", s)
	}
}

// Requirements describes what a triage level looks for in a hospital.
// Preferences weigh in the score; only MinLevel excludes hospitals.
type Requirements struct {
	MinLevel             int      `json:"min_level"`
	PreferredFacilities  []string `json:"preferred_facilities"`
	PreferredSpecialties []string `json:"preferred_specialties,omitempty"`
	EmergencyServices    bool     `json:"emergency_services"`
}

// Recommendation is a located hospital ranked for a triage level.
type Recommendation struct {
	Match
	PriorityScore float64      `json:"priority_score"`
	TriageMatch   Requirements `json:"triage_match"`
	Reason        string       `json:"recommendation_reason"`
}

var preferredFacilities = map[Triage][]string{
	TriageCritical:   {"Emergency Room", "ICU", "Surgery", "24/7 Services"},
	TriageUrgent:     {"Emergency Care", "Laboratory", "24/7 Services"},
	TriageSemiUrgent: {"Outpatient", "Primary Care"},
	TriageNonUrgent:  {"Outpatient", "Primary Care"},
}

// symptomSpecialties names the specialties preferred for a symptom.
var symptomSpecialties = map[string][]string{
	"chest pain":    {"Cardiology", "Emergency Medicine"},
	"heart attack":  {"Cardiology", "Emergency Medicine"},
	"stroke":        {"Neurology", "Emergency Medicine"},
	"broken bone":   {"Orthopedics", "Radiology"},
	"pregnancy":     {"Obstetrics", "Gynecology"},
	"mental health": {"Psychiatry", "Psychology"},
	"eye problems":  {"Ophthalmology"},
	"skin problems": {"Dermatology"},
}

// symptomScoring lists the specialties, lower case, that earn a score
// bonus for a symptom. Primary care specialties count here so small
// clinics rank for common complaints.
var symptomScoring = map[string][]string{
	"chest pain":           {"general medicine", "emergency medicine"},
	"fever":                {"general medicine", "family medicine"},
	"breathing difficulty": {"general medicine", "emergency medicine"},
	"stomach pain":         {"general medicine"},
	"headache":             {"general medicine", "family medicine"},
	"broken bone":          {"general medicine"},
	"pregnancy":            {"general medicine", "family medicine"},
}

// scoredFacilities each add to the score when a hospital offers them.
var scoredFacilities = []string{"emergency care", "24/7 services", "emergency room", "laboratory", "primary care"}

var urgencyMultiplier = map[Triage]float64{
	TriageCritical:   2.0,
	TriageUrgent:     1.8,
	TriageSemiUrgent: 1.3,
	TriageNonUrgent:  1.0,
}

var levelBonus = map[int]float64{2: 10, 3: 20, 4: 30}

var levelReason = map[int]string{
	1: "Primary healthcare facility",
	2: "Secondary care hospital",
	3: "Tertiary care hospital with advanced facilities",
	4: "Quaternary care hospital with specialized services",
}

// RequirementsFor returns the requirements of t for the given symptoms.
func RequirementsFor(t Triage, symptoms []string) Requirements {
	r := Requirements{
		MinLevel:            1,
		PreferredFacilities: slices.Clone(preferredFacilities[t]),
		EmergencyServices:   t == TriageCritical,
	}
	for _, s := range symptoms {
		r.PreferredSpecialties = append(r.PreferredSpecialties, symptomSpecialties[strings.ToLower(s)]...)
	}
	return r
}

// Recommend ranks the located hospitals within maxKm of origin for t,
// highest priority score first. A non-positive maxKm uses
// DefaultRecommendRadiusKm. Equal scores are ordered by distance, then id.
func (d *Directory) Recommend(origin geo.Point, t Triage, symptoms []string, maxKm float64) []Recommendation {
	if maxKm <= 0 {
		maxKm = DefaultRecommendRadiusKm
	}
	req := RequirementsFor(t, symptoms)

	d.mu.RLock()
	dist := d.distancesFrom(origin)
	out := make([]Recommendation, 0, len(dist))
	for i, h := range d.hospitals {
		km, ok := dist[i]
		if !ok || km > maxKm || h.Level < req.MinLevel {
			continue
		}
		out = append(out, Recommendation{
			Match:         Match{Hospital: h, DistanceKm: roundedKm(km), TravelMinutes: travelMinutes(km)},
			PriorityScore: priorityScore(h, t, km, symptoms),
			TriageMatch:   req,
			Reason:        recommendationReason(h, symptoms),
		})
	}
	d.mu.RUnlock()

	slices.SortFunc(out, func(a, b Recommendation) int {
		if c := cmp.Compare(b.PriorityScore, a.PriorityScore); c != 0 {
			return c
		}
		if c := cmp.Compare(*a.DistanceKm, *b.DistanceKm); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// priorityScore starts at 100, loses 5 points per km and gains bonuses
// for emergency services, urgency, level, primary care facilities and
// symptom specialties. It never drops below zero.
func priorityScore(h Hospital, t Triage, km float64, symptoms []string) float64 {
	score := 100 - km*5
	if h.EmergencyServices {
		if t == TriageCritical || t == TriageUrgent {
			score += 20
		} else {
			score += 5
		}
	}
	if m, ok := urgencyMultiplier[t]; ok {
		score *= m
	}
	score += levelBonus[h.Level]
	for _, f := range scoredFacilities {
		if containsFold(h.Facilities, f) {
			score += 3
		}
	}
	for _, s := range symptoms {
		for _, want := range symptomScoring[strings.ToLower(s)] {
			if containsFold(h.Specialties, want) {
				score += 5
			}
		}
	}
	return max(score, 0)
}

func recommendationReason(h Hospital, symptoms []string) string {
	reason, ok := levelReason[h.Level]
	if !ok {
		reason = "Healthcare facility"
	}
	reasons := []string{reason}
	if h.EmergencyServices {
		reasons = append(reasons, "24/7 emergency services available")
	}
	for _, s := range symptoms {
		switch strings.ToLower(s) {
		case "chest pain", "heart attack":
			if containsFold(h.Specialties, "cardiology") {
				reasons = append(reasons, "Cardiology specialization for heart conditions")
			}
		case "stroke":
			if containsFold(h.Specialties, "neurology") {
				reasons = append(reasons, "Neurology specialization for stroke care")
			}
		}
	}
	return strings.Join(reasons, "; ")
}
