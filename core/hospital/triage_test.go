package hospital

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTriage(t *testing.T) {
	for in, want := range map[string]Triage{
		"critical":    TriageCritical,
		" Urgent ":    TriageUrgent,
		"SEMI-URGENT": TriageSemiUrgent,
		"non-urgent":  TriageNonUrgent,
		"":            TriageNonUrgent,
	} {
		got, err := ParseTriage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseTriage("whenever")
	assert.Error(t, err)
}

func TestRequirementsFor(t *testing.T) {
	r := RequirementsFor(TriageCritical, []string{"Chest Pain", "stroke", "itch"})
	assert.Equal(t, 1, r.MinLevel)
	assert.True(t, r.EmergencyServices)
	assert.Equal(t, []string{"Emergency Room", "ICU", "Surgery", "24/7 Services"}, r.PreferredFacilities)
	assert.Equal(t, []string{"Cardiology", "Emergency Medicine", "Neurology", "Emergency Medicine"}, r.PreferredSpecialties)

	r = RequirementsFor(TriageUrgent, nil)
	assert.False(t, r.EmergencyServices)
	assert.Empty(t, r.PreferredSpecialties)

	// Callers get their own slices.
	r.PreferredFacilities[0] = "changed"
	assert.Equal(t, "Emergency Care", RequirementsFor(TriageUrgent, nil).PreferredFacilities[0])
}

func TestRecommend_Critical(t *testing.T) {
	d := NewDirectory(testHospitals())
	recs := d.Recommend(origin, TriageCritical, []string{"chest pain"}, 0)

	// H4 has no position and is never recommended.
	require.Equal(t, []string{"H2", "H1", "H3"}, ids(recs))
	assert.InDelta(t, 245.761, recs[0].PriorityScore, 1e-3)
	assert.InDelta(t, 199.881, recs[1].PriorityScore, 1e-3)
	assert.InDelta(t, 164.805, recs[2].PriorityScore, 1e-3)

	assert.Equal(t, 2.22, *recs[0].DistanceKm)
	assert.Equal(t, 4, *recs[0].TravelMinutes)
	assert.Equal(t, "Tertiary care hospital with advanced facilities; 24/7 emergency services available; Cardiology specialization for heart conditions", recs[0].Reason)
	assert.Equal(t, "Primary healthcare facility", recs[1].Reason)
	assert.Equal(t, []string{"Cardiology", "Emergency Medicine"}, recs[0].TriageMatch.PreferredSpecialties)
}

func TestRecommend_NonUrgent(t *testing.T) {
	d := NewDirectory(testHospitals())
	recs := d.Recommend(origin, TriageNonUrgent, nil, 0)
	require.Equal(t, []string{"H2", "H1", "H3"}, ids(recs))
	assert.InDelta(t, 116.881, recs[0].PriorityScore, 1e-3)
	assert.InDelta(t, 100.440, recs[1].PriorityScore, 1e-3)
	assert.InDelta(t, 85.403, recs[2].PriorityScore, 1e-3)
}

func TestRecommend_Radius(t *testing.T) {
	d := NewDirectory(testHospitals())
	assert.Equal(t, []string{"H2", "H1"}, ids(d.Recommend(origin, TriageUrgent, nil, 5)))
	assert.Empty(t, d.Recommend(origin, TriageUrgent, nil, 1))
}

func TestPriorityScore_NeverNegative(t *testing.T) {
	assert.Zero(t, priorityScore(Hospital{Level: 1}, TriageNonUrgent, 30, nil))
	assert.InDelta(t, 5, priorityScore(Hospital{Level: 4}, TriageNonUrgent, 25, nil), 1e-9)
}
