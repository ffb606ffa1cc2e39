package fleetsource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/hospital"
)

const hospitalCSV = "\ufeffName,Level,Lat,Long,Facilities,Specialties,Emergency_Services,Bed_Count,State\n" +
	"City General,3,40.7128,-74.0060,\"Emergency Room, ICU|Surgery\",General Medicine;Emergency Medicine,yes,200.0,NY\n" +
	"Village PHC,1,,,Primary Care,,no,,nan\n" +
	"Broken Row,x,40.1,-74.1,,,,,\n"

func TestParseHospitalCSV(t *testing.T) {
	rows, err := ParseHospitalCSV(context.Background(), strings.NewReader(hospitalCSV))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	r := rows[0]
	assert.Empty(t, r.ID)
	assert.Equal(t, "City General", r.Name)
	assert.Equal(t, 3, r.Level)
	require.NotNil(t, r.Latitude)
	assert.Equal(t, 40.7128, *r.Latitude)
	assert.Equal(t, []string{"Emergency Room", "ICU", "Surgery"}, r.Facilities)
	assert.Equal(t, []string{"General Medicine", "Emergency Medicine"}, r.Specialties)
	require.NotNil(t, r.EmergencyServices)
	assert.True(t, *r.EmergencyServices)
	require.NotNil(t, r.BedCount)
	assert.Equal(t, 200, *r.BedCount)
	assert.Equal(t, "NY", r.State)

	assert.Nil(t, rows[1].Latitude)
	assert.False(t, *rows[1].EmergencyServices)
	assert.Nil(t, rows[1].BedCount)
	assert.Empty(t, rows[1].State)
	assert.Zero(t, rows[2].Level)

	hs, skipped := hospital.FromRows(rows)
	require.Len(t, hs, 2)
	assert.Equal(t, []string{"hospital_1", "hospital_2"}, []string{hs[0].ID, hs[1].ID})
	require.Len(t, skipped, 1)
	assert.Contains(t, skipped[0], "Broken Row")
}

func TestParseHospitalCSV_MissingColumns(t *testing.T) {
	_, err := ParseHospitalCSV(context.Background(), strings.NewReader("name,lat\nA,1\n"))
	assert.EqualError(t, err, "hospital csv: missing level column")
	_, err = ParseHospitalCSV(context.Background(), strings.NewReader(""))
	assert.EqualError(t, err, "hospital csv: missing header")
}

func TestParseHospitalDoc(t *testing.T) {
	list := `[{"id": "phc-1", "name": "PHC One", "level": 1, "latitude": 22.3, "longitude": 73.1,
  "facilities": ["Primary Care"], "emergency_services": false}]`
	rows, err := ParseHospitalDoc([]byte(list))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "phc-1", rows[0].ID)
	assert.Equal(t, []string{"Primary Care"}, rows[0].Facilities)
	assert.False(t, *rows[0].EmergencyServices)

	wrapped := `hospitals:
  - {name: General, level: 3, latitude: 40.7, longitude: -74.0, bed_count: 120}
  - {name: Clinic, level: 2}
`
	rows, err = ParseHospitalDoc([]byte(wrapped))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 120, *rows[0].BedCount)
	assert.Nil(t, rows[1].Latitude)

	rows, err = ParseHospitalDoc(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = ParseHospitalDoc([]byte("hospitals: [{level: high}]"))
	assert.Error(t, err)
}

func TestOpenHospitals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hospitals.csv")
	require.NoError(t, os.WriteFile(path, []byte(hospitalCSV), 0o644))

	src, err := OpenHospitals(HospitalConfig{Path: path})
	require.NoError(t, err)
	d, skipped, err := hospital.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Len(t, skipped, 1)

	_, err = OpenHospitals(HospitalConfig{Path: filepath.Join(dir, "hospitals.xlsx")})
	assert.Error(t, err)
	_, err = OpenHospitals(HospitalConfig{})
	assert.Error(t, err)

	src, err = OpenHospitals(HospitalConfig{Path: filepath.Join(dir, "missing.json")})
	require.NoError(t, err)
	_, err = src.Load(context.Background())
	assert.ErrorContains(t, err, "open hospitals")
}

func TestFormatFor(t *testing.T) {
	for name, want := range map[string]string{
		"a.csv":  FormatCSV,
		"a.YML":  FormatYAML,
		"a.yaml": FormatYAML,
		"a.json": FormatJSON,
		"a.xlsx": "",
	} {
		assert.Equal(t, want, FormatFor(name), name)
	}
}
