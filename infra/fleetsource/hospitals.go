package fleetsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/ambudispatch/core/hospital"
)

// Hospital file formats.
const (
	FormatCSV  = "csv"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

var hospitalHeaderAliases = map[string]string{
	"id":                 "id",
	"hospital_id":        "id",
	"name":               "name",
	"level":              "level",
	"latitude":           "latitude",
	"lat":                "latitude",
	"longitude":          "longitude",
	"long":               "longitude",
	"lng":                "longitude",
	"address":            "address",
	"phone":              "phone",
	"email":              "email",
	"website":            "website",
	"facilities":         "facilities",
	"specialties":        "specialties",
	"emergency_services": "emergency_services",
	"bed_count":          "bed_count",
	"state":              "state",
	"area":               "area",
	"availability":       "availability",
}

// HospitalConfig locates the hospital directory file. An empty path
// leaves the directory empty until a file is uploaded.
type HospitalConfig struct {
	Format string `json:"format"`
	Path   string `json:"path"`
}

// SetDefaults infers the format from the file extension.
func (c *HospitalConfig) SetDefaults() {
	if c.Format == "" && c.Path != "" {
		c.Format = FormatFor(c.Path)
	}
}

// Validate checks the configuration values.
func (c HospitalConfig) Validate() error {
	if c.Path == "" {
		return nil
	}
	switch c.Format {
	case FormatCSV, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("hospitals.format %q is not one of csv, yaml, json", c.Format)
	}
}

// Enabled reports whether a hospital file is configured.
func (c HospitalConfig) Enabled() bool { return c.Path != "" }

// FormatFor maps a file name to its hospital format, or "" when the
// extension is not supported.
func FormatFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return ""
	}
}

// HospitalFile reads hospital rows from a file.
type HospitalFile struct {
	Format string
	Path   string
}

// OpenHospitals returns the configured hospital source.
func OpenHospitals(cfg HospitalConfig) (hospital.Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("hospitals.path is required")
	}
	return HospitalFile{Format: cfg.Format, Path: cfg.Path}, nil
}

func (h HospitalFile) Load(ctx context.Context) ([]hospital.Row, error) {
	f, err := os.Open(h.Path)
	if err != nil {
		return nil, fmt.Errorf("open hospitals: %w", err)
	}
	defer f.Close()
	return ParseHospitals(ctx, h.Format, f)
}

// ParseHospitals decodes rows in the given format. YAML and JSON
// documents hold either a bare list or a top-level hospitals list.
func ParseHospitals(ctx context.Context, format string, r io.Reader) ([]hospital.Row, error) {
	switch format {
	case FormatCSV:
		return ParseHospitalCSV(ctx, r)
	case FormatYAML, FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read hospitals: %w", err)
		}
		return ParseHospitalDoc(data)
	default:
		return nil, fmt.Errorf("unsupported hospital format %q", format)
	}
}

// ParseHospitalDoc decodes a YAML or JSON hospital document.
func ParseHospitalDoc(data []byte) ([]hospital.Row, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode hospitals: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	var rows []hospital.Row
	if root.Kind == yaml.SequenceNode {
		if err := root.Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode hospitals: %w", err)
		}
		return rows, nil
	}
	var wrapped struct {
		Hospitals []hospital.Row `yaml:"hospitals"`
	}
	if err := root.Decode(&wrapped); err != nil {
		return nil, fmt.Errorf("decode hospitals: %w", err)
	}
	return wrapped.Hospitals, nil
}

// ParseHospitalCSV decodes a hospital roster with a header row. Only the
// name and level columns are required. Unreadable optional values are
// left empty, and a level that is not a number becomes 0 so the row is
// reported by hospital.FromRows. List columns split on comma, pipe or
// semicolon.
func ParseHospitalCSV(ctx context.Context, r io.Reader) ([]hospital.Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("hospital csv: missing header")
		}
		return nil, fmt.Errorf("hospital csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := hospitalHeaderAliases[name]; ok {
			if _, dup := cols[canon]; !dup {
				cols[canon] = i
			}
		}
	}
	for _, req := range []string{"name", "level"} {
		if _, ok := cols[req]; !ok {
			return nil, fmt.Errorf("hospital csv: missing %s column", req)
		}
	}

	var rows []hospital.Row
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("hospital csv line %d: %w", line, err)
		}
		get := func(col string) string {
			if i, ok := cols[col]; ok && i < len(rec) {
				if v := strings.TrimSpace(rec[i]); !strings.EqualFold(v, "nan") {
					return v
				}
			}
			return ""
		}
		row := hospital.Row{
			ID:           get("id"),
			Name:         get("name"),
			Address:      get("address"),
			Phone:        get("phone"),
			Email:        get("email"),
			Website:      get("website"),
			Facilities:   splitList(get("facilities")),
			Specialties:  splitList(get("specialties")),
			State:        get("state"),
			Area:         get("area"),
			Availability: get("availability"),
		}
		if lvl, err := strconv.ParseFloat(get("level"), 64); err == nil {
			row.Level = int(lvl)
		}
		row.Latitude, _ = optionalFloat(get("latitude"))
		row.Longitude, _ = optionalFloat(get("longitude"))
		if v := get("emergency_services"); v != "" {
			on := truthy(v)
			row.EmergencyServices = &on
		}
		if v, err := strconv.ParseFloat(get("bed_count"), 64); err == nil {
			n := int(v)
			row.BedCount = &n
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.FieldsFunc(s, isListSep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func isListSep(r rune) bool { return r == ',' || r == '|' || r == ';' }

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "y", "enabled", "on":
		return true
	default:
		return false
	}
}
