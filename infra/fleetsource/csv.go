package fleetsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/ambudispatch/core/fleet"
)

// headerAliases maps accepted column names to canonical ones. The second
// group covers spreadsheet exports of the ambulance roster.
var headerAliases = map[string]string{
	"id":              "id",
	"level":           "level",
	"latitude":        "latitude",
	"longitude":       "longitude",
	"status":          "status",
	"category":        "category",
	"region":          "region",
	"ambulance_id":    "id",
	"emergency_level": "level",
	"lat":             "latitude",
	"long":            "longitude",
	"lng":             "longitude",
	"availibility":    "availability",
	"availability":    "availability",
	"state":           "region",
}

// CSV reads the fleet from a CSV file with a header row.
type CSV struct {
	Path string
}

func (c CSV) Load(ctx context.Context) ([]fleet.Row, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("open fleet csv: %w", err)
	}
	defer f.Close()
	return ParseCSV(ctx, f)
}

// ParseCSV decodes rows from r. Units without an id column are numbered
// AMB_001, AMB_002... in file order. An availability column holding yes/no
// is accepted in place of status.
func ParseCSV(ctx context.Context, r io.Reader) ([]fleet.Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("fleet csv: missing header")
		}
		return nil, fmt.Errorf("fleet csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := headerAliases[name]; ok {
			cols[canon] = i
		}
	}
	if _, ok := cols["level"]; !ok {
		return nil, fmt.Errorf("fleet csv: missing level column")
	}
	_, hasStatus := cols["status"]
	_, hasAvail := cols["availability"]
	if !hasStatus && !hasAvail {
		return nil, fmt.Errorf("fleet csv: missing status column")
	}

	var rows []fleet.Row
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fleet csv line %d: %w", line, err)
		}
		get := func(col string) string {
			if i, ok := cols[col]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		row := fleet.Row{
			ID:       get("id"),
			Category: get("category"),
			Region:   get("region"),
		}
		if row.ID == "" {
			row.ID = fmt.Sprintf("AMB_%03d", len(rows)+1)
		}
		if row.Level, err = strconv.Atoi(get("level")); err != nil {
			return nil, fmt.Errorf("fleet csv line %d: level: %w", line, err)
		}
		if row.Latitude, err = optionalFloat(get("latitude")); err != nil {
			return nil, fmt.Errorf("fleet csv line %d: latitude: %w", line, err)
		}
		if row.Longitude, err = optionalFloat(get("longitude")); err != nil {
			return nil, fmt.Errorf("fleet csv line %d: longitude: %w", line, err)
		}
		if hasStatus {
			row.Status = get("status")
		} else {
			row.Status = availabilityStatus(get("availability"))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func optionalFloat(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func availabilityStatus(s string) string {
	if strings.EqualFold(s, "yes") {
		return "available"
	}
	return "unavailable"
}
