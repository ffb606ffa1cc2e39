// Package hospitals exposes the hospital directory over HTTP: proximity
// search, triage recommendations, catalogue listings and roster uploads.
package hospitals

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/hospital"
	"github.com/kilianp07/ambudispatch/core/logger"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/infra/fleetsource"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 16 << 20
)

// Directory is the part of the hospital directory the handler drives.
type Directory interface {
	Search(origin geo.Point, q hospital.Query) []hospital.Match
	Recommend(origin geo.Point, t hospital.Triage, symptoms []string, maxKm float64) []hospital.Recommendation
	Facilities() []string
	Specialties() []string
	Stats() hospital.Stats
	Replace(hs []hospital.Hospital)
}

// SearchRequest is the body of POST /api/hospitals/search.
type SearchRequest struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	MaxDistance *float64 `json:"max_distance"`
	Levels      []int    `json:"hospital_level"`
	Facilities  []string `json:"facilities"`
	Specialties []string `json:"specialties"`
}

// RecommendRequest is the body of POST /api/hospitals/recommend.
type RecommendRequest struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	TriageLevel string   `json:"triage_level"`
	Symptoms    []string `json:"symptoms"`
	MaxDistance float64  `json:"max_distance"`
}

type listResponse[T any] struct {
	Success   bool `json:"success"`
	Hospitals []T  `json:"hospitals"`
	Count     int  `json:"count"`
}

// UploadResponse reports a roster upload.
type UploadResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	HospitalCount int      `json:"hospital_count"`
	Errors        []string `json:"errors"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler serves the hospital endpoints.
type Handler struct {
	dir   Directory
	token string
	log   logger.Logger
	mux   *http.ServeMux
}

// NewHandler registers:
//
//	POST /api/hospitals/search
//	POST /api/hospitals/recommend
//	POST /api/hospitals/upload
//	GET  /api/hospitals/facilities
//	GET  /api/hospitals/specialties
//	GET  /api/hospitals/stats
//	GET  /api/hospitals/template
//
// Uploads replace the directory and need "Bearer <token>" when token is
// non-empty.
func NewHandler(dir Directory, token string, log logger.Logger) *Handler {
	h := &Handler{dir: dir, token: token, log: log, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /api/hospitals/search", h.search)
	h.mux.HandleFunc("POST /api/hospitals/recommend", h.recommend)
	h.mux.HandleFunc("POST /api/hospitals/upload", h.upload)
	h.mux.HandleFunc("GET /api/hospitals/facilities", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"facilities": dir.Facilities()})
	})
	h.mux.HandleFunc("GET /api/hospitals/specialties", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"specialties": dir.Specialties()})
	})
	h.mux.HandleFunc("GET /api/hospitals/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, dir.Stats())
	})
	h.mux.HandleFunc("GET /api/hospitals/template", h.template)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decode(w, r, &req) {
		return
	}
	origin, err := location(req.Latitude, req.Longitude)
	if err == nil && req.MaxDistance != nil && *req.MaxDistance < 0 {
		err = errors.New("max_distance must not be negative")
	}
	for _, l := range req.Levels {
		if err == nil && (l < model.MinLevel || l > model.MaxLevel) {
			err = fmt.Errorf("hospital_level %d is not between %d and %d", l, model.MinLevel, model.MaxLevel)
		}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	matches := h.dir.Search(origin, hospital.Query{
		MaxDistanceKm: req.MaxDistance,
		Levels:        req.Levels,
		Facilities:    req.Facilities,
		Specialties:   req.Specialties,
	})
	h.log.Debugf("hospital search at %.4f,%.4f: %d matches", origin.Lat, origin.Lng, len(matches))
	writeJSON(w, http.StatusOK, listResponse[hospital.Match]{Success: true, Hospitals: matches, Count: len(matches)})
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !decode(w, r, &req) {
		return
	}
	origin, err := location(req.Latitude, req.Longitude)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	triage, err := hospital.ParseTriage(req.TriageLevel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.MaxDistance < 0 {
		writeError(w, http.StatusBadRequest, errors.New("max_distance must not be negative"))
		return
	}
	recs := h.dir.Recommend(origin, triage, req.Symptoms, req.MaxDistance)
	writeJSON(w, http.StatusOK, listResponse[hospital.Recommendation]{Success: true, Hospitals: recs, Count: len(recs)})
}

// upload reads every multipart "files" part, merges the rows and replaces
// the directory when at least one hospital is usable. Files in an
// unsupported format or that fail to parse are reported and skipped.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errors.New("file too large, maximum size is 16MB"))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no files provided"))
		return
	}

	var (
		rows     []hospital.Row
		problems []string
		messages []string
	)
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		format := fleetsource.FormatFor(name)
		if format == "" {
			problems = append(problems, name+": invalid file type")
			continue
		}
		f, err := fh.Open()
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		got, err := fleetsource.ParseHospitals(r.Context(), format, f)
		_ = f.Close()
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		rows = append(rows, got...)
		messages = append(messages, fmt.Sprintf("%s: %d rows read", name, len(got)))
	}

	hs, skipped := hospital.FromRows(rows)
	problems = append(problems, skipped...)
	resp := UploadResponse{
		Success:       len(hs) > 0,
		Message:       "no valid files processed",
		HospitalCount: len(hs),
		Errors:        problems,
	}
	if len(messages) > 0 {
		resp.Message = strings.Join(messages, "\n")
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	if len(hs) == 0 {
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	h.dir.Replace(hs)
	h.log.Infof("hospital directory replaced: %d hospitals, %d problems", len(hs), len(problems))
	writeJSON(w, http.StatusOK, resp)
}

var templateRows = [][]string{
	{"name", "latitude", "longitude", "level", "address", "phone", "email", "website", "facilities", "specialties", "emergency_services", "bed_count"},
	{"City General Hospital", "40.7128", "-74.0060", "3", "123 Main St, New York, NY 10001", "+1-555-0123", "info@citygeneral.com", "https://www.citygeneral.com", "Emergency Room, ICU, Surgery", "General Medicine, Emergency Medicine", "true", "200"},
	{"Regional Medical Center", "34.0522", "-118.2437", "4", "456 Health Ave, Los Angeles, CA 90210", "+1-555-0456", "contact@regionalmedical.com", "https://www.regionalmedical.com", "Emergency Room, ICU, Surgery, Cardiology, Oncology", "Cardiology, Oncology, Neurology, Emergency Medicine", "true", "450"},
}

// template serves a CSV roster with the accepted columns and two example
// rows.
func (h *Handler) template(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="hospitals_template.csv"`)
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(templateRows); err != nil {
		h.log.Errorf("write hospital template: %v", err)
	}
}

func location(lat, lng *float64) (geo.Point, error) {
	if lat == nil || lng == nil {
		return geo.Point{}, errors.New("latitude and longitude are required")
	}
	p := geo.Point{Lat: *lat, Lng: *lng}
	return p, p.Validate()
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
