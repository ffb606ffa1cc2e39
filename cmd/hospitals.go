package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/hospital"
	"github.com/kilianp07/ambudispatch/infra/fleetsource"
)

var searchFlags struct {
	lat, lng    float64
	maxKm       float64
	levels      []int
	facilities  []string
	specialties []string
	json        bool
}

var recommendFlags struct {
	lat, lng float64
	maxKm    float64
	triage   string
	symptoms []string
}

var hospitalsCmd = &cobra.Command{
	Use:   "hospitals",
	Short: "Query the hospital directory",
}

var hospitalsSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "List hospitals near a point, closest first",
	RunE:  runHospitalsSearch,
}

var hospitalsRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank hospitals for a patient by triage level and symptoms",
	RunE:  runHospitalsRecommend,
}

func init() {
	f := hospitalsSearchCmd.Flags()
	f.Float64Var(&searchFlags.lat, "lat", 0, "latitude")
	f.Float64Var(&searchFlags.lng, "lng", 0, "longitude")
	f.Float64Var(&searchFlags.maxKm, "max-km", 0, "search radius in km, 0 for no limit")
	f.IntSliceVar(&searchFlags.levels, "level", nil, "hospital levels to keep (1-4)")
	f.StringSliceVar(&searchFlags.facilities, "facility", nil, "required facility, may be repeated")
	f.StringSliceVar(&searchFlags.specialties, "specialty", nil, "required specialty, may be repeated")
	f.BoolVar(&searchFlags.json, "json", false, "print JSON instead of a table")
	_ = hospitalsSearchCmd.MarkFlagRequired("lat")
	_ = hospitalsSearchCmd.MarkFlagRequired("lng")

	f = hospitalsRecommendCmd.Flags()
	f.Float64Var(&recommendFlags.lat, "lat", 0, "patient latitude")
	f.Float64Var(&recommendFlags.lng, "lng", 0, "patient longitude")
	f.Float64Var(&recommendFlags.maxKm, "max-km", hospital.DefaultRecommendRadiusKm, "search radius in km")
	f.StringVar(&recommendFlags.triage, "triage", string(hospital.TriageNonUrgent), "critical, urgent, semi-urgent or non-urgent")
	f.StringSliceVar(&recommendFlags.symptoms, "symptom", nil, "reported symptom, may be repeated")
	_ = hospitalsRecommendCmd.MarkFlagRequired("lat")
	_ = hospitalsRecommendCmd.MarkFlagRequired("lng")

	hospitalsCmd.AddCommand(hospitalsSearchCmd, hospitalsRecommendCmd)
	rootCmd.AddCommand(hospitalsCmd)
}

func loadDirectory(cmd *cobra.Command) (*hospital.Directory, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	src, err := fleetsource.OpenHospitals(cfg.Hospitals)
	if err != nil {
		return nil, err
	}
	dir, skipped, err := hospital.Load(cmd.Context(), src)
	if err != nil {
		return nil, err
	}
	for _, msg := range skipped {
		fmt.Fprintln(cmd.ErrOrStderr(), "skipped", msg)
	}
	return dir, nil
}

func runHospitalsSearch(cmd *cobra.Command, args []string) error {
	origin := geo.Point{Lat: searchFlags.lat, Lng: searchFlags.lng}
	if err := origin.Validate(); err != nil {
		return err
	}
	dir, err := loadDirectory(cmd)
	if err != nil {
		return err
	}
	q := hospital.Query{
		Levels:      searchFlags.levels,
		Facilities:  searchFlags.facilities,
		Specialties: searchFlags.specialties,
	}
	if searchFlags.maxKm > 0 {
		q.MaxDistanceKm = &searchFlags.maxKm
	}
	matches := dir.Search(origin, q)
	if searchFlags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLEVEL\tKM\tMIN\tFACILITIES")
	for _, m := range matches {
		km, mins := "-", "-"
		if m.DistanceKm != nil {
			km, mins = fmt.Sprintf("%.2f", *m.DistanceKm), fmt.Sprint(*m.TravelMinutes)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", m.ID, m.Name, m.Level, km, mins, strings.Join(m.Facilities, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d hospitals\n", len(matches), dir.Len())
	return err
}

func runHospitalsRecommend(cmd *cobra.Command, args []string) error {
	origin := geo.Point{Lat: recommendFlags.lat, Lng: recommendFlags.lng}
	if err := origin.Validate(); err != nil {
		return err
	}
	triage, err := hospital.ParseTriage(recommendFlags.triage)
	if err != nil {
		return err
	}
	dir, err := loadDirectory(cmd)
	if err != nil {
		return err
	}
	recs := dir.Recommend(origin, triage, recommendFlags.symptoms, recommendFlags.maxKm)
	if len(recs) == 0 {
		return fmt.Errorf("no hospital within %.0f km", recommendFlags.maxKm)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLEVEL\tKM\tSCORE\tREASON")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.1f\t%s\n", r.ID, r.Name, r.Level, *r.DistanceKm, r.PriorityScore, r.Reason)
	}
	return tw.Flush()
}
