package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/core/fleet"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/infra/fleetsource"
)

var fleetJSON bool

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Load the fleet source and list units",
	RunE:  runFleetLs,
}

func init() {
	fleetLsCmd.Flags().BoolVar(&fleetJSON, "json", false, "print JSON instead of a table")
	fleetCmd.AddCommand(fleetLsCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	src, err := fleetsource.Open(cfg.Fleet)
	if err != nil {
		return err
	}
	reg, err := fleet.Load(cmd.Context(), src)
	if err != nil {
		return err
	}
	if fleetJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(reg.Snapshot())
	}
	return printFleet(cmd, reg)
}

func printFleet(cmd *cobra.Command, reg *fleet.Registry) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLEVEL\tSTATUS\tLAT\tLNG\tREGION")
	for _, u := range reg.Snapshot() {
		lat, lng := "-", "-"
		if u.Position != nil {
			lat, lng = fmt.Sprintf("%.5f", u.Position.Lat), fmt.Sprintf("%.5f", u.Position.Lng)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", u.ID, u.Level, u.Status, lat, lng, u.Region)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	c := reg.Counts()
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "\n%d units: %d available, %d dispatched, %d unavailable\n",
		reg.Len(), c[model.StatusAvailable], c[model.StatusDispatched], c[model.StatusUnavailable])
	return err
}
