package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/app"
	"github.com/kilianp07/ambudispatch/core/dispatch"
	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/notify"
	"github.com/kilianp07/ambudispatch/infra/logger"
)

var dispatchFlags struct {
	lat, lng float64
	level    int
	caller   string
	notify   bool
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one dispatch decision against the configured fleet and oracle",
	RunE:  runDispatch,
}

func init() {
	f := dispatchCmd.Flags()
	f.Float64Var(&dispatchFlags.lat, "lat", 0, "emergency latitude")
	f.Float64Var(&dispatchFlags.lng, "lng", 0, "emergency longitude")
	f.IntVar(&dispatchFlags.level, "level", 1, "required capability level (1-4)")
	f.StringVar(&dispatchFlags.caller, "caller", "cli", "caller identifier")
	f.BoolVar(&dispatchFlags.notify, "notify", false, "send the assignment through the configured transport")
	_ = dispatchCmd.MarkFlagRequired("lat")
	_ = dispatchCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var opts app.Options
	if !dispatchFlags.notify {
		opts.Notifier = notify.NopNotifier{}
	}
	svc, err := app.NewWithOptions(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("dispatch-command").Errorf("service close: %v", err)
		}
	}()
	svc.Start(ctx)

	out, err := svc.Coordinator.Dispatch(ctx, model.EmergencyRequest{
		CallerID: dispatchFlags.caller,
		Position: &geo.Point{Lat: dispatchFlags.lat, Lng: dispatchFlags.lng},
		Level:    dispatchFlags.level,
	})
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err != nil {
		_ = enc.Encode(map[string]string{
			"status":  "error",
			"kind":    string(dispatch.KindOf(err)),
			"message": err.Error(),
		})
		return err
	}
	return enc.Encode(out)
}
