package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"github.com/kilianp07/ambudispatch/infra/mqtt"
	"github.com/kilianp07/ambudispatch/simulator"
)

var crewSimFlags struct {
	broker   string
	delay    time.Duration
	jitter   time.Duration
	dropRate float64
	seed     uint64
}

var crewSimCmd = &cobra.Command{
	Use:   "crew-sim",
	Short: "Simulate ambulance crews acknowledging assignments over MQTT",
	RunE:  runCrewSim,
}

func init() {
	f := crewSimCmd.Flags()
	f.StringVar(&crewSimFlags.broker, "broker", "", "MQTT broker URL (defaults to notify.mqtt.broker)")
	f.DurationVar(&crewSimFlags.delay, "ack-delay", 0, "delay before each ack")
	f.DurationVar(&crewSimFlags.jitter, "jitter", 0, "random extra delay")
	f.Float64Var(&crewSimFlags.dropRate, "drop-rate", 0, "probability of never acking")
	f.Uint64Var(&crewSimFlags.seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	rootCmd.AddCommand(crewSimCmd)
}

func runCrewSim(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mc := cfg.Notify.MQTT
	if crewSimFlags.broker != "" {
		mc.Broker = crewSimFlags.broker
	}
	mc.SetDefaults()
	mc.ClientID += "-crew-sim"
	mc.LWTTopic = ""
	if mc.Broker == "" {
		return fmt.Errorf("crew-sim: no broker configured")
	}
	opts, err := mqtt.NewClientOptions(mc)
	if err != nil {
		return err
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect %s: %w", mc.Broker, token.Error())
	}
	defer cli.Disconnect(250)

	strategy := simulator.NewRandomAck(crewSimFlags.delay, crewSimFlags.jitter, crewSimFlags.dropRate, crewSimFlags.seed)
	return simulator.NewCrew(mc.TopicPrefix, strategy).Run(ctx, cli)
}
