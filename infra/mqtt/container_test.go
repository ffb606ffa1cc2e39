package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/ambudispatch/core/notify"
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
`

func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	require.NoError(t, os.WriteFile(path, []byte(mosquittoConf), 0o644))

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("mosquitto container: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })

	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "1883")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// startCrew answers every assignment for unitID with an ack.
func startCrew(t *testing.T, broker, unitID string) {
	t.Helper()
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("crew-" + unitID))
	var err error
	for i := 0; i < 5; i++ {
		token := cli.Connect()
		token.Wait()
		if err = token.Error(); err == nil {
			break
		}
		time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
	}
	if err != nil {
		t.Skipf("mosquitto not ready: %v", err)
	}
	t.Cleanup(func() { cli.Disconnect(100) })

	prefix := DefaultTopicPrefix + "/" + unitID
	token := cli.Subscribe(prefix+"/dispatch", 1, func(c paho.Client, m paho.Message) {
		var a notify.Assignment
		if json.Unmarshal(m.Payload(), &a) != nil {
			return
		}
		payload, _ := json.Marshal(notify.Ack{CommandID: a.CommandID, UnitID: unitID})
		c.Publish(prefix+"/ack", 1, false, payload)
	})
	token.Wait()
	require.NoError(t, token.Error())
}

func TestAssignmentAckWithMosquitto(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startMosquitto(ctx, t)
	startCrew(t, broker, "C")

	cli, err := NewPahoClient(Config{Broker: broker, ClientID: "dispatcher"})
	require.NoError(t, err)
	defer func() { _ = cli.Close() }()

	cmdID, err := cli.SendAssignment(notify.Assignment{DispatchID: "d1", UnitID: "C", Level: 3})
	require.NoError(t, err)
	ok, err := cli.WaitForAck(cmdID, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
