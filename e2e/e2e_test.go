package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/ambudispatch/app"
	"github.com/kilianp07/ambudispatch/config"
	"github.com/kilianp07/ambudispatch/core/notify"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

func startInflux(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "8086")
	require.NoError(t, err)
	return fmt.Sprintf("http://%s:%s", host, port.Port())
}

func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	conf := filepath.Join(t.TempDir(), "mosquitto.conf")
	require.NoError(t, os.WriteFile(conf, []byte("listener 1883\nallow_anonymous true\n"), 0o644))
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      conf,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "1883")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// crew acknowledges every assignment it receives and remembers them.
type crew struct {
	mu   sync.Mutex
	seen []notify.Assignment
}

func (c *crew) assignments() []notify.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Assignment(nil), c.seen...)
}

func startCrew(t *testing.T, broker string) *crew {
	t.Helper()
	cr := &crew{}
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("crew"))
	token := cli.Connect()
	token.Wait()
	require.NoError(t, token.Error())
	t.Cleanup(func() { cli.Disconnect(100) })

	token = cli.Subscribe("ambulance/+/dispatch", 1, func(c paho.Client, m paho.Message) {
		var a notify.Assignment
		if json.Unmarshal(m.Payload(), &a) != nil {
			return
		}
		cr.mu.Lock()
		cr.seen = append(cr.seen, a)
		cr.mu.Unlock()
		ack, _ := json.Marshal(notify.Ack{CommandID: a.CommandID, UnitID: a.UnitID})
		c.Publish(strings.TrimSuffix(m.Topic(), "/dispatch")+"/ack", 1, false, ack)
	})
	token.Wait()
	require.NoError(t, token.Error())
	return cr
}

func writeConfig(t *testing.T, broker, influxURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	fleet := filepath.Join(dir, "fleet.csv")
	require.NoError(t, os.WriteFile(fleet, []byte(`id,level,latitude,longitude,status
A,2,40.7580,-73.9855,available
B,3,40.7484,-73.9857,available
C,4,40.7527,-73.9772,available
`), 0o644))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
log_level: debug
routing:
  provider: simulated
fleet:
  source: csv
  path: %s
logging:
  backend: sqlite
  path: %s
metrics:
  sinks:
    - type: influx
      conf:
        url: %s
        token: %s
        org: %s
        bucket: %s
notify:
  transport: mqtt
  ack_timeout_seconds: 5
  mqtt:
    broker: %s
    client_id: ambudispatch-e2e
`, fleet, filepath.Join(dir, "decisions.db"), influxURL, influxToken, influxOrg, influxBucket, broker)), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestDispatchAgainstBrokerAndInflux(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	influxURL := startInflux(ctx, t)
	broker := startMosquitto(ctx, t)

	cli := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer cli.Close()
	require.NoError(t, cli.SetupBucket(ctx))

	cr := startCrew(t, broker)

	svc, err := app.New(ctx, writeConfig(t, broker, influxURL))
	require.NoError(t, err)
	svc.Start(ctx)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/dispatch", "application/json",
		strings.NewReader(`{"callerId":"e2e","location":{"lat":40.7505,"lng":-73.9934},"requiredLevel":3}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Status     string `json:"status"`
		DispatchID string `json:"dispatchId"`
		Unit       struct {
			ID string `json:"id"`
		} `json:"unit"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "success", out.Status)
	assert.Contains(t, []string{"B", "C"}, out.Unit.ID)

	require.Eventually(t, func() bool { return len(cr.assignments()) == 1 }, 10*time.Second, 50*time.Millisecond)
	a := cr.assignments()[0]
	assert.Equal(t, out.DispatchID, a.DispatchID)
	assert.Equal(t, out.Unit.ID, a.UnitID)

	n, err := cli.CountRecords(ctx, "dispatch_decision", "dispatch_id", out.DispatchID)
	require.NoError(t, err)
	assert.Positive(t, n)

	require.NoError(t, svc.Close())
}
