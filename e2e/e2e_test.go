package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/flexmarket/app"
	"github.com/kilianp07/flexmarket/config"
	"github.com/kilianp07/flexmarket/core/factory"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/infra/mqtt"
	"github.com/kilianp07/flexmarket/pkg/export"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// startInflux starts an InfluxDB 2.7 container, onboarded with the e2e org,
// bucket and token, and returns its base URL.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
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
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto spins up a Mosquitto broker accepting anonymous clients.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func subscribeResults(t *testing.T, broker, topic string) <-chan []byte {
	t.Helper()
	out := make(chan []byte, 4)
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("e2e-results")
	cli := paho.NewClient(opts)
	tok := cli.Connect()
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())
	t.Cleanup(func() { cli.Disconnect(100) })
	tok = cli.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) { out <- m.Payload() })
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())
	return out
}

// Test_E2E_MarketRound runs one clearing round through a real broker and
// checks the published result and the InfluxDB measurements.
func Test_E2E_MarketRound(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	influxCont, influxURL := startInflux(ctx, t)
	defer influxCont.Terminate(ctx) //nolint:errcheck
	mqttCont, brokerURL := startMosquitto(ctx, t)
	defer mqttCont.Terminate(ctx) //nolint:errcheck
	t.Logf("InfluxDB started at %s", influxURL)
	t.Logf("Mosquitto started at %s", brokerURL)

	cfg := config.Default()
	cfg.Market.Curve = []int{5, 5}
	cfg.Market.ClearIntervalSeconds = 0
	cfg.MQTT.Broker = brokerURL
	cfg.MQTT.ClientID = "e2e-market"
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket,
	}}}

	results := subscribeResults(t, brokerURL, cfg.MQTT.ResultTopic)

	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = svc.Run(runCtx) }()

	bidderCfg := cfg.MQTT
	bidderCfg.ClientID = "e2e-bidder"
	bidder, err := mqtt.NewPahoClient(bidderCfg)
	require.NoError(t, err)
	defer bidder.Disconnect()

	b, err := model.NewBid("agg-e2e", []model.LineItem{{Interval: 0, Offered: 3}, {Interval: 1, Offered: 2}}, decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		if svc.Pending() > 0 {
			return true
		}
		_ = bidder.PublishBid(ctx, b)
		return false
	}, 20*time.Second, 500*time.Millisecond)

	res, err := svc.ClearRound(ctx)
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)

	select {
	case payload := <-results:
		var rec export.ResultRecord
		require.NoError(t, json.Unmarshal(payload, &rec))
		assert.Equal(t, res.RoundID, rec.RoundID)
		require.Len(t, rec.Accepted, 1)
		assert.Equal(t, "agg-e2e", rec.Accepted[0].AggregatorID)
		assert.Equal(t, []int{2, 3}, rec.Remaining)
	case <-time.After(20 * time.Second):
		t.Fatal("no result published")
	}

	cli := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer cli.Close()
	for _, m := range []string{"bid_submission", "clearing_round"} {
		n, err := cli.CountPoints(ctx, m)
		require.NoError(t, err)
		assert.Positive(t, n, m)
	}
}
