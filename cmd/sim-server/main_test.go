package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/logistics-simulator/internal/config"
	"github.com/signalsfoundry/logistics-simulator/internal/logging"
	"github.com/signalsfoundry/logistics-simulator/internal/nbi"
)

func TestSimServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.Store.Enabled = true
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = ""
	cfg.Influx.Enabled = false
	cfg.Tracing.Enabled = false
	cfg.Server.StreamInterval = 0

	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	log := logging.New(logging.Config{Level: "warn", Format: "text"})
	opts := serverOptions{ScenarioPath: "testdata/depot.yaml", Registry: prometheus.NewRegistry()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, opts, log, grpcLis, httpLis)
	}()

	conn, err := grpc.NewClient(grpcLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: nbi.ServiceName}, grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("health Check: %v", err)
	}
	if hc.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v, want SERVING", hc.GetStatus())
	}

	client := nbi.NewSimulationClient(conn)
	resp, err := client.Simulate(ctx, &structpb.Struct{})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	runID := resp.GetFields()["runId"].GetStringValue()

	httpResp, err := http.Get("http://" + httpLis.Addr().String() + "/archive/runs")
	if err != nil {
		t.Fatalf("GET /archive/runs: %v", err)
	}
	defer httpResp.Body.Close()
	var runs []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&runs); err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Fatalf("archived runs = %+v, want [%s]", runs, runID)
	}

	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestRunRejectsMissingScenario(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	grpcLis, _ := net.Listen("tcp", "127.0.0.1:0")
	httpLis, _ := net.Listen("tcp", "127.0.0.1:0")
	defer grpcLis.Close()
	defer httpLis.Close()

	opts := serverOptions{ScenarioPath: "testdata/missing.yaml", Registry: prometheus.NewRegistry()}
	if err := run(context.Background(), cfg, opts, logging.Noop(), grpcLis, httpLis); err == nil {
		t.Fatalf("run succeeded without a scenario file")
	}
}
