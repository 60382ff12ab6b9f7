package prometheus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStream(t *testing.T) {
	streamsTotal.Reset()
	streamDuration.Reset()

	RecordStream("claude", OutcomeComplete, 1.5)
	RecordStream("claude", OutcomeComplete, 0.5)
	RecordStream("claude", OutcomeStall, 30)

	if got := testutil.ToFloat64(streamsTotal.WithLabelValues("claude", OutcomeComplete)); got != 2 {
		t.Errorf("Expected 2 completed streams, got %f", got)
	}
	if got := testutil.ToFloat64(streamsTotal.WithLabelValues("claude", OutcomeStall)); got != 1 {
		t.Errorf("Expected 1 stalled stream, got %f", got)
	}
	if count := testutil.CollectAndCount(streamDuration); count != 2 {
		t.Errorf("Expected 2 duration series, got %d", count)
	}
}

func TestRecordStreamTokens(t *testing.T) {
	streamTokensTotal.Reset()

	RecordStreamTokens("gemini", 12)
	RecordStreamTokens("gemini", 0)

	if got := testutil.ToFloat64(streamTokensTotal.WithLabelValues("gemini")); got != 12 {
		t.Errorf("Expected 12 token chunks, got %f", got)
	}
}

func TestRecordFirstToken(t *testing.T) {
	streamFirstToken.Reset()

	RecordFirstToken("gemini", 0.2)

	if count := testutil.CollectAndCount(streamFirstToken); count != 1 {
		t.Errorf("Expected 1 first-token series, got %d", count)
	}
}

func TestRecordFallback(t *testing.T) {
	fallbacksTotal.Reset()

	RecordFallback("claude", "gemini", "success")

	if got := testutil.ToFloat64(fallbacksTotal.WithLabelValues("claude", "gemini", "success")); got != 1 {
		t.Errorf("Expected 1 fallback, got %f", got)
	}
}

func TestRecordLiveSession(t *testing.T) {
	liveSessionsActive.Set(0)
	liveSessionsTotal.Reset()

	RecordLiveSessionStart()
	RecordLiveSessionStart()
	if got := testutil.ToFloat64(liveSessionsActive); got != 2 {
		t.Errorf("Expected 2 active sessions, got %f", got)
	}

	RecordLiveSessionEnd("client")
	if got := testutil.ToFloat64(liveSessionsActive); got != 1 {
		t.Errorf("Expected 1 active session, got %f", got)
	}
	if got := testutil.ToFloat64(liveSessionsTotal.WithLabelValues("client")); got != 1 {
		t.Errorf("Expected 1 client close, got %f", got)
	}

	RecordLiveSessionFailure("microphone")
	if got := testutil.ToFloat64(liveSessionsActive); got != 1 {
		t.Errorf("Failure must not change active sessions, got %f", got)
	}
}

func TestRecordAudioFrame(t *testing.T) {
	audioFramesTotal.Reset()

	RecordAudioFrame(DirectionSent, FrameOK)
	RecordAudioFrame(DirectionSent, FrameDropped)
	RecordAudioFrame(DirectionSent, FrameDropped)
	RecordAudioFrame(DirectionReceived, FrameOK)

	if got := testutil.ToFloat64(audioFramesTotal.WithLabelValues(DirectionSent, FrameDropped)); got != 2 {
		t.Errorf("Expected 2 dropped frames, got %f", got)
	}
	if got := testutil.ToFloat64(audioFramesTotal.WithLabelValues(DirectionReceived, FrameOK)); got != 1 {
		t.Errorf("Expected 1 received frame, got %f", got)
	}
}

func TestRecordHistoryStoreError(t *testing.T) {
	historyStoreErrorsTotal.Reset()

	RecordHistoryStoreError("save")

	if got := testutil.ToFloat64(historyStoreErrorsTotal.WithLabelValues("save")); got != 1 {
		t.Errorf("Expected 1 save error, got %f", got)
	}
}

func TestCollectorsReturnsCopy(t *testing.T) {
	cs := Collectors()
	if len(cs) != len(allMetrics) {
		t.Fatalf("Expected %d collectors, got %d", len(allMetrics), len(cs))
	}
	cs[0] = nil
	if allMetrics[0] == nil {
		t.Error("Collectors must not expose the internal slice")
	}
}

func TestNewExporter(t *testing.T) {
	exporter := NewExporter(":9091")
	if exporter == nil {
		t.Fatal("Expected non-nil exporter")
	}
	if exporter.Registry() == nil {
		t.Error("Expected non-nil registry")
	}
	if exporter.Addr() != ":9091" {
		t.Errorf("Expected addr :9091, got %s", exporter.Addr())
	}
}

func TestExporterHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Collectors()...)
	RecordStream("gemini", OutcomeComplete, 0.1)

	exporter := NewExporterWithRegistry(":9093", reg)
	if exporter.Registry() != reg {
		t.Error("Expected custom registry to be used")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "regis_streams_total") {
		t.Error("Expected response to contain regis_streams_total")
	}
}

func TestExporterHealth(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("Expected 200 ok, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestExporterListenReportsBoundAddr(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	if err := exporter.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer func() { _ = exporter.Shutdown(context.Background()) }()

	if strings.HasSuffix(exporter.Addr(), ":0") {
		t.Errorf("Expected a concrete port, got %s", exporter.Addr())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- exporter.Serve() }()

	resp, err := http.Get("http://" + exporter.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exporter.Shutdown(ctx); err != nil {
		t.Errorf("Expected no error on shutdown, got %v", err)
	}
	if err := <-errCh; err != http.ErrServerClosed {
		t.Errorf("Expected ErrServerClosed, got %v", err)
	}
}

func TestExporterListenAfterShutdown(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	if err := exporter.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := exporter.Listen(); err != ErrExporterClosed {
		t.Errorf("Expected ErrExporterClosed, got %v", err)
	}
}

func TestExporterListenBindError(t *testing.T) {
	first := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	if err := first.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer func() { _ = first.Shutdown(context.Background()) }()

	second := NewExporterWithRegistry(first.Addr(), prometheus.NewRegistry())
	if err := second.Listen(); err == nil {
		t.Error("Expected bind error for an address in use")
	}
}

func TestExporterStartShutdown(t *testing.T) {
	exporter := NewExporterWithRegistry("127.0.0.1:0", prometheus.NewRegistry())

	errCh := make(chan error, 1)
	go func() {
		errCh <- exporter.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := exporter.Shutdown(ctx); err != nil {
		t.Errorf("Expected no error on shutdown, got %v", err)
	}

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for server to stop")
	}
}

func TestExporterDoubleStart(t *testing.T) {
	exporter := NewExporterWithRegistry(":0", prometheus.NewRegistry())

	go func() {
		_ = exporter.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	if err := exporter.Start(); err != nil {
		t.Errorf("Expected nil on double start, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = exporter.Shutdown(ctx)
}
