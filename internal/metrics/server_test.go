package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()

	s := NewServer(&config.MetricsConfig{Enabled: true, ListenAddress: "127.0.0.1:0", Path: "/metrics"},
		logger.NewNopLogger())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { require.NoError(t, s.Stop(context.Background())) })

	return "http://" + s.Addr().String()
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()

	resp, err := http.Get(url) //nolint:noctx
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, body
}

func TestServer_Disabled(t *testing.T) {
	s := NewServer(&config.MetricsConfig{ListenAddress: "127.0.0.1:0"}, logger.NewNopLogger())
	require.NoError(t, s.Start(context.Background()))
	require.Nil(t, s.Addr())
	require.NoError(t, s.Stop(context.Background()))
}

func TestServer_ExposesMetrics(t *testing.T) {
	base := startServer(t)

	BatchHandled("drops", 3, 100, 109, 0)

	status, body := get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), `dropindexer_logs_indexed_total{indexer="drops"}`)
	require.Contains(t, string(body), `dropindexer_last_indexed_block{indexer="drops"} 109`)
	require.Contains(t, string(body), "dropindexer_uptime_seconds")
}

func TestServer_Health(t *testing.T) {
	base := startServer(t)

	ComponentHealthSet("entity-store", true)
	status, _ := get(t, base+"/health")
	require.Equal(t, http.StatusOK, status)

	ComponentHealthSet("reorg-detector", false)
	t.Cleanup(func() { ComponentHealthSet("reorg-detector", true) })

	status, body := get(t, base+"/health")
	require.Equal(t, http.StatusServiceUnavailable, status)

	var report struct {
		Healthy    bool            `json:"healthy"`
		Components map[string]bool `json:"components"`
	}
	require.NoError(t, json.Unmarshal(body, &report))
	require.False(t, report.Healthy)
	require.False(t, report.Components["reorg-detector"])
}

func TestServer_BindError(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Enabled: true, ListenAddress: "256.0.0.1:99999", Path: "/metrics"},
		logger.NewNopLogger())
	require.ErrorContains(t, s.Start(context.Background()), "failed to listen")
}
