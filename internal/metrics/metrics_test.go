package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/spread-monitor/internal/logger"
)

func TestPrometheusReader_ExposesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	mp, err := NewMetricProvider(
		WithServiceName("test"),
		WithRegistry(reg),
		WithProviderConfig(ProviderCfg{Provider: PrometheusProvider}),
	)
	require.NoError(t, err)
	defer mp.Shutdown(context.Background())

	counter, err := mp.Meter("test").Int64Counter("hub_broadcast_cycles_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	srv := NewPromServer(logger.New(io.Discard, logger.LevelInfo, "test", nil), WithGatherer(reg))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "hub_broadcast_cycles_total"), string(body))
}

func TestPromServer_StartStop(t *testing.T) {
	srv := NewPromServer(logger.New(io.Discard, logger.LevelInfo, "test", nil),
		WithPort("0"), WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
