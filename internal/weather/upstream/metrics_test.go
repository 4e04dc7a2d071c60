package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/skycache/skycache/internal/provider/resilience"
	"github.com/skycache/skycache/internal/weather/upstream"
)

func newTestMetrics(t *testing.T) (*upstream.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := upstream.NewMetricsWithMeter(provider.Meter("test"))
	require.NoError(t, err)
	return metrics, reader
}

// requestCounts returns weather.upstream.request.total keyed by
// operation and result.
func requestCounts(t *testing.T, reader *sdkmetric.ManualReader) map[[2]string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[[2]string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "weather.upstream.request.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "unexpected aggregation %T", m.Data)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				result, _ := dp.Attributes.Value(attribute.Key("result"))
				out[[2]string{op.AsString(), result.AsString()}] += dp.Value
			}
		}
	}
	return out
}

func TestMetrics_RecordRequest(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	metrics.RecordRequest(upstream.ProviderName, "get weather", 120*time.Millisecond, nil)
	metrics.RecordRequest(upstream.ProviderName, "get weather", 80*time.Millisecond, errors.New("status 503"))
	metrics.RecordRequest(upstream.ProviderName, "get overview", 50*time.Millisecond, nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["weather.upstream.request.duration"])
	assert.True(t, names["weather.upstream.request.total"])

	assert.Equal(t, map[[2]string]int64{
		{"get weather", "success"}:  1,
		{"get weather", "error"}:    1,
		{"get overview", "success"}: 1,
	}, requestCounts(t, reader))
}

func TestMetrics_NilRecordsNothing(t *testing.T) {
	var metrics *upstream.Metrics
	assert.NotPanics(t, func() {
		metrics.RecordRequest(upstream.ProviderName, "get weather", time.Second, nil)
	})
}

func TestClient_RecordsRequestResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/getWeather" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]interface{}{
			"list": []map[string]interface{}{{
				"dt":      1700010800,
				"weather": []map[string]string{{"description": "light rain", "icon": "10d"}},
			}},
		})
	}))
	t.Cleanup(server.Close)

	metrics, reader := newTestMetrics(t)
	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL:  server.URL,
		Registry: resilience.NewRegistry(),
		Timeout:  time.Second,
		Metrics:  metrics,
	})

	_, err := client.FetchObservation(context.Background(), testCoord)
	require.Error(t, err)
	_, err = client.FetchForecast(context.Background(), testCoord)
	require.NoError(t, err)

	counts := requestCounts(t, reader)
	assert.Equal(t, int64(1), counts[[2]string{"get weather", "error"}])
	assert.Equal(t, int64(1), counts[[2]string{"get overview", "success"}])
}
