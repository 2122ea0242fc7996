package observability_test

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treechurn/internal/observability"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestDiagnosticsServer_Endpoints(t *testing.T) {
	t.Parallel()

	_, handler, err := observability.NewPrometheusReader()
	require.NoError(t, err)

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", handler, nil, nil)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, srv.Close()) })

	status, body := get(t, "http://"+srv.Addr()+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	status, _ = get(t, "http://"+srv.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
}

func TestDiagnosticsServer_WithoutMetrics(t *testing.T) {
	t.Parallel()

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", nil, nil, nil)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, srv.Close()) })

	status, _ := get(t, "http://"+srv.Addr()+"/metrics")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDiagnosticsServer_ListenError(t *testing.T) {
	t.Parallel()

	_, err := observability.NewDiagnosticsServer("256.0.0.1:bad", nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
}
