package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCounter int

func (c staticCounter) ConnectionCount() int { return int(c) }

func TestGetHealthReportsOK(t *testing.T) {
	h := NewHandler(staticCounter(3), func() string { return "connected" })

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "connected", body.Broker)
	assert.Equal(t, 3, body.Connections)
	assert.NotEmpty(t, body.Uptime)
}

func TestGetHealthDegradedWhenBrokerDown(t *testing.T) {
	h := NewHandler(staticCounter(0), func() string { return "connecting" })

	rec := httptest.NewRecorder()
	h.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "connecting", body.Broker)
}
