package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/rulegate/internal/logging"
	"grimm.is/rulegate/internal/metrics"
)

func TestClientIP_UntrustedPeer(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/get_token", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", Proxies(nil).ClientIP(r))

	// Headers from a peer nobody vouches for are ignored.
	r.Header.Set("X-Real-IP", "10.0.0.2")
	r.Header.Set("X-Forwarded-For", "192.0.2.1")
	assert.Equal(t, "10.0.0.9", Proxies(nil).ClientIP(r))

	proxies, err := ParseProxies([]string{"127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", proxies.ClientIP(r))
}

func TestClientIP_TrustedProxy(t *testing.T) {
	proxies, err := ParseProxies([]string{"10.0.0.0/24", "::1"})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/get_token", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", proxies.ClientIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7", proxies.ClientIP(r))

	// The client may prepend anything; the rightmost untrusted hop wins.
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 192.0.2.1, 10.0.0.3")
	assert.Equal(t, "192.0.2.1", proxies.ClientIP(r))

	r.Header.Set("X-Forwarded-For", "garbage")
	assert.Equal(t, "192.0.2.7", proxies.ClientIP(r))

	r = httptest.NewRequest(http.MethodPost, "/get_token", nil)
	r.RemoteAddr = "[::1]:4000"
	r.Header.Set("X-Forwarded-For", "192.0.2.44")
	assert.Equal(t, "192.0.2.44", proxies.ClientIP(r))
}

func TestParseProxies(t *testing.T) {
	_, err := ParseProxies([]string{"proxy.local"})
	assert.Error(t, err)

	_, err = ParseProxies([]string{"10.0.0.0/40"})
	assert.Error(t, err)

	p, err := ParseProxies(nil)
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestWriteMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteMessage(rec, http.StatusNotFound, "Rule not found.")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"Rule not found."}`, rec.Body.String())
}

func TestAccessLog_LabelsByRoute(t *testing.T) {
	reg := metrics.New()
	logger := logging.New(logging.Config{Output: io.Discard, Diagnostics: logging.NewRingBuffer(10)})

	r := mux.NewRouter()
	r.Use(AccessLog(logger, reg, nil))
	r.HandleFunc("/rules/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodDelete)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/rules/12", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.APIRequests.WithLabelValues("DELETE", "/rules/{id:[0-9]+}", "404")))
}
