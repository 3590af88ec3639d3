package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"grimm.is/rulegate/internal/metrics"
	"grimm.is/rulegate/internal/rules"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*HTTPClient, *metrics.Registry) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	reg := metrics.New()
	return NewHTTPClient(server.URL, WithMetrics(reg)), reg
}

func TestHTTPClient_ListServices(t *testing.T) {
	c, reg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		json.NewEncoder(w).Encode([]string{"http", "ssh"})
	})

	names, err := c.ListServices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"http", "ssh"}, names)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.BackendRequests.WithLabelValues("services", "200")))
}

func TestHTTPClient_ListRules_EscapesService(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rules/filter/my%20svc", r.URL.EscapedPath())
		json.NewEncoder(w).Encode([]rules.Rule{{ID: 3, Payload: "aGk="}, {ID: 1, Payload: "AA=="}})
	})

	list, err := c.ListRules(context.Background(), "my svc")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].ID)
	assert.Equal(t, "aGk=", list[0].Payload)
}

func TestHTTPClient_ListAllRules(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rules", r.URL.Path)
		w.Write([]byte(`[{"id":1,"b64_rule":"aGk=","service_name":"http"}]`))
	})

	list, err := c.ListAllRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []rules.Rule{{ID: 1, Payload: "aGk=", ServiceName: "http"}}, list)
}

func TestHTTPClient_Login_KeepsCookie(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_token":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["password"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"message":"Wrong password"}`))
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "authToken", Value: "tok", Path: "/"})
		case "/services":
			if _, err := r.Cookie("authToken"); err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`["http"]`))
		}
	})

	ctx := context.Background()
	err := c.Login(ctx, "wrong")
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	_, err = c.ListServices(ctx)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	require.NoError(t, c.Login(ctx, "secret"))
	names, err := c.ListServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"http"}, names)
}

func TestHTTPClient_CreateRule(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var nr rules.NewRule
		require.NoError(t, json.NewDecoder(r.Body).Decode(&nr))
		switch nr.Type {
		case rules.TypeHex:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"Invalid hex string."}`))
		case rules.TypeBase64:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":9,"b64_rule":"aGk="}`))
		}
	})
	ctx := context.Background()

	created, err := c.CreateRule(ctx, rules.NewRule{ServiceName: "http", Text: "hi", Type: rules.TypeASCII})
	require.NoError(t, err)
	assert.Equal(t, int64(9), created.ID)
	assert.Equal(t, "http", created.ServiceName)

	_, err = c.CreateRule(ctx, rules.NewRule{ServiceName: "http", Text: "zz", Type: rules.TypeHex})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "Invalid hex string.", ve.Message)

	_, err = c.CreateRule(ctx, rules.NewRule{ServiceName: "http", Text: "x", Type: rules.TypeBase64})
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.False(t, errors.As(err, &ve))
}

func TestHTTPClient_DeleteRule(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/rules/7" {
			w.Write([]byte(`{"message":"Ok."}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Rule not found."}`))
	})
	ctx := context.Background()

	require.NoError(t, c.DeleteRule(ctx, 7))

	err := c.DeleteRule(ctx, 8)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Rule not found.", se.Message)
}

func TestHTTPClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	reg := metrics.New()
	c := NewHTTPClient(url, WithMetrics(reg))
	_, err := c.ListServices(context.Background())
	require.Error(t, err)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.BackendRequests.WithLabelValues("services", "transport_error")))
}

func TestHTTPClient_Ping(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthorized"}`))
	})
	assert.NoError(t, c.Ping(context.Background()))

	server := httptest.NewServer(http.NotFoundHandler())
	down := NewHTTPClient(server.URL, WithMetrics(metrics.New()))
	server.Close()
	assert.Error(t, down.Ping(context.Background()))
}
