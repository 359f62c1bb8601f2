// Package integration exercises the relay end to end over real HTTP and
// WebSocket connections.
package integration

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/securechat/test/testhelpers"
)

func TestHealthEndpointIntegration(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, relay.HTTP.URL+"/")
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "Secure chat relay is running", string(body))
	require.Equal(t, "0", resp.Header.Get("X-Active-Connections"))
}

func TestHealthEndpointCountsConnections(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)

	alice := relay.Dial(t, "alice")
	relay.Dial(t, "bob")

	resp := testhelpers.MakeRequest(t, http.MethodGet, relay.HTTP.URL+"/")
	require.Equal(t, "2", resp.Header.Get("X-Active-Connections"))

	require.NoError(t, alice.Close())
	relay.WaitForConnections(t, 1)

	resp = testhelpers.MakeRequest(t, http.MethodGet, relay.HTTP.URL+"/")
	require.Equal(t, "1", resp.Header.Get("X-Active-Connections"))
}

func TestTestPageIntegration(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)

	resp := testhelpers.MakeRequest(t, http.MethodGet, relay.HTTP.URL+"/test")
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	testhelpers.AssertContentType(t, resp, "text/html")
}

func TestWebSocketEndpointRejectsPlainRequests(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)

	tests := []struct {
		name   string
		method string
		want   int
	}{
		{"POST", http.MethodPost, http.StatusMethodNotAllowed},
		{"PUT", http.MethodPut, http.StatusMethodNotAllowed},
		{"DELETE", http.MethodDelete, http.StatusMethodNotAllowed},
		// GET without an Origin header fails the origin check first.
		{"GET", http.MethodGet, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testhelpers.MakeRequest(t, tt.method, relay.HTTP.URL+"/ws")
			testhelpers.AssertStatusCode(t, resp, tt.want)
		})
	}
}
