// Package testhelpers provides shared utilities for the relay's integration tests.
//
// It starts a fully wired relay on an httptest server, issues tokens signed
// with the test secret, and dials, sends and receives chat frames so test
// files stay focused on behaviour.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/securechat/internal/auth"
	"github.com/Tyrowin/securechat/internal/config"
	"github.com/Tyrowin/securechat/internal/logging"
	"github.com/Tyrowin/securechat/internal/server"
)

const (
	// Secret signs every token issued by a Relay.
	Secret = "integration-test-secret"
	// Origin is the allowed origin sent by Dial.
	Origin = "http://localhost:8080"
	// ReadTimeout bounds every ReceiveChat call.
	ReadTimeout = 2 * time.Second
)

// Relay is a running relay behind an httptest server.
type Relay struct {
	Server *server.Server
	HTTP   *httptest.Server
	WSURL  string

	issuer *auth.Issuer
}

// StartRelay starts a relay with test defaults. customize may adjust the
// configuration before the relay is built. The relay is shut down when the
// test ends.
func StartRelay(t *testing.T, customize func(cfg *config.Config)) *Relay {
	t.Helper()

	cfg := config.Default()
	cfg.JWTSecret = Secret
	cfg.AllowedOrigins = Origin
	cfg.ShutdownTimeout = 2 * time.Second
	if customize != nil {
		customize(&cfg)
	}
	require.NoError(t, cfg.Validate())

	log := logging.Discard()
	s := server.New(cfg, auth.NewVerifier([]byte(cfg.JWTSecret)), server.NewSlogLifecycle(log), log)
	s.StartHub()

	ts := httptest.NewServer(s.SetupRoutes())
	t.Cleanup(func() {
		_ = s.Hub().Shutdown(cfg.ShutdownTimeout)
		ts.Close()
	})

	return &Relay{
		Server: s,
		HTTP:   ts,
		WSURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		issuer: auth.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, time.Hour),
	}
}

// Token issues a valid token for userID.
func (r *Relay) Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := r.issuer.Issue(userID)
	require.NoError(t, err)
	return token
}

// Dial connects as userID with a fresh token and waits until the relay has
// admitted the connection.
func (r *Relay) Dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	before := r.Connections()
	conn, resp, err := DialToken(r.WSURL, r.Token(t, userID), nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })

	r.WaitForConnections(t, before+1)
	return conn
}

// Connections returns the number of admitted connections.
func (r *Relay) Connections() int {
	return r.Server.Hub().Registry().Len()
}

// WaitForConnections waits until exactly n connections are admitted.
func (r *Relay) WaitForConnections(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Connections() == n },
		2*time.Second, 10*time.Millisecond, "expected %d admitted connections", n)
}

// DialToken connects to url presenting token in the query string. header
// defaults to the allowed Origin. The handshake response is returned with
// its body closed so refusals can be inspected.
func DialToken(url, token string, header http.Header) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	if header == nil {
		header = http.Header{}
		header.Set("Origin", Origin)
	}
	if token != "" {
		url += "?token=" + token
	}

	conn, resp, err := dialer.Dial(url, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// SendChat sends a chat message frame.
func SendChat(conn *websocket.Conn, message string) error {
	return conn.WriteJSON(server.Event[server.InboundChat]{
		Event: server.EventChatMessage,
		Data:  server.InboundChat{Message: message},
	})
}

// ReceiveChat reads the next frame and decodes it as a chat message.
func ReceiveChat(t *testing.T, conn *websocket.Conn) server.ChatMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(ReadTimeout)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt server.Event[server.ChatMessage]
	require.NoError(t, json.Unmarshal(raw, &evt))
	require.Equal(t, server.EventChatMessage, evt.Event)
	return evt.Data
}

// ExpectNoMessage fails the test if a data frame arrives within timeout.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, got %s", raw)
	}
	if !isTimeout(err) {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ExpectClosed fails the test unless the server closes conn within timeout.
func ExpectClosed(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if isTimeout(err) {
			t.Fatalf("Connection still open after %v", timeout)
		}
		return
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}
