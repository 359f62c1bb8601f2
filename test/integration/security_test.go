package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/securechat/internal/config"
	"github.com/Tyrowin/securechat/test/testhelpers"
)

func originHeader(origin string) http.Header {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return header
}

func TestOriginValidation(t *testing.T) {
	relay := testhelpers.StartRelay(t, func(cfg *config.Config) {
		cfg.AllowedOrigins = "http://localhost:8080, https://chat.example.com"
	})

	tests := []struct {
		name   string
		origin string
		want   int
	}{
		{"allowed origin", "http://localhost:8080", http.StatusSwitchingProtocols},
		{"second allowed origin", "https://chat.example.com", http.StatusSwitchingProtocols},
		{"case insensitive host", "https://CHAT.example.com", http.StatusSwitchingProtocols},
		{"disallowed origin", "http://evil.example", http.StatusForbidden},
		{"scheme mismatch", "http://chat.example.com", http.StatusForbidden},
		{"missing origin", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := testhelpers.DialToken(relay.WSURL, relay.Token(t, "alice"), originHeader(tt.origin))
			if conn != nil {
				defer func() { _ = conn.Close() }()
			}
			if tt.want != http.StatusSwitchingProtocols {
				require.ErrorIs(t, err, websocket.ErrBadHandshake)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestOriginCheckedBeforeToken(t *testing.T) {
	relay := testhelpers.StartRelay(t, nil)

	_, resp, err := testhelpers.DialToken(relay.WSURL, "garbage", originHeader("http://evil.example"))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWildcardOrigin(t *testing.T) {
	relay := testhelpers.StartRelay(t, func(cfg *config.Config) {
		cfg.AllowedOrigins = "*"
	})

	conn, _, err := testhelpers.DialToken(relay.WSURL, relay.Token(t, "alice"), originHeader("http://anything.example"))
	require.NoError(t, err)
	_ = conn.Close()
}

func TestMessageSizeLimit(t *testing.T) {
	relay := testhelpers.StartRelay(t, func(cfg *config.Config) {
		cfg.MaxMessageSize = 32
	})

	t.Run("message at the limit is relayed", func(t *testing.T) {
		conn := relay.Dial(t, "alice")
		msg := strings.Repeat("a", 32)
		require.NoError(t, testhelpers.SendChat(conn, msg))
		require.Equal(t, msg, testhelpers.ReceiveChat(t, conn).Message)
	})

	t.Run("oversized message is discarded", func(t *testing.T) {
		conn := relay.Dial(t, "bob")
		require.NoError(t, testhelpers.SendChat(conn, strings.Repeat("b", 33)))
		require.NoError(t, testhelpers.SendChat(conn, "small"))
		require.Equal(t, "small", testhelpers.ReceiveChat(t, conn).Message)
	})

	t.Run("oversized frame closes the connection", func(t *testing.T) {
		conn := relay.Dial(t, "carol")
		before := relay.Connections()

		require.NoError(t, testhelpers.SendChat(conn, strings.Repeat("c", 4096)))
		testhelpers.ExpectClosed(t, conn, 2*time.Second)
		relay.WaitForConnections(t, before-1)
	})
}

func TestRateLimiting(t *testing.T) {
	req := require.New(t)
	relay := testhelpers.StartRelay(t, func(cfg *config.Config) {
		cfg.RateLimitBurst = 2
		cfg.RateLimitRefillInterval = time.Hour
	})

	conn := relay.Dial(t, "alice")
	for _, msg := range []string{"one", "two", "three", "four"} {
		req.NoError(testhelpers.SendChat(conn, msg))
	}

	req.Equal("one", testhelpers.ReceiveChat(t, conn).Message)
	req.Equal("two", testhelpers.ReceiveChat(t, conn).Message)
	testhelpers.ExpectNoMessage(t, conn, 300*time.Millisecond)

	// Throttled clients stay connected.
	req.Equal(1, relay.Connections())
}

func TestConfigReloadAppliesToNewConnections(t *testing.T) {
	req := require.New(t)
	relay := testhelpers.StartRelay(t, nil)

	_, resp, _ := testhelpers.DialToken(relay.WSURL, relay.Token(t, "alice"), originHeader("https://new.example"))
	req.Equal(http.StatusForbidden, resp.StatusCode)

	updated := relay.Server.Config()
	updated.AllowedOrigins = "https://new.example"
	relay.Server.ApplyConfig(&updated)

	conn, resp, err := testhelpers.DialToken(relay.WSURL, relay.Token(t, "alice"), originHeader("https://new.example"))
	req.NoError(err)
	defer func() { _ = conn.Close() }()
	req.Equal(http.StatusSwitchingProtocols, resp.StatusCode)
}
