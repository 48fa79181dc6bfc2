package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datafed/cloudnode/pkg/protocol"
	"github.com/datafed/cloudnode/pkg/session"
)

type stubService struct {
	disconnects atomic.Int64
}

func (s *stubService) HandleMessage(_ context.Context, _ protocol.Connection, payload []byte) protocol.Result {
	if _, err := protocol.Parse(payload); err != nil {
		return protocol.Failure(protocol.ErrKindMalformed, err.Error())
	}

	return protocol.Unicast(protocol.NewRegistrationAck())
}

func (s *stubService) Disconnect(_ context.Context, _ protocol.Connection) []protocol.Result {
	s.disconnects.Add(1)

	return nil
}

func (s *stubService) SessionStatus(_ context.Context, repoID string) (session.Snapshot, error) {
	return session.Snapshot{RepoID: repoID}, nil
}

func (s *stubService) ResetSession(_ context.Context, _ string) error { return nil }

func (s *stubService) SetRepoKey(_ context.Context, _, _ string) error { return nil }

func dial(t *testing.T, srvURL string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srvURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestHandlerRoundTrip(t *testing.T) {
	svc := &stubService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewHandler(svc, logger, 0))
	defer srv.Close()

	conn := dial(t, srv.URL)

	payload := `{"type":"REGISTER","node_type":"LIBRARY","repo_id":"repo-1","api_key":"k"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ack protocol.RegistrationAck
	require.NoError(t, json.Unmarshal(data, &ack))
	assert.Equal(t, protocol.ActionRegistrationSuccess, ack.Action)
	assert.False(t, ack.Error)
}

func TestHandlerReportsMalformedFrames(t *testing.T) {
	svc := &stubService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewHandler(svc, logger, 0))
	defer srv.Close()

	conn := dial(t, srv.URL)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"BOGUS"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame protocol.ErrorFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.True(t, frame.Error)
	assert.Equal(t, protocol.ErrKindMalformed, frame.Kind)
}

func TestHandlerDisconnects(t *testing.T) {
	svc := &stubService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewHandler(svc, logger, 0))
	defer srv.Close()

	conn := dial(t, srv.URL)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return svc.disconnects.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandlerClosesOversizedFrames(t *testing.T) {
	svc := &stubService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewHandler(svc, logger, 128))
	defer srv.Close()

	conn := dial(t, srv.URL)

	big := `{"type":"REGISTER","node_type":"LIBRARY","repo_id":"` +
		strings.Repeat("x", 1024) + `","api_key":"k"}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(big)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	require.Eventually(t, func() bool {
		return svc.disconnects.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConnSendAfterClose(t *testing.T) {
	svc := &stubService{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewHandler(svc, logger, 0))
	defer srv.Close()

	wrapped := NewConn(dial(t, srv.URL))
	require.NoError(t, wrapped.Close())
	assert.ErrorIs(t, wrapped.Send("late"), ErrConnectionClosed)

	// Closing twice is safe.
	assert.NoError(t, wrapped.Close())
}
