package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/media"
	"telecare-calling/internal/repository"
	"telecare-calling/internal/service/call"
	"telecare-calling/internal/signalstore/memory"
	apperrors "telecare-calling/pkg/errors"
)

type stubController struct {
	onCandidate func(string)
}

func (s *stubController) CreateOffer(context.Context) (*domain.SessionDescription, error) {
	return &domain.SessionDescription{Type: "offer", SDP: "v=0 stub-offer"}, nil
}

func (s *stubController) AcceptOffer(context.Context, *domain.SessionDescription) (*domain.SessionDescription, error) {
	return &domain.SessionDescription{Type: "answer", SDP: "v=0 stub-answer"}, nil
}

func (s *stubController) AcceptAnswer(context.Context, *domain.SessionDescription) error {
	return nil
}

func (s *stubController) AddRemoteCandidate(string) error { return nil }

func (s *stubController) OnLocalCandidate(fn func(string)) { s.onCandidate = fn }

func (s *stubController) SetMuted(bool)     {}
func (s *stubController) SetCameraOff(bool) {}
func (s *stubController) Close() error      { return nil }

type stubFactory struct{}

func (stubFactory) New(context.Context, domain.CallType) (media.Controller, error) {
	return &stubController{}, nil
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	hub := NewHub(HubConfig{
		Sessions:   repository.NewSessionRepository(store),
		Registry:   repository.NewRegistryRepository(store),
		Candidates: repository.NewCandidateRepository(store),
		Media:      stubFactory{},
	})

	router := gin.New()
	router.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return hub, srv
}

func dialWS(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user_id=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCmd(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil reads server events until pred matches one, failing on timeout.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(*ServerMessage) bool) *ServerMessage {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "timed out waiting for event")
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		if pred(&msg) {
			return &msg
		}
	}
}

func waitForState(t *testing.T, conn *websocket.Conn, want call.State) *ServerMessage {
	t.Helper()
	return readUntil(t, conn, func(m *ServerMessage) bool {
		return m.Type == EventCallState && m.Call != nil && m.Call.State == want
	})
}

func TestServeWSRequiresUserID(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCallFlowsOverWebSocket(t *testing.T) {
	_, srv := newTestServer(t)

	alice := dialWS(t, srv, "alice")
	bob := dialWS(t, srv, "bob")

	sendCmd(t, alice, ClientMessage{Type: CmdStart, Peer: "bob", CallType: "video", ConversationID: "conv-1"})

	ringing := waitForState(t, alice, call.StateRinging)
	assert.Equal(t, domain.RoleCaller, ringing.Call.Role)
	assert.Equal(t, "bob", ringing.Call.Peer)

	incoming := readUntil(t, bob, func(m *ServerMessage) bool {
		return m.Type == EventIncomingCall
	})
	require.NotNil(t, incoming.Incoming)
	assert.Equal(t, "alice", incoming.Incoming.CallerID)
	assert.Equal(t, domain.CallTypeVideo, incoming.Incoming.CallType)

	// Opening the call view accepts: peer and type default to the pointer's.
	sendCmd(t, bob, ClientMessage{Type: CmdStart})

	aliceConnected := waitForState(t, alice, call.StateConnected)
	assert.Equal(t, domain.CallTypeVideo, aliceConnected.Call.CallType)
	bobConnected := waitForState(t, bob, call.StateConnected)
	assert.Equal(t, domain.RoleCallee, bobConnected.Call.Role)

	sendCmd(t, alice, ClientMessage{Type: CmdEnd})
	waitForState(t, alice, call.StateEnded)
	waitForState(t, bob, call.StateEnded)
}

func TestDeclineDismissesIncomingCall(t *testing.T) {
	_, srv := newTestServer(t)

	alice := dialWS(t, srv, "alice")
	bob := dialWS(t, srv, "bob")

	sendCmd(t, alice, ClientMessage{Type: CmdStart, Peer: "bob", CallType: "voice"})
	waitForState(t, alice, call.StateRinging)

	readUntil(t, bob, func(m *ServerMessage) bool { return m.Type == EventIncomingCall })
	sendCmd(t, bob, ClientMessage{Type: CmdDecline})

	rejected := waitForState(t, alice, call.StateRejected)
	assert.Equal(t, call.StateRejected, rejected.Call.State)
}

func TestDeclineWithoutIncomingReturnsError(t *testing.T) {
	_, srv := newTestServer(t)

	carol := dialWS(t, srv, "carol")
	sendCmd(t, carol, ClientMessage{Type: CmdDecline})

	msg := readUntil(t, carol, func(m *ServerMessage) bool { return m.Type == EventError })
	require.NotNil(t, msg.Error)
	assert.Equal(t, string(apperrors.ErrCodeInvalidState), msg.Error.Code)
}

func TestUnknownCommandReturnsError(t *testing.T) {
	_, srv := newTestServer(t)

	alice := dialWS(t, srv, "alice")
	sendCmd(t, alice, ClientMessage{Type: "poke"})

	msg := readUntil(t, alice, func(m *ServerMessage) bool { return m.Type == EventError })
	require.NotNil(t, msg.Error)
	assert.Equal(t, string(apperrors.ErrCodeInvalidInput), msg.Error.Code)
}
