package statusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/hub"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/player"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/protocol"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/queue"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/registry"
	"github.com/Vansh-Bhardwaj/debridui-sync-go/internal/session"
)

type errConn struct{ err error }

func (c errConn) Send(*protocol.ClientMessage) error { return c.err }
func (c errConn) Status() hub.Status {
	if c.err != nil {
		return hub.StatusDisconnected
	}
	return hub.StatusConnected
}

type stubAuth struct{ required bool }

func (s stubAuth) AuthRequired() bool { return s.required }

type stubBrowser struct {
	results []protocol.BrowseResult
	err     error
}

func (s stubBrowser) Browse(context.Context, string, protocol.BrowseQuery) ([]protocol.BrowseResult, error) {
	return s.results, s.err
}

type actionFixture struct {
	sendErr     error
	syncEnabled bool
	auth        Auth
	browser     Browser
}

func newActionRouter(t *testing.T, fx actionFixture) http.Handler {
	t.Helper()

	identity := protocol.DeviceIdentity{ID: "self-1", Name: "Desk", DeviceClass: protocol.DeviceClassDesktop}
	reg := registry.New("self-1", nil)
	reg.ApplyJoin(protocol.DeviceInfo{
		DeviceIdentity: protocol.DeviceIdentity{ID: "tv-1", Name: "Living Room", DeviceClass: protocol.DeviceClassTV},
		LastSeenAt:     1,
	})
	conn := errConn{err: fx.sendErr}
	store := queue.NewStore(conn, "self-1", nil)
	selector := player.NewSelector(nil, nil)
	sess := session.New(session.Options{
		Identity:   identity,
		Conn:       conn,
		Registry:   reg,
		Queue:      store,
		Dispatcher: player.NewDispatcher(selector, nil),
		Surfaces:   selector,
	})
	t.Cleanup(sess.Close)

	return NewRouter(Deps{
		Identity:    identity,
		Hub:         stubHub{status: conn.Status()},
		Registry:    reg,
		Queue:       store,
		Session:     sess,
		Browser:     fx.browser,
		Auth:        fx.auth,
		SyncEnabled: fx.syncEnabled,
	})
}

func post(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	router.ServeHTTP(recorder, request)
	return recorder
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body.Error.Code
}

func TestCommandEndpointSendsToTarget(t *testing.T) {
	router := newActionRouter(t, actionFixture{syncEnabled: true})

	recorder := post(t, router, "/v1/command", `{"targetId":"tv-1","command":{"action":"pause"}}`)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestCommandEndpointWhenSyncDisabled(t *testing.T) {
	router := newActionRouter(t, actionFixture{syncEnabled: false})

	recorder := post(t, router, "/v1/command", `{"targetId":"tv-1","command":{"action":"pause"}}`)
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Equal(t, "SYNC_DISABLED", errorCode(t, recorder))
}

func TestCommandEndpointMalformedBody(t *testing.T) {
	router := newActionRouter(t, actionFixture{syncEnabled: true})

	recorder := post(t, router, "/v1/command", `{"targetId":`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "PROTOCOL_ERROR", errorCode(t, recorder))
}

func TestCommandEndpointUnknownTarget(t *testing.T) {
	router := newActionRouter(t, actionFixture{syncEnabled: true})

	recorder := post(t, router, "/v1/command", `{"targetId":"ghost","command":{"action":"pause"}}`)
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Equal(t, "TARGET_UNAVAILABLE", errorCode(t, recorder))
}

func TestCommandEndpointDisconnected(t *testing.T) {
	router := newActionRouter(t, actionFixture{
		syncEnabled: true,
		sendErr:     hub.ErrNotConnected,
		auth:        stubAuth{required: false},
	})

	recorder := post(t, router, "/v1/command", `{"targetId":"tv-1","command":{"action":"pause"}}`)
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Equal(t, "NOT_CONNECTED", errorCode(t, recorder))
}

func TestCommandEndpointAuthExpired(t *testing.T) {
	router := newActionRouter(t, actionFixture{
		syncEnabled: true,
		sendErr:     hub.ErrNotConnected,
		auth:        stubAuth{required: true},
	})

	recorder := post(t, router, "/v1/command", `{"targetId":"tv-1","command":{"action":"pause"}}`)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, "AUTH_ERROR", errorCode(t, recorder))
}

func TestCommandEndpointSendFailure(t *testing.T) {
	router := newActionRouter(t, actionFixture{
		syncEnabled: true,
		sendErr:     errors.New("write: broken pipe"),
	})

	recorder := post(t, router, "/v1/command", `{"targetId":"tv-1","command":{"action":"pause"}}`)
	require.Equal(t, http.StatusBadGateway, recorder.Code)
	require.Equal(t, "TRANSPORT_ERROR", errorCode(t, recorder))
}

func TestTransferEndpointStartsHandoff(t *testing.T) {
	router := newActionRouter(t, actionFixture{syncEnabled: true})

	recorder := post(t, router, "/v1/transfer", `{"targetId":"tv-1","transfer":{"url":"http://s/a","title":"A"}}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, true, body["pending"])
}

func TestTransferEndpointUnknownTarget(t *testing.T) {
	router := newActionRouter(t, actionFixture{syncEnabled: true})

	recorder := post(t, router, "/v1/transfer", `{"targetId":"ghost","transfer":{"url":"http://s/a","title":"A"}}`)
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Equal(t, "TARGET_UNAVAILABLE", errorCode(t, recorder))
}

func TestBrowseEndpointReturnsResults(t *testing.T) {
	router := newActionRouter(t, actionFixture{
		syncEnabled: true,
		browser:     stubBrowser{results: []protocol.BrowseResult{{ID: "r1", Title: "Row"}}},
	})

	recorder := post(t, router, "/v1/browse", `{"targetId":"tv-1","query":{"path":"library"}}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Data []protocol.BrowseResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "r1", body.Data[0].ID)
}

func TestBrowseEndpointTimeout(t *testing.T) {
	router := newActionRouter(t, actionFixture{
		syncEnabled: true,
		browser:     stubBrowser{err: hub.ErrBrowseTimeout},
	})

	recorder := post(t, router, "/v1/browse", `{"targetId":"tv-1","query":{"path":"library"}}`)
	require.Equal(t, http.StatusGatewayTimeout, recorder.Code)
	require.Equal(t, "REQUEST_TIMEOUT", errorCode(t, recorder))
}

func TestNotifyEndpointSendsMessage(t *testing.T) {
	router := newActionRouter(t, actionFixture{syncEnabled: true})

	recorder := post(t, router, "/v1/notify", `{"targetId":"tv-1","message":"hello"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestSetTargetEndpointWorksOffline(t *testing.T) {
	router := newActionRouter(t, actionFixture{syncEnabled: false})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPut, "/v1/session/target", bytes.NewBufferString(`{"targetId":"tv-1"}`))
	router.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		TargetID string `json:"targetId"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "tv-1", body.TargetID)
}
