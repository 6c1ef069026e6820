package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/config"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/core"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/objstore"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/store"
)

type nopConn struct{}

func (nopConn) ReadMessage() (int, []byte, error) {
	select {}
}

func (nopConn) WriteMessage(int, []byte) error { return nil }
func (nopConn) SetWriteDeadline(time.Time) error { return nil }
func (nopConn) Close() error { return nil }

func testController() *Controller {
	ctl := NewController()
	ctl.Core = core.New(core.Options{
		Config: &config.Config{
			SecretCollectionSuffix: "secret",
			RoomNum:                10,
			TokenSecret:            "t",
			TokenExpires:           time.Hour,
			ServerVersion:          "Quoridorn 1.2.0",
		},
		Store:     store.NewMemory(),
		Objects:   objstore.NewMemory(),
		Transport: ctl,
	})
	return ctl
}

func TestDispatchGetVersion(t *testing.T) {
	ctl := testController()
	payload, err := ctl.dispatch(context.Background(), "s1", inbound{Event: "get-version"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"version": "Quoridorn 1.2.0"}, payload)
}

func TestDispatchUnknownEvent(t *testing.T) {
	ctl := testController()
	_, err := ctl.dispatch(context.Background(), "s1", inbound{Event: "bogus"})
	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "unknown event", appErr.Message)
}

func TestDispatchBadRequestData(t *testing.T) {
	ctl := testController()
	_, err := ctl.dispatch(context.Background(), "s1", inbound{Event: "room-api-touch-room"})
	_, ok := core.AsAppError(err)
	assert.True(t, ok, "missing data is the caller's fault")

	_, err = ctl.dispatch(context.Background(), "s1",
		inbound{Event: "room-api-touch-room", Data: json.RawMessage(`{"roomNo":`)})
	_, ok = core.AsAppError(err)
	assert.True(t, ok)
}

func TestErrorObjectShapes(t *testing.T) {
	obj := errorObject(core.NewAppError("out of range", 42)).(map[string]any)
	assert.Equal(t, "application", obj["type"])
	assert.Equal(t, "out of range", obj["message"])
	assert.Equal(t, 42, obj["detail"])

	obj = errorObject(core.NewSysError("no such socket", "s1")).(map[string]any)
	assert.Equal(t, "system", obj["type"])

	obj = errorObject(assert.AnError).(map[string]any)
	assert.Equal(t, "system", obj["type"])
}

func TestReplyEventNaming(t *testing.T) {
	ctl := testController()
	conn := newConnection("s1", nopConn{})
	ctl.conns["s1"] = conn

	ctl.reply("s1", "room-api-touch-room", core.NewAppError("out of range"), nil)

	raw := <-conn.send
	var msg struct {
		Event string         `json:"event"`
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "result-room-api-touch-room", msg.Event)
	assert.Equal(t, "application", msg.Error["type"])
}

func TestConnectionBackpressure(t *testing.T) {
	conn := newConnection("s1", nopConn{})
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, conn.TrySend([]byte("x")))
	}
	assert.ErrorIs(t, conn.TrySend([]byte("x")), ErrBackpressure)
}

func TestBroadcastSkipsExcluded(t *testing.T) {
	ctl := testController()
	a := newConnection("a", nopConn{})
	b := newConnection("b", nopConn{})
	ctl.conns["a"] = a
	ctl.conns["b"] = b

	require.NoError(t, ctl.ToAllExcept("a", "notify-room-update", nil, nil))
	assert.Empty(t, a.send)
	assert.Len(t, b.send, 1)

	require.NoError(t, ctl.ToAll("notify-room-update", nil, nil))
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 2)

	assert.Error(t, ctl.ToConnection("ghost", "evt", nil, nil))
}
