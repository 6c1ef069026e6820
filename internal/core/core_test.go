package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/config"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/interop"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/objstore"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/store"
)

// sentMsg is one delivered message, one record per receiving connection.
type sentMsg struct {
	ConnID  string
	Event   string
	Error   any
	Payload any
}

type fakeTransport struct {
	mu    sync.Mutex
	conns map[string]bool
	sent  []sentMsg
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{conns: make(map[string]bool)}
}

func (f *fakeTransport) register(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[id] = true
}

func (f *fakeTransport) unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns, id)
}

func (f *fakeTransport) ToConnection(connID, event string, errObj, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.conns[connID] {
		return fmt.Errorf("no connection %s", connID)
	}
	f.sent = append(f.sent, sentMsg{ConnID: connID, Event: event, Error: errObj, Payload: payload})
	return nil
}

func (f *fakeTransport) ToAll(event string, errObj, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.conns {
		f.sent = append(f.sent, sentMsg{ConnID: id, Event: event, Error: errObj, Payload: payload})
	}
	return nil
}

func (f *fakeTransport) ToAllExcept(connID, event string, errObj, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.conns {
		if id == connID {
			continue
		}
		f.sent = append(f.sent, sentMsg{ConnID: id, Event: event, Error: errObj, Payload: payload})
	}
	return nil
}

// received filters the delivery log; empty connID or event matches anything.
func (f *fakeTransport) received(connID, event string) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, msg := range f.sent {
		if connID != "" && msg.ConnID != connID {
			continue
		}
		if event != "" && msg.Event != event {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func testConfig() *config.Config {
	return &config.Config{
		SecretCollectionSuffix: "secret",
		RoomNum:                10,
		RoomAutoRemove:         5 * time.Minute,
		TokenSecret:            "test-secret",
		TokenExpires:           time.Hour,
		ServerVersion:          "Quoridorn 1.2.0",
	}
}

type testEnv struct {
	core    *Core
	tx      *fakeTransport
	mem     *store.Memory
	objects *objstore.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tx := newFakeTransport()
	mem := store.NewMemory()
	objects := objstore.NewMemory()
	from := "Quoridorn 1.0.0"
	c := New(Options{
		Config:    testConfig(),
		Store:     mem,
		Objects:   objects,
		Transport: tx,
		Window:    interop.Window{From: &from},
	})
	return &testEnv{core: c, tx: tx, mem: mem, objects: objects}
}

func (e *testEnv) connect(t *testing.T, connID string) {
	t.Helper()
	e.tx.register(connID)
	require.NoError(t, e.core.SocketIn(context.Background(), connID))
}

// joinRoom runs the full entry flow for a fresh room: touch, create, user
// login. Returns the room key.
func (e *testEnv) joinRoom(t *testing.T, connID string, roomNo int, userName string) string {
	t.Helper()
	ctx := context.Background()
	roomKey, err := e.core.TouchRoom(ctx, connID, roomNo)
	require.NoError(t, err)
	_, err = e.core.CreateRoom(ctx, connID, domain.CreateRoomRequest{
		RoomKey:      roomKey,
		RoomPassword: "room-pass",
		Name:         "Inn",
		System:       "DiceBot",
	})
	require.NoError(t, err)
	_, err = e.core.LoginUser(ctx, connID, domain.UserLoginRequest{
		Name:     userName,
		Password: "user-pass",
		Type:     domain.UserTypeGM,
	})
	require.NoError(t, err)
	return roomKey
}

// tenantPrefix reads the room prefix off the connection's session record.
func (e *testEnv) tenantPrefix(t *testing.T, connID string) string {
	t.Helper()
	info, err := e.core.GetSocketInfo(context.Background(), connID)
	require.NoError(t, err)
	require.NotNil(t, info.RoomCollectionPrefix)
	return *info.RoomCollectionPrefix
}

func filterByKey(key string) bson.M { return bson.M{"key": key} }

// roomPayload decodes the current payload of a room document.
func (e *testEnv) roomPayload(t *testing.T, roomKey string) *domain.RoomStore {
	t.Helper()
	doc, err := e.core.findOneData(context.Background(), e.core.colRoom, filterByKey(roomKey))
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.NotNil(t, doc.Data)
	var rs domain.RoomStore
	require.NoError(t, domain.DecodePayload(doc.Data, &rs))
	return &rs
}
