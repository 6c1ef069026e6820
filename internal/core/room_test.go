package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

func TestTouchRoomValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")

	_, err := env.core.TouchRoom(ctx, "s1", 0)
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "out of range", appErr.Message)

	_, err = env.core.TouchRoom(ctx, "s1", 11)
	_, ok = AsAppError(err)
	assert.True(t, ok)

	_, err = env.core.TouchRoom(ctx, "s1", 7)
	require.NoError(t, err)

	env.connect(t, "s2")
	_, err = env.core.TouchRoom(ctx, "s2", 7)
	appErr, ok = AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "already exists", appErr.Message)
}

func TestRoomLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")

	roomKey, err := env.core.TouchRoom(ctx, "s1", 7)
	require.NoError(t, err)

	// The touched slot is visible to the lobby as reserved.
	updates := env.tx.received("s1", "notify-room-update")
	require.NotEmpty(t, updates)
	touched := updates[0].Payload.(domain.ClientRoomData)
	assert.Equal(t, 7, touched.RoomNo)
	assert.Equal(t, domain.StatusInitialTouched, touched.Status)
	assert.Nil(t, touched.Detail)

	// Creating against a slot the connection never touched is refused.
	_, err = env.core.CreateRoom(ctx, "s1", domain.CreateRoomRequest{RoomKey: "bogus"})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "not yet touched", appErr.Message)

	resp, err := env.core.CreateRoom(ctx, "s1", domain.CreateRoomRequest{
		RoomKey:      roomKey,
		RoomPassword: "room-pass",
		Name:         "Inn",
		System:       "DiceBot",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Empty(t, resp.UserList, "a fresh room has no users yet")

	rs := env.roomPayload(t, roomKey)
	assert.Equal(t, "Inn", rs.Name)
	assert.NotEmpty(t, rs.RoomCollectionPrefix)
	assert.NotEmpty(t, rs.StorageID)
	assert.NotEqual(t, "room-pass", rs.RoomPassword)
	assert.Zero(t, rs.MemberNum)
	assert.Zero(t, rs.LoggedIn)

	// The session is bound to the new tenant.
	info, err := env.core.GetSocketInfo(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, info.RoomCollectionPrefix)
	assert.Equal(t, rs.RoomCollectionPrefix, *info.RoomCollectionPrefix)

	userResp, err := env.core.LoginUser(ctx, "s1", domain.UserLoginRequest{
		Name: "Alice", Password: "pw", Type: domain.UserTypeGM,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, userResp.UserKey)
	assert.NotEmpty(t, userResp.Token)

	rs = env.roomPayload(t, roomKey)
	assert.Equal(t, 1, rs.MemberNum)
	assert.Equal(t, 1, rs.LoggedIn)
}

func TestDisconnectLogsOutAndKeepsMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")
	roomKey := env.joinRoom(t, "s1", 3, "Alice")

	require.NoError(t, env.core.SocketOut(ctx, "s1"))
	env.tx.unregister("s1")

	rs := env.roomPayload(t, roomKey)
	assert.Equal(t, 1, rs.MemberNum, "membership survives disconnect")
	assert.Equal(t, 0, rs.LoggedIn, "live session count drops")

	prefix := rs.RoomCollectionPrefix
	userCol := PhysicalName(prefix, userCollectionSuffix)
	doc, err := env.core.findOneData(ctx, userCol, filterByKey(userKeyOf(t, env, userCol, "Alice")))
	require.NoError(t, err)
	require.NotNil(t, doc)
	var us domain.UserStore
	require.NoError(t, domain.DecodePayload(doc.Data, &us))
	assert.Zero(t, us.Login)

	// The session record itself is gone.
	_, err = env.core.GetSocketInfo(ctx, "s1")
	assert.Error(t, err)
}

func TestDisconnectReleasesTouchedRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")
	env.connect(t, "watcher")

	_, err := env.core.TouchRoom(ctx, "s1", 2)
	require.NoError(t, err)
	env.tx.reset()

	require.NoError(t, env.core.SocketOut(ctx, "s1"))
	env.tx.unregister("s1")

	deletes := env.tx.received("watcher", "notify-room-delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, []int{2}, deletes[0].Payload)

	// The slot is reusable right away.
	env.connect(t, "s2")
	_, err = env.core.TouchRoom(ctx, "s2", 2)
	assert.NoError(t, err)
}

func TestSecondUserLoginCounters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")
	roomKey := env.joinRoom(t, "s1", 1, "Alice")

	env.connect(t, "s2")
	_, err := env.core.LoginRoom(ctx, "s2", domain.RoomLoginRequest{RoomNo: 1, RoomPassword: "nope"})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid password", appErr.Message)

	resp, err := env.core.LoginRoom(ctx, "s2", domain.RoomLoginRequest{RoomNo: 1, RoomPassword: "room-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	// The joining client is handed the current roster, secrets stripped.
	require.Len(t, resp.UserList, 1)
	assert.Equal(t, "Alice", resp.UserList[0].Name)
	assert.Equal(t, domain.UserTypeGM, resp.UserList[0].Type)
	assert.Equal(t, 1, resp.UserList[0].Login)
	assert.NotEmpty(t, resp.UserList[0].Key)

	// Same user from a second connection: no new member, no loggedIn bump.
	_, err = env.core.LoginUser(ctx, "s2", domain.UserLoginRequest{Name: "Alice", Password: "user-pass"})
	require.NoError(t, err)
	rs := env.roomPayload(t, roomKey)
	assert.Equal(t, 1, rs.MemberNum)
	assert.Equal(t, 1, rs.LoggedIn)

	// A different user raises both counters.
	env.connect(t, "s3")
	_, err = env.core.LoginRoom(ctx, "s3", domain.RoomLoginRequest{RoomNo: 1, RoomPassword: "room-pass"})
	require.NoError(t, err)
	_, err = env.core.LoginUser(ctx, "s3", domain.UserLoginRequest{Name: "Bob", Password: "pw2", Type: domain.UserTypePlayer})
	require.NoError(t, err)
	rs = env.roomPayload(t, roomKey)
	assert.Equal(t, 2, rs.MemberNum)
	assert.Equal(t, 2, rs.LoggedIn)

	// Wrong password for an existing user is refused.
	env.connect(t, "s4")
	_, err = env.core.LoginRoom(ctx, "s4", domain.RoomLoginRequest{RoomNo: 1, RoomPassword: "room-pass"})
	require.NoError(t, err)
	_, err = env.core.LoginUser(ctx, "s4", domain.UserLoginRequest{Name: "Alice", Password: "wrong"})
	_, ok = AsAppError(err)
	assert.True(t, ok)
}

func TestDeleteRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")
	roomKey := env.joinRoom(t, "s1", 5, "Alice")
	prefix := env.tenantPrefix(t, "s1")

	err := env.core.DeleteRoom(ctx, "s1", domain.DeleteRoomRequest{RoomNo: 5, RoomPassword: "wrong"})
	_, ok := AsAppError(err)
	assert.True(t, ok)

	env.tx.reset()
	require.NoError(t, env.core.DeleteRoom(ctx, "s1", domain.DeleteRoomRequest{RoomNo: 5, RoomPassword: "room-pass"}))

	doc, err := env.core.findOneData(ctx, env.core.colRoom, filterByKey(roomKey))
	require.NoError(t, err)
	assert.Nil(t, doc)

	for _, col := range env.mem.Collections() {
		p, _ := SplitCollectionName(col)
		assert.NotEqual(t, prefix, p, "tenant collection %s survived", col)
	}

	deletes := env.tx.received("s1", "notify-room-delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, []int{5}, deletes[0].Payload)

	// The deleter's session lost its room binding.
	info, err := env.core.GetSocketInfo(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, info.RoomKey)
	assert.Nil(t, info.RoomCollectionPrefix)
}

func TestGetRoomList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")
	env.joinRoom(t, "s1", 4, "Alice")

	resp, err := env.core.GetRoomList(ctx, "s1", "Quoridorn 1.1.0")
	require.NoError(t, err)
	assert.Equal(t, 10, resp.MaxRoomNo)
	require.Len(t, resp.RoomList, 1)
	room := resp.RoomList[0]
	assert.Equal(t, 4, room.RoomNo)
	require.NotNil(t, room.Detail)
	assert.Equal(t, "Inn", room.Detail.RoomName)
	assert.Equal(t, 1, room.Detail.MemberNum)
	assert.Equal(t, 1, room.Detail.LoggedIn)

	// An out-of-window client still gets the server info, but no rooms.
	resp, err = env.core.GetRoomList(ctx, "s1", "Quoridorn 0.9.0")
	require.NoError(t, err)
	assert.Nil(t, resp.RoomList)
	assert.Equal(t, 10, resp.MaxRoomNo)
}

func TestCreateRoomPasswordGate(t *testing.T) {
	env := newTestEnv(t)
	env.core.cfg.RoomCreatePassword = "sesame"
	ctx := context.Background()
	env.connect(t, "s1")
	roomKey, err := env.core.TouchRoom(ctx, "s1", 6)
	require.NoError(t, err)
	env.tx.reset()

	_, err = env.core.CreateRoom(ctx, "s1", domain.CreateRoomRequest{RoomKey: roomKey, Name: "Inn"})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid room create password", appErr.Message)

	// A refused create releases the reservation and tells the lobby.
	doc, err := env.core.findOneData(ctx, env.core.colRoom, filterByKey(roomKey))
	require.NoError(t, err)
	assert.Nil(t, doc)
	deletes := env.tx.received("s1", "notify-room-delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, []int{6}, deletes[0].Payload)

	roomKey, err = env.core.TouchRoom(ctx, "s1", 6)
	require.NoError(t, err)
	gate := "sesame"
	_, err = env.core.CreateRoom(ctx, "s1", domain.CreateRoomRequest{
		RoomKey: roomKey, Name: "Inn", RoomCreatePassword: &gate,
	})
	assert.NoError(t, err)
}

func TestCreateRoomRefusesGatePasswordWhenNoneConfigured(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")
	roomKey, err := env.core.TouchRoom(ctx, "s1", 6)
	require.NoError(t, err)

	gate := "sesame"
	_, err = env.core.CreateRoom(ctx, "s1", domain.CreateRoomRequest{
		RoomKey: roomKey, Name: "Inn", RoomCreatePassword: &gate,
	})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid room create password", appErr.Message)

	doc, err := env.core.findOneData(ctx, env.core.colRoom, filterByKey(roomKey))
	require.NoError(t, err)
	assert.Nil(t, doc, "refused create must not leave the reservation behind")
}

func TestRetouchReleasesAbandonedReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")
	env.connect(t, "watcher")

	_, err := env.core.TouchRoom(ctx, "s1", 5)
	require.NoError(t, err)
	env.tx.reset()

	_, err = env.core.TouchRoom(ctx, "s1", 6)
	require.NoError(t, err)

	deletes := env.tx.received("watcher", "notify-room-delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, []int{5}, deletes[0].Payload)

	// Slot 5 is free again right away.
	env.connect(t, "s2")
	_, err = env.core.TouchRoom(ctx, "s2", 5)
	assert.NoError(t, err)

	// Disconnecting s1 now only releases its current reservation.
	env.tx.reset()
	require.NoError(t, env.core.SocketOut(ctx, "s1"))
	env.tx.unregister("s1")
	deletes = env.tx.received("watcher", "notify-room-delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, []int{6}, deletes[0].Payload)
}

func TestLoginRoomReleasesAbandonedReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")
	env.joinRoom(t, "s1", 1, "Alice")

	env.connect(t, "s2")
	_, err := env.core.TouchRoom(ctx, "s2", 2)
	require.NoError(t, err)
	env.tx.reset()

	_, err = env.core.LoginRoom(ctx, "s2", domain.RoomLoginRequest{RoomNo: 1, RoomPassword: "room-pass"})
	require.NoError(t, err)

	deletes := env.tx.received("s1", "notify-room-delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, []int{2}, deletes[0].Payload)

	env.connect(t, "s3")
	_, err = env.core.TouchRoom(ctx, "s3", 2)
	assert.NoError(t, err)
}

func TestDeleteRoomWhileCreating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.connect(t, "s1")

	err := env.core.DeleteRoom(ctx, "s1", domain.DeleteRoomRequest{RoomNo: 8})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "no such room", appErr.Message)

	_, err = env.core.TouchRoom(ctx, "s1", 8)
	require.NoError(t, err)
	err = env.core.DeleteRoom(ctx, "s1", domain.DeleteRoomRequest{RoomNo: 8})
	appErr, ok = AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "room is creating", appErr.Message)
}

// userKeyOf resolves a user key by name inside a tenant user collection.
func userKeyOf(t *testing.T, env *testEnv, userCol, name string) string {
	t.Helper()
	doc, err := env.core.findOneData(context.Background(), userCol, bson.M{"data.name": name})
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc.Key
}
