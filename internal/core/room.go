package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/password"
)

// TouchRoom reserves a room slot: an envelope with no payload, bound to the
// reserving connection. The slot dies with the connection (or the sweeper)
// unless CreateRoom fills it first.
func (c *Core) TouchRoom(ctx context.Context, connID string, roomNo int) (string, error) {
	if roomNo < 1 || roomNo > c.cfg.RoomNum {
		return "", NewAppError("out of range", roomNo)
	}
	existing, err := c.findOneData(ctx, c.colRoom, bson.M{"order": roomNo})
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", NewAppError("already exists", roomNo)
	}
	info, err := c.GetSocketInfo(ctx, connID)
	if err != nil {
		return "", err
	}
	if err := c.releaseAbandonedTouch(ctx, info); err != nil {
		return "", err
	}

	roomKey := uuid.NewString()
	now := time.Now()
	room := &domain.StoreData{
		Collection: "rooms",
		Key:        roomKey,
		Order:      roomNo,
		Permission: domain.DefaultPermission(),
		Status:     domain.StatusInitialTouched,
		CreateTime: now,
		RefList:    []domain.DataReference{},
	}
	if err := c.store.InsertOne(ctx, c.colRoom, room); err != nil {
		return "", WrapSysError(err, "failure add room")
	}
	if err := c.bindSocketRoom(ctx, info, roomKey, roomNo, nil, nil); err != nil {
		return "", err
	}
	c.notifyRoomUpdate(ctx, connID, room)
	c.logger.Info().Str("socketId", connID).Int("roomNo", roomNo).Msg("room touched")
	return roomKey, nil
}

// releaseTouchedRoom frees a reserved slot that never became a room. Already
// created rooms are left alone.
func (c *Core) releaseTouchedRoom(ctx context.Context, roomKey string) error {
	room, err := c.findOneData(ctx, c.colRoom, bson.M{"key": roomKey})
	if err != nil {
		return err
	}
	if room == nil || room.Data != nil {
		return nil
	}
	if err := c.store.DeleteOne(ctx, c.colRoom, bson.M{"key": roomKey}); err != nil {
		return WrapSysError(err, "failure delete room")
	}
	c.notifyRoomDelete(ctx, []int{room.Order})
	return nil
}

// releaseAbandonedTouch frees a reservation the connection walked away from
// without creating. A joined room (prefix bound) is not a reservation.
func (c *Core) releaseAbandonedTouch(ctx context.Context, info *domain.SocketStore) error {
	if info.RoomKey == nil || info.RoomCollectionPrefix != nil {
		return nil
	}
	return c.releaseTouchedRoom(ctx, *info.RoomKey)
}

// createGateOK checks the server-wide room create password. Supplying one
// when none is configured is refused like a mismatch.
func (c *Core) createGateOK(supplied *string) bool {
	if c.cfg.RoomCreatePassword == "" {
		return supplied == nil
	}
	return supplied != nil && *supplied == c.cfg.RoomCreatePassword
}

// CreateRoom fills the slot the connection touched. Once the reservation is
// confirmed, every failure releases it so the room number is not leaked.
func (c *Core) CreateRoom(ctx context.Context, connID string, req domain.CreateRoomRequest) (*domain.RoomJoinResponse, error) {
	info, err := c.GetSocketInfo(ctx, connID)
	if err != nil {
		return nil, err
	}
	if info.RoomKey == nil || *info.RoomKey != req.RoomKey {
		return nil, NewAppError("not yet touched", req.RoomKey)
	}
	room, err := c.findOneData(ctx, c.colRoom, bson.M{"key": req.RoomKey})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, NewAppError("no such room", req.RoomKey)
	}
	if room.Data != nil {
		return nil, NewAppError("already created", req.RoomKey)
	}
	if !c.createGateOK(req.RoomCreatePassword) {
		return nil, c.failCreateRoom(ctx, room, NewAppError("invalid room create password"))
	}

	hashed, err := password.Hash(req.RoomPassword)
	if err != nil {
		return nil, c.failCreateRoom(ctx, room, WrapSysError(err, "failure hash password"))
	}
	prefix := uuid.NewString()
	storageID := uuid.NewString()
	rs := &domain.RoomStore{
		Name:                 req.Name,
		BcdiceServer:         req.BcdiceServer,
		BcdiceVersion:        req.BcdiceVersion,
		System:               req.System,
		Extend:               req.Extend,
		RoomCollectionPrefix: prefix,
		StorageID:            storageID,
		RoomPassword:         hashed,
	}
	if err := c.writeRoomPayload(ctx, room, rs, domain.StatusAdded); err != nil {
		return nil, c.failCreateRoom(ctx, room, err)
	}
	if err := c.bindSocketRoom(ctx, info, room.Key, room.Order, &prefix, &storageID); err != nil {
		return nil, c.failCreateRoom(ctx, room, err)
	}
	token, err := c.issueToken(ctx, domain.TokenScopeRoom, info, nil)
	if err != nil {
		return nil, c.failCreateRoom(ctx, room, err)
	}
	users, err := c.roomUserList(ctx, prefix)
	if err != nil {
		return nil, c.failCreateRoom(ctx, room, err)
	}
	c.notifyRoomUpdate(ctx, connID, room)
	c.logger.Info().Str("socketId", connID).Int("roomNo", room.Order).Str("roomName", req.Name).Msg("room created")
	return &domain.RoomJoinResponse{Token: token, UserList: users}, nil
}

// failCreateRoom is the create compensation: release the slot, tell every
// client the slot is free again, and hand the original error back.
func (c *Core) failCreateRoom(ctx context.Context, room *domain.StoreData, cause error) error {
	if err := c.store.DeleteOne(ctx, c.colRoom, bson.M{"key": room.Key}); err != nil {
		c.logger.Error().Err(err).Str("roomKey", room.Key).Msg("create compensation failed")
	}
	c.notifyRoomDelete(ctx, []int{room.Order})
	return cause
}

// LoginRoom authenticates a connection into a created room and binds the
// session to the room's tenant.
func (c *Core) LoginRoom(ctx context.Context, connID string, req domain.RoomLoginRequest) (*domain.RoomJoinResponse, error) {
	if req.RoomNo < 1 || req.RoomNo > c.cfg.RoomNum {
		return nil, NewAppError("out of range", req.RoomNo)
	}
	room, err := c.findOneData(ctx, c.colRoom, bson.M{"order": req.RoomNo})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, NewAppError("no such room", req.RoomNo)
	}
	if room.Data == nil {
		return nil, NewAppError("not yet created", req.RoomNo)
	}
	var rs domain.RoomStore
	if err := domain.DecodePayload(room.Data, &rs); err != nil {
		return nil, WrapSysError(err, "failure decode room")
	}
	ok, err := password.Verify(rs.RoomPassword, req.RoomPassword)
	if err != nil {
		return nil, WrapSysError(err, "failure verify password")
	}
	if !ok {
		return nil, NewAppError("invalid password")
	}
	info, err := c.GetSocketInfo(ctx, connID)
	if err != nil {
		return nil, err
	}
	if info.RoomKey != nil && *info.RoomKey != room.Key {
		if err := c.releaseAbandonedTouch(ctx, info); err != nil {
			return nil, err
		}
	}
	if err := c.bindSocketRoom(ctx, info, room.Key, room.Order, &rs.RoomCollectionPrefix, &rs.StorageID); err != nil {
		return nil, err
	}
	token, err := c.issueToken(ctx, domain.TokenScopeRoom, info, nil)
	if err != nil {
		return nil, err
	}
	users, err := c.roomUserList(ctx, rs.RoomCollectionPrefix)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("socketId", connID).Int("roomNo", req.RoomNo).Msg("room login")
	return &domain.RoomJoinResponse{Token: token, UserList: users}, nil
}

// DeleteRoom removes a room and everything it owns: its uploaded objects,
// every tenant collection the catalog knows about, and the room row itself.
// Sessions still bound to the room are unbound.
func (c *Core) DeleteRoom(ctx context.Context, connID string, req domain.DeleteRoomRequest) error {
	room, err := c.findOneData(ctx, c.colRoom, bson.M{"order": req.RoomNo})
	if err != nil {
		return err
	}
	if room == nil {
		return NewAppError("no such room", req.RoomNo)
	}
	if room.Data == nil {
		return NewAppError("room is creating", req.RoomNo)
	}
	var rs domain.RoomStore
	if err := domain.DecodePayload(room.Data, &rs); err != nil {
		return WrapSysError(err, "failure decode room")
	}
	ok, err := password.Verify(rs.RoomPassword, req.RoomPassword)
	if err != nil {
		return WrapSysError(err, "failure verify password")
	}
	if !ok {
		return NewAppError("invalid password")
	}

	if err := c.purgeRoomObjects(ctx, rs.RoomCollectionPrefix, rs.StorageID); err != nil {
		c.logger.Error().Err(err).Int("roomNo", req.RoomNo).Msg("object purge failed")
	}
	cols, err := c.tenantCollections(ctx, rs.RoomCollectionPrefix)
	if err != nil {
		return err
	}
	for _, col := range cols {
		if err := c.store.Drop(ctx, col); err != nil {
			return WrapSysError(err, "failure drop collection")
		}
	}
	if err := c.store.DeleteOne(ctx, c.colRoom, bson.M{"key": room.Key}); err != nil {
		return WrapSysError(err, "failure delete room")
	}
	if err := c.unbindRoomSockets(ctx, room.Key); err != nil {
		c.logger.Error().Err(err).Int("roomNo", req.RoomNo).Msg("socket unbind failed")
	}
	c.notifyRoomDelete(ctx, []int{room.Order})
	c.logger.Info().Str("socketId", connID).Int("roomNo", req.RoomNo).Msg("room deleted")
	return nil
}

// purgeRoomObjects removes every object uploaded to the room's storage area.
func (c *Core) purgeRoomObjects(ctx context.Context, prefix, storageID string) error {
	col := PhysicalName(prefix, mediaCollectionSuffix)
	var docs []domain.StoreData
	if err := c.store.Find(ctx, col, bson.M{"data.dataLocation": "server"}, false, &docs); err != nil {
		return WrapSysError(err, "failure read media")
	}
	keys := make([]string, 0, len(docs))
	for _, doc := range docs {
		var ms domain.MediaStore
		if err := domain.DecodePayload(doc.Data, &ms); err != nil {
			continue
		}
		if ms.MediaFileID != "" {
			keys = append(keys, storageID+"/"+ms.MediaFileID)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.objects.Remove(ctx, keys)
}

func (c *Core) unbindRoomSockets(ctx context.Context, roomKey string) error {
	var rows []domain.SocketStore
	if err := c.store.Find(ctx, c.colSocket, bson.M{"roomKey": roomKey}, false, &rows); err != nil {
		return WrapSysError(err, "failure read sockets")
	}
	for _, row := range rows {
		row.RoomKey = nil
		row.RoomNo = nil
		row.RoomCollectionPrefix = nil
		row.StorageID = nil
		row.UserKey = nil
		if err := c.updateSocket(ctx, &row); err != nil {
			return err
		}
	}
	return nil
}

// GetRoomList is the lobby view: every slot's status plus server info. A
// client outside the interoperability window gets the server info but no
// room list, so it can show a version warning instead of a broken lobby.
func (c *Core) GetRoomList(ctx context.Context, connID, clientVersion string) (*domain.GetRoomListResponse, error) {
	resp := &domain.GetRoomListResponse{
		MaxRoomNo: c.cfg.RoomNum,
		AppServerInfo: domain.AppServerInfo{
			Title:        c.cfg.ServerInfo.Title,
			Descriptions: c.cfg.ServerInfo.Descriptions,
			TermsOfUse:   c.cfg.ServerInfo.TermsOfUse,
		},
		IsNeedRoomCreatePassword: c.cfg.RoomCreatePassword != "",
	}
	if !c.window.Usable(clientVersion) {
		return resp, nil
	}
	var rooms []domain.StoreData
	if err := c.store.Find(ctx, c.colRoom, bson.M{}, true, &rooms); err != nil {
		return nil, WrapSysError(err, "failure read rooms")
	}
	list := make([]domain.ClientRoomData, 0, len(rooms))
	for i := range rooms {
		list = append(list, c.roomToClientData(connID, &rooms[i]))
	}
	resp.RoomList = list
	return resp, nil
}

// roomToClientData strips a room envelope down to what clients may see. The
// password never leaves the server.
func (c *Core) roomToClientData(connID string, room *domain.StoreData) domain.ClientRoomData {
	out := domain.ClientRoomData{
		RoomNo:     room.Order,
		Status:     room.Status,
		Operator:   connID,
		CreateTime: room.CreateTime,
		UpdateTime: room.UpdateTime,
	}
	if room.Data == nil {
		return out
	}
	var rs domain.RoomStore
	if err := domain.DecodePayload(room.Data, &rs); err != nil {
		c.logger.Warn().Err(err).Str("roomKey", room.Key).Msg("room payload decode failed")
		return out
	}
	out.Detail = &domain.ClientRoomDetail{
		RoomName:  rs.Name,
		MemberNum: rs.MemberNum,
		LoggedIn:  rs.LoggedIn,
		Extend:    rs.Extend,
	}
	return out
}

// writeRoomPayload re-encodes a room payload into its envelope and persists
// it. The envelope's status and updateTime move together with the payload.
func (c *Core) writeRoomPayload(ctx context.Context, room *domain.StoreData, rs *domain.RoomStore, status domain.Status) error {
	payload, err := domain.EncodePayload(rs)
	if err != nil {
		return WrapSysError(err, "failure encode room")
	}
	now := time.Now()
	room.Data = payload
	room.Status = status
	room.UpdateTime = &now
	if err := c.store.ReplaceOne(ctx, c.colRoom, bson.M{"key": room.Key}, room); err != nil {
		return WrapSysError(err, "failure update room")
	}
	return nil
}

// adjustRoomCounters applies deltas to the occupancy counters and tells every
// client, lobby watchers included.
func (c *Core) adjustRoomCounters(ctx context.Context, connID, roomKey string, memberDelta, loggedInDelta int) error {
	room, err := c.findOneData(ctx, c.colRoom, bson.M{"key": roomKey})
	if err != nil {
		return err
	}
	if room == nil || room.Data == nil {
		return NewSysError("no such room", roomKey)
	}
	var rs domain.RoomStore
	if err := domain.DecodePayload(room.Data, &rs); err != nil {
		return WrapSysError(err, "failure decode room")
	}
	rs.MemberNum += memberDelta
	rs.LoggedIn += loggedInDelta
	if rs.LoggedIn < 0 {
		rs.LoggedIn = 0
	}
	if err := c.writeRoomPayload(ctx, room, &rs, domain.StatusModified); err != nil {
		return err
	}
	c.notifyRoomUpdate(ctx, connID, room)
	return nil
}

func (c *Core) notifyRoomUpdate(ctx context.Context, connID string, room *domain.StoreData) {
	payload := c.roomToClientData(connID, room)
	if err := c.EmitEvent(ctx, connID, domain.Target(domain.TargetAll), "notify-room-update", nil, payload); err != nil {
		c.logger.Warn().Err(err).Int("roomNo", room.Order).Msg("room update notify failed")
	}
}

func (c *Core) notifyRoomDelete(ctx context.Context, roomNos []int) {
	if err := c.EmitEvent(ctx, "", domain.Target(domain.TargetAll), "notify-room-delete", nil, roomNos); err != nil {
		c.logger.Warn().Err(err).Msg("room delete notify failed")
	}
}
