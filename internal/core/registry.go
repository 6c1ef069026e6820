package core

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

// SocketIn records a fresh connection. Everything beyond the id and the
// connect time starts out unknown.
func (c *Core) SocketIn(ctx context.Context, connID string) error {
	row := domain.SocketStore{SocketID: connID, ConnectTime: time.Now()}
	if err := c.store.InsertOne(ctx, c.colSocket, row); err != nil {
		return WrapSysError(err, "failure add socket")
	}
	c.logger.Info().Str("socketId", connID).Msg("socket in")
	return nil
}

// GetSocketInfo looks up the session record of a live connection. A missing
// record is an integrity breach, not a user mistake: the transport creates
// the record before any request can arrive.
func (c *Core) GetSocketInfo(ctx context.Context, connID string) (*domain.SocketStore, error) {
	var info domain.SocketStore
	found, err := c.store.FindOne(ctx, c.colSocket, bson.M{"socketId": connID}, &info)
	if err != nil {
		return nil, WrapSysError(err, "failure read socket")
	}
	if !found {
		return nil, NewSysError("no such socket", connID)
	}
	return &info, nil
}

// RoomMates lists the sessions in the caller's room, the caller first. A
// caller not in a room gets just itself.
func (c *Core) RoomMates(ctx context.Context, connID string) ([]domain.SocketStore, error) {
	self, err := c.GetSocketInfo(ctx, connID)
	if err != nil {
		return nil, err
	}
	mates := []domain.SocketStore{*self}
	if self.RoomKey == nil {
		return mates, nil
	}
	var rows []domain.SocketStore
	if err := c.store.Find(ctx, c.colSocket, bson.M{"roomKey": *self.RoomKey}, false, &rows); err != nil {
		return nil, WrapSysError(err, "failure read sockets")
	}
	for _, row := range rows {
		if row.SocketID != connID {
			mates = append(mates, row)
		}
	}
	return mates, nil
}

func (c *Core) updateSocket(ctx context.Context, info *domain.SocketStore) error {
	if err := c.store.ReplaceOne(ctx, c.colSocket, bson.M{"socketId": info.SocketID}, info); err != nil {
		return WrapSysError(err, "failure update socket")
	}
	return nil
}

// SocketOut tears a connection down: an authenticated session is logged out
// with full counter bookkeeping, a touch-only session releases its reserved
// slot, and in every case the session record is deleted.
func (c *Core) SocketOut(ctx context.Context, connID string) error {
	info, err := c.GetSocketInfo(ctx, connID)
	if err != nil {
		return err
	}
	if info.RoomKey != nil && info.UserKey != nil {
		if err := c.logoutUser(ctx, info); err != nil {
			c.logger.Error().Err(err).Str("socketId", connID).Msg("logout on disconnect failed")
		}
	} else if info.RoomKey != nil && info.RoomCollectionPrefix == nil {
		// A touched-but-never-created room dies with its reserving socket.
		if err := c.releaseTouchedRoom(ctx, *info.RoomKey); err != nil {
			c.logger.Error().Err(err).Str("socketId", connID).Msg("touch release on disconnect failed")
		}
	}
	if err := c.store.DeleteOne(ctx, c.colSocket, bson.M{"socketId": connID}); err != nil {
		return WrapSysError(err, "failure delete socket")
	}
	c.logger.Info().Str("socketId", connID).Msg("socket out")
	return nil
}

func (c *Core) bindSocketRoom(ctx context.Context, info *domain.SocketStore, roomKey string, roomNo int, prefix, storageID *string) error {
	info.RoomKey = &roomKey
	info.RoomNo = &roomNo
	info.RoomCollectionPrefix = prefix
	info.StorageID = storageID
	return c.updateSocket(ctx, info)
}

func (c *Core) bindSocketUser(ctx context.Context, info *domain.SocketStore, userKey string) error {
	info.UserKey = &userKey
	return c.updateSocket(ctx, info)
}
