package core

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

// DeleteExpiredTokens drops every token past its expiry.
func (c *Core) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	n, err := c.store.DeleteMany(ctx, c.colToken, bson.M{"expires": bson.M{"$lt": time.Now()}})
	if err != nil {
		return 0, WrapSysError(err, "failure delete tokens")
	}
	return n, nil
}

// DeleteAbandonedRooms frees slots that were touched but never created
// within the grace period. Covers reservations whose socket record outlived
// the connection (a crashed server leaves those behind).
func (c *Core) DeleteAbandonedRooms(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-c.cfg.RoomAutoRemove)
	filter := bson.M{"$and": []bson.M{
		{"data": nil},
		{"createTime": bson.M{"$lt": cutoff}},
	}}
	var rooms []domain.StoreData
	if err := c.store.Find(ctx, c.colRoom, filter, false, &rooms); err != nil {
		return 0, WrapSysError(err, "failure read rooms")
	}
	if len(rooms) == 0 {
		return 0, nil
	}
	if _, err := c.store.DeleteMany(ctx, c.colRoom, filter); err != nil {
		return 0, WrapSysError(err, "failure delete rooms")
	}
	roomNos := make([]int, len(rooms))
	for i, room := range rooms {
		roomNos[i] = room.Order
	}
	c.notifyRoomDelete(ctx, roomNos)
	return len(rooms), nil
}

// StartSweeper runs the periodic cleanups until ctx is done.
func (c *Core) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := c.DeleteExpiredTokens(ctx); err != nil {
					c.logger.Error().Err(err).Msg("token sweep failed")
				} else if n > 0 {
					c.logger.Info().Int64("count", n).Msg("expired tokens swept")
				}
				if n, err := c.DeleteAbandonedRooms(ctx); err != nil {
					c.logger.Error().Err(err).Msg("room sweep failed")
				} else if n > 0 {
					c.logger.Info().Int("count", n).Msg("abandoned rooms swept")
				}
			}
		}
	}()
}
