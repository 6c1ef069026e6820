package core

import (
	"context"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

// EmitEvent routes one event to the target's audience. connID is the origin
// connection; symbolic targets that mention "self" or "other" resolve against
// it. Sends to individual sockets are serialized and a dead socket is logged
// and skipped, not an error: delivery is best effort, the caller's own
// result reply is the only guaranteed message.
func (c *Core) EmitEvent(ctx context.Context, connID string, target domain.SendTarget, event string, errObj, payload any) error {
	if target.IsList() {
		return c.sendEach(ctx, target.IDs, event, errObj, payload)
	}
	switch target.Symbol {
	case domain.TargetNone:
		return nil
	case domain.TargetSelf:
		return c.tx.ToConnection(connID, event, errObj, payload)
	case domain.TargetAll:
		return c.tx.ToAll(event, errObj, payload)
	case domain.TargetOther:
		return c.tx.ToAllExcept(connID, event, errObj, payload)
	case domain.TargetRoom, domain.TargetRoomMate:
		mates, err := c.RoomMates(ctx, connID)
		if err != nil {
			return err
		}
		if target.Symbol == domain.TargetRoomMate {
			mates = mates[1:]
		}
		ids := make([]string, len(mates))
		for i, mate := range mates {
			ids[i] = mate.SocketID
		}
		return c.sendEach(ctx, ids, event, errObj, payload)
	default:
		return NewSysError("unknown send target", target.Symbol)
	}
}

func (c *Core) sendEach(ctx context.Context, ids []string, event string, errObj, payload any) error {
	ops := make([]func(context.Context) (struct{}, error), 0, len(ids))
	for _, id := range ids {
		id := id
		ops = append(ops, func(context.Context) (struct{}, error) {
			if err := c.tx.ToConnection(id, event, errObj, payload); err != nil {
				c.logger.Warn().Err(err).Str("socketId", id).Str("event", event).Msg("send skipped")
			}
			return struct{}{}, nil
		})
	}
	_, err := RunSerial(ctx, c, "", 0, 0, ops)
	return err
}
