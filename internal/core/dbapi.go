package core

import (
	"context"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

// DataGet answers a bulk read of one tenant collection.
func (c *Core) DataGet(ctx context.Context, connID, suffix string) ([]domain.StoreData, error) {
	return c.GetData(ctx, connID, suffix)
}

// DataInsert runs a batch insert serially in request order, returning the
// stored keys in the same order. notify reports progress to the caller;
// total and baseIndex position this call inside a larger logical batch.
func (c *Core) DataInsert(ctx context.Context, connID string, req domain.AddDirectRequest, notify bool, total, baseIndex int) ([]string, error) {
	fn := c.insertFuncs[req.CollectionSuffix]
	ops := make([]func(context.Context) (*domain.StoreData, error), 0, len(req.List))
	for _, param := range req.List {
		param := param
		ops = append(ops, func(ctx context.Context) (*domain.StoreData, error) {
			if fn != nil {
				return fn(ctx, c, connID, req.Share, req.Force, param)
			}
			return c.AddData(ctx, connID, ByConnection(connID, req.CollectionSuffix), req.Share, req.Force, param)
		})
	}
	docs, err := RunSerial(ctx, c, progressConn(connID, notify), total, baseIndex, ops)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[i] = doc.Key
	}
	return keys, nil
}

// DataUpdate runs a batch update serially in request order.
func (c *Core) DataUpdate(ctx context.Context, connID string, req domain.UpdateDataRequest, notify bool, total, baseIndex int) error {
	fn := c.updateFuncs[req.CollectionSuffix]
	ops := make([]func(context.Context) (*domain.StoreData, error), 0, len(req.List))
	for _, param := range req.List {
		param := param
		ops = append(ops, func(ctx context.Context) (*domain.StoreData, error) {
			if fn != nil {
				return fn(ctx, c, connID, req.Share, param)
			}
			return c.UpdateData(ctx, connID, ByConnection(connID, req.CollectionSuffix), req.Share, param)
		})
	}
	_, err := RunSerial(ctx, c, progressConn(connID, notify), total, baseIndex, ops)
	return err
}

// DataDelete runs a batch delete serially in request order.
func (c *Core) DataDelete(ctx context.Context, connID string, req domain.DeleteDataRequest, notify bool, total, baseIndex int) error {
	fn := c.deleteFuncs[req.CollectionSuffix]
	ops := make([]func(context.Context) (struct{}, error), 0, len(req.List))
	for _, key := range req.List {
		key := key
		ops = append(ops, func(ctx context.Context) (struct{}, error) {
			if fn != nil {
				return struct{}{}, fn(ctx, c, connID, req.Share, key)
			}
			return struct{}{}, c.DeleteData(ctx, connID, ByConnection(connID, req.CollectionSuffix), req.Share, key)
		})
	}
	_, err := RunSerial(ctx, c, progressConn(connID, notify), total, baseIndex, ops)
	return err
}

// SendData relays a caller-named event to a caller-chosen audience.
func (c *Core) SendData(ctx context.Context, connID string, req domain.SendDataRequest) error {
	return c.EmitEvent(ctx, connID, req.Target, req.Event, req.Error, req.Data)
}

func progressConn(connID string, notify bool) string {
	if !notify {
		return ""
	}
	return connID
}
