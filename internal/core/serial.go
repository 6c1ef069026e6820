package core

import "context"

// RunSerial executes ops one at a time, never concurrently, reporting
// progress to connID before each step and once more after the last. total
// and baseIndex let a caller split one logical batch across several calls
// and still show a single progress bar; total <= 0 means len(ops).
// The first failing op aborts the batch and its error is returned as-is.
func RunSerial[T any](ctx context.Context, c *Core, connID string, total, baseIndex int, ops []func(context.Context) (T, error)) ([]T, error) {
	if total <= 0 {
		total = len(ops)
	}
	results := make([]T, 0, len(ops))
	for i, op := range ops {
		c.notifyProgress(connID, total, baseIndex+i)
		v, err := op(ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	c.notifyProgress(connID, total, baseIndex+len(ops))
	return results, nil
}

// notifyProgress is suppressed for single-step batches and for callers with
// no connection to report to. A failed send never fails the batch.
func (c *Core) notifyProgress(connID string, all, current int) {
	if connID == "" || all <= 1 {
		return
	}
	payload := map[string]int{"all": all, "current": current}
	if err := c.tx.ToConnection(connID, "notify-progress", nil, payload); err != nil {
		c.logger.Warn().Err(err).Str("socketId", connID).Msg("progress notify failed")
	}
}
