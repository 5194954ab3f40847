package bridge

import (
	"context"
	"time"
)

// runPruneLoop deletes history older than the configured retention, once
// at start and then every prune interval.
func (b *Bridge) runPruneLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.Bridge.HistoryPruneInterval)
	defer ticker.Stop()

	b.pruneHistory()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.pruneHistory()
		}
	}
}

func (b *Bridge) pruneHistory() {
	ctx, cancel := context.WithTimeout(b.ctx, persistTimeout)
	defer cancel()

	n, err := b.history.PruneHistory(ctx, b.cfg.Bridge.HistoryRetention)
	if err != nil {
		b.logger.Warn("pruning state history failed", "error", err)
		return
	}
	if n > 0 {
		b.logger.Info("pruned state history", "rows", n, "retention", b.cfg.Bridge.HistoryRetention)
	}
}
