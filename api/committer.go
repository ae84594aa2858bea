package api

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"board-dnd/dnd"
	"board-dnd/domain"
)

// queueCommitter is the ReorderCommitService boundary: it turns finalized
// gestures into commands on the durable commit queue. Delivery goes through
// the commit sender pool when possible and falls back to an inline enqueue,
// so a nil return means accepted-for-delivery, not yet durable. Late
// failures revert the user's engine through the hooks wired at construction.
type queueCommitter struct {
	userID  string
	store   Storage
	deduper Deduper
	logger  *log.Logger

	// confirm/revert are invoked by commit-sender workers through the
	// registry, which takes the user's engine lock. They must never run on
	// the inline path, where that lock is already held.
	confirm func()
	revert  func()
}

var _ dnd.Committer = (*queueCommitter)(nil)

func (qc *queueCommitter) CommitOrder(ctx context.Context, op domain.FinalOrder) error {
	data, err := sonic.Marshal(op)
	if err != nil {
		return fmt.Errorf("encode final order: %w", err)
	}
	cmd := domain.Command{
		IdempotencyKey: uuid.NewString(),
		EntityType:     "stack",
		Type:           domain.CommandStackReordered,
		Data:           data,
		Timestamp:      nextTimestamp(),
	}
	cmd.ID = cmd.IdempotencyKey
	return qc.deliver(ctx, cmd, nil)
}

func (qc *queueCommitter) CommitMove(ctx context.Context, op domain.MoveItem) error {
	key := moveDedupeKey(op.ItemID, op.ToStackID)
	added, err := qc.deduper.Add(ctx, qc.userID, key)
	if err != nil {
		// Dedupe is an optimization across instances; the engine's own
		// membership check already suppressed local duplicates. Proceed.
		qc.logger.WithError(err).WithField("user", qc.userID).Warn("dedupe unavailable, committing anyway")
	} else if !added {
		qc.logger.WithFields(log.Fields{
			"user": qc.userID,
			"key":  key,
		}).Info("drop already committed, suppressing redelivery")
		return nil
	}

	data, merr := sonic.Marshal(op)
	if merr != nil {
		return fmt.Errorf("encode move: %w", merr)
	}
	cmd := domain.Command{
		IdempotencyKey: key,
		EntityType:     "item",
		Type:           domain.CommandItemMoved,
		Data:           data,
		Timestamp:      nextTimestamp(),
	}
	cmd.ID = cmd.IdempotencyKey

	var rollback []string
	if err == nil && added {
		rollback = []string{key}
	}
	return qc.deliver(ctx, cmd, rollback)
}

func (qc *queueCommitter) deliver(ctx context.Context, cmd domain.Command, added []string) error {
	job := commitJob{
		userID:  qc.userID,
		cmds:    []domain.Command{cmd},
		added:   added,
		confirm: qc.confirm,
		revert:  qc.revert,
	}

	if tryEnqueueJob(job) {
		return nil
	}

	if qc.logger != nil {
		qc.logger.Warn("commit buffer saturated; delivering inline")
	}

	timeout := deliverTimeout
	if timeout <= 0 {
		// Pool not initialized (inline-only configurations and tests).
		timeout = 60 * time.Second
	}
	deliverCtx, cancel := context.WithTimeout(bg, timeout)
	defer cancel()
	if err := qc.store.EnqueueCommands(deliverCtx, qc.userID, job.cmds); err != nil {
		for _, k := range added {
			if rerr := qc.deduper.Remove(ctx, qc.userID, k); rerr != nil {
				qc.logger.WithError(rerr).WithField("key", k).Error("dedupe rollback failed")
			}
		}
		return fmt.Errorf("deliver commit: %w", err)
	}
	// Inline delivery is synchronous: the caller treats a nil return as
	// committed, so no confirm hook fires here.
	return nil
}
