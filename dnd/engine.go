package dnd

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"board-dnd/domain"
)

// ErrUnknownItem is returned when a drag begins on an item id that does not
// resolve against current board state.
var ErrUnknownItem = errors.New("unknown item")

// Committer hands finalized gestures to the durable commit path. An
// implementation may deliver asynchronously; a nil return only means the
// commit was accepted for delivery. Late failures are reconciled through
// Engine.RevertOptimistic.
type Committer interface {
	CommitOrder(ctx context.Context, op domain.FinalOrder) error
	CommitMove(ctx context.Context, op domain.MoveItem) error
}

// phase tracks where a gesture is in its lifecycle.
type phase int

const (
	phaseIdle phase = iota
	phaseDragging
	phaseHovering
)

// DropResult is the terminal outcome of a drop. Err is set only for commit
// failures, the one error class a user can observe (the optimistic order
// they already saw has been reverted).
type DropResult struct {
	Accepted bool
	// AlreadyApplied marks an accepted drop that was a redelivery of one
	// that had already taken effect; nothing was committed for it.
	AlreadyApplied bool
	Order          []string
	Err            error
}

// Engine drives a single user's drag gestures over their board. Methods are
// not safe for concurrent use; the registry serializes them per user,
// mirroring a single UI event loop.
type Engine struct {
	board     *Board
	committed *Board
	// pending holds the snapshot preceding each unconfirmed commit, oldest
	// first. Gestures are serialized but delivery is not: a second gesture
	// can commit while the first is still in flight, so one slot is not
	// enough. Hooks reconcile in commit order; a failure rolls back to the
	// snapshot before the failed commit and discards the unconfirmed
	// commits layered on top of it.
	pending  []*Board
	session  Session
	phase    phase
	reorder  reorderDelegate
	transfer transferDelegate
	commits  Committer
	logger   *log.Logger
}

// NewEngine wraps a board. The board passed in becomes the last-committed
// snapshot.
func NewEngine(board *Board, commits Committer, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e := &Engine{
		board:     board,
		committed: board.Clone(),
		commits:   commits,
		logger:    logger,
	}
	e.reorder = reorderDelegate{board: board, logger: logger}
	e.transfer = transferDelegate{board: board, logger: logger}
	return e
}

// Board exposes the working state for read-model serving.
func (e *Engine) Board() *Board {
	return e.board
}

// BeginDrag starts a gesture on itemID and returns the transferable payload
// for the drag source. Beginning while another gesture is in flight first
// rolls that gesture's optimistic state back, then proceeds
// (last-writer-wins, matching the session contract).
func (e *Engine) BeginDrag(itemID string) (domain.Payload, error) {
	if e.phase != phaseIdle {
		e.board.Restore(e.committed)
	}

	it, ok := e.board.Item(itemID)
	if !ok {
		return domain.Payload{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	p, err := domain.EncodeItem(it)
	if err != nil {
		return domain.Payload{}, err
	}

	e.session.Begin(itemID)
	e.phase = phaseDragging
	return p, nil
}

// HoverEnter handles the pointer entering a candidate target item. When the
// dragged item and the target share a stack, the reorder delegate relocates
// the dragged item optimistically and the new order is returned. Every
// invalid condition (no session, stale ids, cross-stack target, self-hover)
// is a silent no-op.
func (e *Engine) HoverEnter(targetItemID string) ([]string, bool) {
	if e.phase == phaseIdle {
		return nil, false
	}
	src, ok := e.session.Current()
	if !ok {
		return nil, false
	}
	e.phase = phaseHovering
	return e.reorder.hoverEnter(ReorderRequested{SourceItemID: src, TargetItemID: targetItemID})
}

// HoverExit handles the pointer leaving a target without dropping. No
// mutation occurs until another target is entered or the gesture ends.
func (e *Engine) HoverExit() {
	if e.phase == phaseHovering {
		e.phase = phaseDragging
	}
}

// Drop is the terminal release over a stack. The raw payload is decoded
// here; an undecodable payload rejects the drop with no mutation. Same-stack
// drops finalize the optimistic order, cross-stack drops run the transfer
// delegate. The session ends on every path.
func (e *Engine) Drop(ctx context.Context, destStackID string, payload []byte) DropResult {
	defer e.finish()

	env, err := domain.DecodeEnvelope(payload)
	if err != nil {
		// The gesture may have left an optimistic hover preview behind;
		// a rejected terminal event must not strand it on the board.
		e.board.Restore(e.committed)
		return DropResult{Accepted: false}
	}

	if env.OriginStackID == destStackID {
		return e.finalizeReorder(ctx, env, destStackID)
	}
	return e.finalizeTransfer(ctx, env, destStackID)
}

func (e *Engine) finalizeReorder(ctx context.Context, env domain.TransferEnvelope, stackID string) DropResult {
	it, ok := e.board.Item(env.ItemID)
	if !ok || it.StackID != stackID {
		// Stale: the dragged item was removed (or relocated) between
		// drag-begin and release. Drop what the gesture showed.
		e.board.Restore(e.committed)
		return DropResult{Accepted: false}
	}

	order := e.board.Order(stackID)
	op := domain.FinalOrder{StackID: stackID, OrderedItemIDs: order}
	if err := e.commits.CommitOrder(ctx, op); err != nil {
		e.board.Restore(e.committed)
		e.logger.WithError(err).WithField("stack_id", stackID).Error("order commit failed")
		return DropResult{Accepted: false, Order: e.board.Order(stackID), Err: err}
	}
	e.markCommitted()
	return DropResult{Accepted: true, Order: order}
}

func (e *Engine) finalizeTransfer(ctx context.Context, env domain.TransferEnvelope, destStackID string) DropResult {
	// Any hover preview belongs to the origin stack's reorder gesture; a
	// cross-stack release abandons it. Evaluating the transfer against the
	// committed snapshot also keeps a rejected drop from stranding the
	// preview and an accepted one from baking it into the next snapshot.
	e.board.Restore(e.committed)

	op, outcome := e.transfer.drop(TransferRequested{Envelope: env, DestinationStackID: destStackID})
	switch outcome {
	case transferRejected:
		return DropResult{Accepted: false}
	case transferAlreadyApplied:
		return DropResult{Accepted: true, AlreadyApplied: true, Order: e.board.Order(destStackID)}
	}

	if err := e.commits.CommitMove(ctx, op); err != nil {
		e.board.Restore(e.committed)
		e.logger.WithError(err).WithFields(log.Fields{
			"item_id":  op.ItemID,
			"to_stack": op.ToStackID,
		}).Error("move commit failed")
		return DropResult{Accepted: false, Err: err}
	}
	e.markCommitted()
	return DropResult{Accepted: true, Order: e.board.Order(destStackID)}
}

// Cancel ends the gesture without a commit, rolling back any optimistic
// intermediate order to the last committed snapshot.
func (e *Engine) Cancel() {
	e.board.Restore(e.committed)
	e.finish()
}

// RemoveItem reconciles an external deletion into the working state and
// every held snapshot, so neither a cancel nor a commit revert can
// resurrect the item. A drag currently holding the removed id degrades to a
// stale no-op on its terminal event.
func (e *Engine) RemoveItem(itemID string) {
	e.board.RemoveItem(itemID)
	e.committed.RemoveItem(itemID)
	for _, snap := range e.pending {
		snap.RemoveItem(itemID)
	}
}

// RevertOptimistic rolls the working state back past the oldest unconfirmed
// commit to the snapshot that preceded it. It is the reconciliation hook for
// commits that were accepted for delivery and later failed; unconfirmed
// commits layered on top of the failed one were built on state the failure
// invalidated, so they are discarded with it.
func (e *Engine) RevertOptimistic() {
	if len(e.pending) > 0 {
		e.committed = e.pending[0]
		e.pending = nil
	}
	e.board.Restore(e.committed)
}

// ConfirmCommit marks the oldest unconfirmed commit durable. Hook for
// asynchronous committers; synchronous committers need not call it.
func (e *Engine) ConfirmCommit() {
	if len(e.pending) > 0 {
		e.pending = e.pending[1:]
	}
}

func (e *Engine) markCommitted() {
	e.pending = append(e.pending, e.committed)
	e.committed = e.board.Clone()
}

func (e *Engine) finish() {
	e.session.End()
	e.reorder.reset()
	e.phase = phaseIdle
}
