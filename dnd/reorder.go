package dnd

import (
	log "github.com/sirupsen/logrus"

	"board-dnd/domain"
)

// ReorderRequested is the intent raised when the pointer enters a sibling
// item while a drag is in flight. Source is the dragged item, target the
// item being hovered.
type ReorderRequested struct {
	SourceItemID string
	TargetItemID string
}

// reorderDelegate applies live same-stack reordering. Each hover relocates
// the dragged item to the hovered position optimistically; the order shown
// to the user changes before the gesture ends.
type reorderDelegate struct {
	board  *Board
	logger *log.Logger

	// last applied pair, kept for the lifetime of one gesture. Platforms
	// may redeliver the same hover-enter repeatedly; once the pair was
	// applied and the items sit adjacent, reapplying the index move would
	// swap them back and forth on every event.
	lastApplied ReorderRequested
}

// hoverEnter resolves the intent against current state and, when valid,
// publishes the new order of the shared stack. The bool reports whether the
// order changed; an already-correct position is a no-op by construction of
// domain.MoveID, so repeated hovers over the same target cannot keep
// perturbing the order.
func (d *reorderDelegate) hoverEnter(req ReorderRequested) ([]string, bool) {
	if req.SourceItemID == req.TargetItemID {
		return nil, false
	}

	src, ok := d.board.Item(req.SourceItemID)
	if !ok {
		// Dragged item vanished mid-gesture; leave the session to be
		// cleared on the terminal event.
		d.logger.WithField("item_id", req.SourceItemID).Debug("hover source is stale")
		return nil, false
	}
	tgt, ok := d.board.Item(req.TargetItemID)
	if !ok {
		return nil, false
	}
	if src.StackID != tgt.StackID {
		// Cross-stack handling belongs to the transfer delegate.
		return nil, false
	}

	order := d.board.Order(src.StackID)
	srcIdx := domain.IndexOf(order, src.ID)
	tgtIdx := domain.IndexOf(order, tgt.ID)
	if srcIdx < 0 || tgtIdx < 0 || srcIdx == tgtIdx {
		return nil, false
	}
	if req == d.lastApplied && adjacent(srcIdx, tgtIdx) {
		// Redelivered hover for a pair already in its resolved relative
		// position.
		return nil, false
	}

	next := domain.MoveID(order, srcIdx, tgtIdx)
	d.board.ReplaceOrder(src.StackID, next)
	d.lastApplied = req
	return append([]string(nil), next...), true
}

// reset clears per-gesture state. Called on every terminal path.
func (d *reorderDelegate) reset() {
	d.lastApplied = ReorderRequested{}
}

func adjacent(a, b int) bool {
	return a-b == 1 || b-a == 1
}
