package dnd

import (
	log "github.com/sirupsen/logrus"

	"board-dnd/domain"
)

// TransferRequested is the intent raised when a drop's payload originates
// from a different stack than the one receiving it.
type TransferRequested struct {
	Envelope           domain.TransferEnvelope
	DestinationStackID string
}

// transferOutcome classifies the result of a cross-stack drop.
type transferOutcome int

const (
	// transferRejected: no mutation occurred and the platform should show
	// a declined-drop affordance.
	transferRejected transferOutcome = iota
	// transferApplied: the item was moved and the move must be committed.
	transferApplied
	// transferAlreadyApplied: a redelivered drop whose item already lives
	// in the destination; accepted, nothing to commit.
	transferAlreadyApplied
)

// transferDelegate performs the structural cross-stack move. Rejections
// never surface as errors; they only withhold acceptance.
type transferDelegate struct {
	board  *Board
	logger *log.Logger
}

func (d *transferDelegate) drop(req TransferRequested) (domain.MoveItem, transferOutcome) {
	env := req.Envelope
	dest := req.DestinationStackID

	if env.OriginStackID == dest {
		// Same-stack drops belong exclusively to the reorder delegate;
		// processing them here would double-apply the gesture.
		return domain.MoveItem{}, transferRejected
	}
	if !d.board.HasStack(dest) {
		return domain.MoveItem{}, transferRejected
	}

	it, ok := d.board.Item(env.ItemID)
	if !ok {
		d.logger.WithField("item_id", env.ItemID).Debug("transfer source is stale")
		return domain.MoveItem{}, transferRejected
	}
	if it.StackID == dest {
		// Idempotency key (itemID, destination): the platform redelivered
		// a drop that already took effect.
		d.logger.WithFields(log.Fields{
			"item_id":  env.ItemID,
			"stack_id": dest,
		}).Debug("duplicate drop suppressed")
		return domain.MoveItem{}, transferAlreadyApplied
	}
	if it.StackID != env.OriginStackID {
		// The item moved elsewhere since the drag began; the envelope no
		// longer describes reality.
		return domain.MoveItem{}, transferRejected
	}

	if !d.board.MoveItem(it.ID, it.StackID, dest) {
		return domain.MoveItem{}, transferRejected
	}
	return domain.MoveItem{ItemID: it.ID, FromStackID: env.OriginStackID, ToStackID: dest}, transferApplied
}
