package domain

import "github.com/bytedance/sonic"

// Command types emitted by finalized drag gestures.
const (
	CommandStackReordered = "stack-reordered"
	CommandItemMoved      = "item-moved"
)

// FinalOrder is the payload of a stack-reordered command: the complete order
// of one stack after a same-stack drag finished.
type FinalOrder struct {
	StackID        string   `json:"stackId"`
	OrderedItemIDs []string `json:"orderedItemIds"`
}

// MoveItem is the payload of an item-moved command: a single cross-stack
// relocation.
type MoveItem struct {
	ItemID      string `json:"itemId"`
	FromStackID string `json:"fromStackId"`
	ToStackID   string `json:"toStackId"`
}

// Command represents a write request for the domain model.
type Command struct {
	// ID carries the idempotency key when enqueued to the commit queue.
	ID             string                 `json:"id,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	EntityType     string                 `json:"entityType"`
	Type           string                 `json:"type"`
	Data           sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp      int64                  `json:"timestamp"`
}

// CommandEnvelope wraps a command with the user performing it.
type CommandEnvelope struct {
	UserID  string  `json:"userId"`
	Command Command `json:"command"`
}
