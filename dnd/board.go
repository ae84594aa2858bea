package dnd

import (
	"board-dnd/domain"
)

// Board is the value-typed working state a drag gesture mutates: stacks hold
// ordered id slices and items are plain values keyed by id. Ordered slices
// are replaced wholesale, never edited in place, so a reader holding a slice
// returned earlier never observes a partial mutation.
type Board struct {
	stackIDs []string
	stacks   map[string]*domain.Stack
	items    map[string]domain.Item
}

// NewBoard builds a board from the read model. Stack display order follows
// the input slice.
func NewBoard(stacks []domain.Stack, items []domain.Item) *Board {
	b := &Board{
		stackIDs: make([]string, 0, len(stacks)),
		stacks:   make(map[string]*domain.Stack, len(stacks)),
		items:    make(map[string]domain.Item, len(items)),
	}
	for _, s := range stacks {
		cp := s
		cp.OrderedItemIDs = append([]string(nil), s.OrderedItemIDs...)
		b.stackIDs = append(b.stackIDs, s.ID)
		b.stacks[s.ID] = &cp
	}
	for _, it := range items {
		b.items[it.ID] = it
	}
	return b
}

// Clone returns a deep copy, used to snapshot the last committed state.
func (b *Board) Clone() *Board {
	cp := &Board{
		stackIDs: append([]string(nil), b.stackIDs...),
		stacks:   make(map[string]*domain.Stack, len(b.stacks)),
		items:    make(map[string]domain.Item, len(b.items)),
	}
	for id, s := range b.stacks {
		sc := *s
		sc.OrderedItemIDs = append([]string(nil), s.OrderedItemIDs...)
		cp.stacks[id] = &sc
	}
	for id, it := range b.items {
		cp.items[id] = it
	}
	return cp
}

// Restore replaces the board's contents with those of the snapshot.
func (b *Board) Restore(snapshot *Board) {
	cp := snapshot.Clone()
	b.stackIDs = cp.stackIDs
	b.stacks = cp.stacks
	b.items = cp.items
}

// Item resolves an item id against current state.
func (b *Board) Item(id string) (domain.Item, bool) {
	it, ok := b.items[id]
	return it, ok
}

// HasStack reports whether the stack exists.
func (b *Board) HasStack(id string) bool {
	_, ok := b.stacks[id]
	return ok
}

// Order returns a copy of the stack's ordered item ids. Unknown stacks
// return nil.
func (b *Board) Order(stackID string) []string {
	s, ok := b.stacks[stackID]
	if !ok {
		return nil
	}
	return append([]string(nil), s.OrderedItemIDs...)
}

// ReplaceOrder swaps in a new ordering for the stack. The slice is taken
// over by the board; callers must not retain it.
func (b *Board) ReplaceOrder(stackID string, ids []string) {
	if s, ok := b.stacks[stackID]; ok {
		s.OrderedItemIDs = ids
	}
}

// MoveItem relocates an item from one stack to the end of another as a
// single mutation: both orderings and the item's StackID change together, so
// no observer sees the item listed twice or not at all.
func (b *Board) MoveItem(itemID, fromStackID, toStackID string) bool {
	it, ok := b.items[itemID]
	if !ok {
		return false
	}
	from, ok := b.stacks[fromStackID]
	if !ok {
		return false
	}
	to, ok := b.stacks[toStackID]
	if !ok {
		return false
	}
	if domain.IndexOf(from.OrderedItemIDs, itemID) < 0 {
		return false
	}

	from.OrderedItemIDs = domain.RemoveID(from.OrderedItemIDs, itemID)
	to.OrderedItemIDs = append(append([]string(nil), to.OrderedItemIDs...), itemID)
	it.StackID = toStackID
	b.items[itemID] = it
	return true
}

// Stacks returns the stacks in display order with copied orderings, for
// serving the read model.
func (b *Board) Stacks() []domain.Stack {
	out := make([]domain.Stack, 0, len(b.stackIDs))
	for _, id := range b.stackIDs {
		s := b.stacks[id]
		out = append(out, domain.Stack{
			ID:             s.ID,
			OrderedItemIDs: append([]string(nil), s.OrderedItemIDs...),
		})
	}
	return out
}

// Items returns all items. Order is unspecified.
func (b *Board) Items() []domain.Item {
	out := make([]domain.Item, 0, len(b.items))
	for _, it := range b.items {
		out = append(out, it)
	}
	return out
}

// RemoveItem deletes an item and unlinks it from its stack. Used by hosts
// reconciling concurrent deletions into the working state.
func (b *Board) RemoveItem(itemID string) {
	it, ok := b.items[itemID]
	if !ok {
		return
	}
	if s, ok := b.stacks[it.StackID]; ok {
		s.OrderedItemIDs = domain.RemoveID(s.OrderedItemIDs, itemID)
	}
	delete(b.items, itemID)
}
