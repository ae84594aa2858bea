// Package dnd implements the drag-and-drop reorder and transfer engine for a
// board of stacks: live same-stack reordering while a drag hovers over
// sibling items, and structural cross-stack moves when a drop's payload
// originates elsewhere. The package is host-independent; callers feed it
// gesture intents and read back resulting orders. All state is value-typed
// ids, never live object references, so a dragged item deleted mid-gesture
// degrades to a no-op instead of a dangling pointer.
package dnd

// Session is the single-slot record of the in-flight drag, holding only the
// dragged item's id. Delegates treat the id as potentially stale and
// re-resolve it against the board before acting.
//
// Session is not safe for concurrent use; the registry serializes all
// gesture callbacks for one user.
type Session struct {
	draggedItemID string
	active        bool
}

// Begin records a new drag. Beginning while a session is active replaces the
// previous id (last-writer-wins).
func (s *Session) Begin(itemID string) {
	s.draggedItemID = itemID
	s.active = true
}

// Current returns the dragged item id, if a drag is in flight.
func (s *Session) Current() (string, bool) {
	if !s.active {
		return "", false
	}
	return s.draggedItemID, true
}

// End clears the session. It is idempotent and runs on every terminal path:
// drop, cancel, or a platform-interrupted gesture.
func (s *Session) End() {
	s.draggedItemID = ""
	s.active = false
}
