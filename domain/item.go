package domain

// Item represents a single orderable board entry.
type Item struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	StackID string `json:"stackId"`
}

// Stack is an ordered, duplicate-free collection of item ids. StackID on the
// items themselves is the source of truth for membership; OrderedItemIDs only
// records relative position.
type Stack struct {
	ID             string   `json:"id"`
	OrderedItemIDs []string `json:"orderedItemIds"`
}
