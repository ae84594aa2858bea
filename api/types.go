package api

import (
	"context"

	"board-dnd/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	// FetchBoard returns the user's stacks in display order plus all their
	// items.
	FetchBoard(ctx context.Context, userID string) ([]domain.Stack, []domain.Item, error)
	EnqueueCommands(ctx context.Context, userID string, cmds []domain.Command) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of redelivered drop events across instances.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream delivery fails.
	Remove(ctx context.Context, userID, key string) error
}
