package api

import "board-dnd/domain"

const (
	gestureBodyMaxSize = 4 * 1024  // begin/hover bodies are tiny
	dropPayloadMaxSize = 64 * 1024 // transfer payloads carry one envelope
)

// POST /api/drag/begin request/response
type beginDragRequest struct {
	ItemID string `json:"itemId"`
}

type beginDragResponse struct {
	MediaType string `json:"mediaType"`
	Data      []byte `json:"data"`
	Text      string `json:"text"`
}

// POST /api/stacks/:stackID/hover request/response
type hoverRequest struct {
	TargetItemID string `json:"targetItemId"`
}

type hoverResponse struct {
	Changed bool     `json:"changed"`
	Order   []string `json:"order,omitempty"`
}

// POST /api/stacks/:stackID/drop response
type dropResponse struct {
	Accepted bool     `json:"accepted"`
	Order    []string `json:"order,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// GET /api/board response
type boardResponse struct {
	Stacks []domain.Stack `json:"stacks"`
	Items  []domain.Item  `json:"items"`
}
