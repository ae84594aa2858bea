package domain

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// PayloadMediaType identifies the structured representation of a drag
// payload. Receivers that do not understand it fall back to Payload.Text.
const PayloadMediaType = "application/x-board-item+json"

// ErrMalformedPayload is returned when a dropped payload cannot be decoded
// into a TransferEnvelope. Callers treat it as "reject this drop"; it is
// never fatal.
var ErrMalformedPayload = errors.New("malformed transfer payload")

// TransferEnvelope is the minimal identifying payload carried by a drag
// gesture across a drop boundary. It deliberately excludes full item data.
type TransferEnvelope struct {
	ItemID        string `json:"itemId"`
	OriginStackID string `json:"originStackId"`
	DisplayTitle  string `json:"displayTitle"`
}

// Payload is a transferable encoding of an item: structured bytes for
// receivers that understand PayloadMediaType, plus a plain-text fallback for
// foreign receivers that accept only text.
type Payload struct {
	Data []byte `json:"data"`
	Text string `json:"text"`
}

// EncodeItem produces the transferable payload for a drag source.
func EncodeItem(it Item) (Payload, error) {
	env := TransferEnvelope{
		ItemID:        it.ID,
		OriginStackID: it.StackID,
		DisplayTitle:  it.Title,
	}
	data, err := sonic.Marshal(env)
	if err != nil {
		return Payload{}, fmt.Errorf("encode transfer envelope: %w", err)
	}
	return Payload{Data: data, Text: it.Title}, nil
}

// DecodeEnvelope parses the structured representation of a drag payload.
// Foreign or malformed payloads, and payloads missing the identifying
// fields, yield ErrMalformedPayload.
func DecodeEnvelope(data []byte) (TransferEnvelope, error) {
	if len(data) == 0 {
		return TransferEnvelope{}, ErrMalformedPayload
	}
	var env TransferEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return TransferEnvelope{}, ErrMalformedPayload
	}
	if env.ItemID == "" || env.OriginStackID == "" {
		return TransferEnvelope{}, ErrMalformedPayload
	}
	return env, nil
}
