package streaming

import (
	"encoding/json"

	"github.com/OCAP2/missionsim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun   = "start_run"
	TypeEndRun     = "end_run"
	TypeAddEntity  = "add_entity"
	TypeTimeline   = "timeline"
	TypeDetection  = "detection_event"
	TypeDetonation = "detonation_event"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload carries run metadata.
type StartRunPayload struct {
	Run *core.Run `json:"run"`
}

// AddEntityPayload carries one registered entity. Entity.ID is not
// serialized, so the assigned id travels alongside.
type AddEntityPayload struct {
	ID     uint         `json:"id"`
	Entity *core.Entity `json:"entity"`
}

// EndRunPayload carries the final tick reached.
type EndRunPayload struct {
	LastTick int `json:"last_tick"`
}

// NewEnvelope marshals payload and wraps it with msgType.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: data}, nil
}

// Marshal encodes the envelope as sent on the wire.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}
