package bus

import (
	"encoding/json"
)

// originField is the origin-process tag added to every published frame and
// stripped again before delivery to clients.
const originField = "srv"

// roomField is the room name every broadcast frame carries.
const roomField = "room"

// encodeOutgoing stamps the frame with the origin id and serializes it.
func encodeOutgoing(origin string, frame any) ([]byte, error) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	tag, err := json.Marshal(origin)
	if err != nil {
		return nil, err
	}
	m[originField] = tag
	return json.Marshal(m)
}

// DecodeIncoming inspects a raw bus message. Events originating from this
// process are discarded (ok=false): they were already delivered locally when
// published. For foreign events it returns the target room and the payload
// with the origin tag stripped. Malformed events and events without a room
// are dropped.
func DecodeIncoming(origin string, data []byte) (room string, payload []byte, ok bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return "", nil, false
	}

	if rawSrv, exists := m[originField]; exists {
		var srv string
		if err := json.Unmarshal(rawSrv, &srv); err == nil && srv == origin {
			return "", nil, false
		}
		delete(m, originField)
	}

	rawRoom, exists := m[roomField]
	if !exists {
		return "", nil, false
	}
	if err := json.Unmarshal(rawRoom, &room); err != nil || room == "" {
		return "", nil, false
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return "", nil, false
	}
	return room, payload, true
}
