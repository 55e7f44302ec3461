package socket

import "encoding/json"

// EventAck answers a request frame.
const EventAck = "ack"

// Frame is the wire envelope for every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

func encodeFrame(event, id string, data any, errMsg string) ([]byte, error) {
	frame := Frame{Event: event, ID: id, Error: errMsg}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		frame.Data = raw
	}
	return json.Marshal(frame)
}
