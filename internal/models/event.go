package models

import (
	"encoding/json"
	"fmt"
)

// EventType tags a stream event.
type EventType string

const (
	// EventThinking carries an intermediate reasoning fragment.
	EventThinking EventType = "thinking"

	// EventResponse carries an answer text fragment; concatenating all
	// response fragments in emission order reconstructs the full answer.
	EventResponse EventType = "response"

	// EventChart carries one mined chart specification. Chart events are
	// only emitted after the full response text has been seen.
	EventChart EventType = "chart"

	// EventComplete terminates a stream. Exactly one is emitted per
	// stream, even when the analysis backend failed.
	EventComplete EventType = "complete"
)

// StreamEvent is one element of a streamed analysis. Events are ephemeral
// and ordered; see EventType for the protocol.
type StreamEvent struct {
	Type      EventType
	Content   string     // thinking and response fragments
	Chart     *ChartSpec // set only for chart events
	SessionID string     // set only on the complete event
}

// MarshalJSON writes the wire shape: chart events put the spec in the
// content field, the complete event carries only the session id.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventChart:
		return json.Marshal(struct {
			Type    EventType  `json:"type"`
			Content *ChartSpec `json:"content"`
		}{e.Type, e.Chart})
	case EventComplete:
		return json.Marshal(struct {
			Type      EventType `json:"type"`
			SessionID string    `json:"session_id"`
		}{e.Type, e.SessionID})
	default:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	}
}

// UnmarshalJSON reads the wire shape back into the tagged form.
func (e *StreamEvent) UnmarshalJSON(b []byte) error {
	var shell struct {
		Type      EventType       `json:"type"`
		Content   json.RawMessage `json:"content"`
		SessionID string          `json:"session_id"`
	}
	if err := json.Unmarshal(b, &shell); err != nil {
		return err
	}

	e.Type = shell.Type
	e.SessionID = shell.SessionID
	e.Content = ""
	e.Chart = nil

	switch shell.Type {
	case EventChart:
		var spec ChartSpec
		if err := json.Unmarshal(shell.Content, &spec); err != nil {
			return fmt.Errorf("decode chart event: %w", err)
		}
		e.Chart = &spec
	case EventThinking, EventResponse:
		if len(shell.Content) > 0 {
			if err := json.Unmarshal(shell.Content, &e.Content); err != nil {
				return fmt.Errorf("decode %s event: %w", shell.Type, err)
			}
		}
	case EventComplete:
		// session id only
	default:
		return fmt.Errorf("unknown event type %q", shell.Type)
	}
	return nil
}
