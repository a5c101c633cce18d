// Package ari implements the Asterisk REST Interface client side: the
// command client used to drive channels and the websocket event listener
// that feeds the call lifecycle.
//
// Events arrive as JSON objects whose "type" field selects the variant.
// [ParseEvent] decodes the handful of types the application acts on and
// wraps everything else in [Unrecognized] so the listener can log and skip
// unknown traffic without failing.
package ari

import (
	"encoding/json"
	"fmt"
)

// Channel is the subset of the Asterisk channel resource the application
// reads from events.
type Channel struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	State  string       `json:"state"`
	Caller CallerID     `json:"caller"`
	Dialed DialedNumber `json:"dialplan"`
}

// CallerID carries the caller presentation of a channel.
type CallerID struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// DialedNumber carries the dialplan position of a channel; Exten is the
// dialed destination.
type DialedNumber struct {
	Exten string `json:"exten"`
}

// Event is the closed set of ARI event variants the listener dispatches on.
// Concrete types: [StasisStart], [StasisEnd], [ChannelStateChange],
// [ChannelDtmfReceived], [Unrecognized].
type Event interface {
	eventType() string
}

// StasisStart signals that a channel entered the Stasis application. Args
// carries the dialplan arguments passed to Stasis().
type StasisStart struct {
	Channel Channel  `json:"channel"`
	Args    []string `json:"args"`
}

// StasisEnd signals that a channel left the Stasis application, which for
// this application means the call leg hung up.
type StasisEnd struct {
	Channel Channel `json:"channel"`
}

// ChannelStateChange reports a channel state transition (Ring, Up, ...).
type ChannelStateChange struct {
	Channel Channel `json:"channel"`
}

// ChannelDtmfReceived reports a single DTMF digit pressed on a channel.
type ChannelDtmfReceived struct {
	Channel Channel `json:"channel"`
	Digit   string  `json:"digit"`
}

// Unrecognized wraps any event type the application does not act on. Raw
// holds the original payload for debug logging.
type Unrecognized struct {
	Type string
	Raw  json.RawMessage
}

func (StasisStart) eventType() string         { return "StasisStart" }
func (StasisEnd) eventType() string           { return "StasisEnd" }
func (ChannelStateChange) eventType() string  { return "ChannelStateChange" }
func (ChannelDtmfReceived) eventType() string { return "ChannelDtmfReceived" }
func (e Unrecognized) eventType() string      { return e.Type }

// ParseEvent decodes a single ARI event frame into its variant. Payloads
// without a "type" field or with malformed JSON return an error; payloads of
// unknown type decode successfully into [Unrecognized].
func ParseEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse event envelope: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("event has no type field")
	}

	switch head.Type {
	case "StasisStart":
		var ev StasisStart
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse StasisStart: %w", err)
		}
		return ev, nil
	case "StasisEnd":
		var ev StasisEnd
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse StasisEnd: %w", err)
		}
		return ev, nil
	case "ChannelStateChange":
		var ev ChannelStateChange
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse ChannelStateChange: %w", err)
		}
		return ev, nil
	case "ChannelDtmfReceived":
		var ev ChannelDtmfReceived
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse ChannelDtmfReceived: %w", err)
		}
		return ev, nil
	default:
		return Unrecognized{Type: head.Type, Raw: json.RawMessage(data)}, nil
	}
}
