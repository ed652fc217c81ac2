package eventstream

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360/vizflow/network"
)

// Message is the wire form of a network event.
type Message struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Timestamp     int64  `json:"timestamp"` // Unix milliseconds
	Processor     string `json:"processor,omitempty"`
	OldIdentifier string `json:"old_identifier,omitempty"`
	Class         string `json:"class,omitempty"`
	Level         string `json:"level,omitempty"`
	Outport       string `json:"outport,omitempty"`
	Inport        string `json:"inport,omitempty"`
	Source        string `json:"source,omitempty"`
	Destination   string `json:"destination,omitempty"`
}

// NewMessage converts ev. Port and property references are written as
// dotted paths starting with the processor identifier.
func NewMessage(ev network.Event) Message {
	msg := Message{
		ID:            uuid.NewString(),
		Kind:          ev.Kind.String(),
		Timestamp:     time.Now().UnixMilli(),
		OldIdentifier: ev.OldIdentifier,
	}
	if ev.Processor != nil {
		msg.Processor = ev.Processor.Identifier()
		msg.Class = ev.Processor.Info().ClassIdentifier
	}
	if ev.Kind == network.EventProcessorInvalidated {
		msg.Level = ev.Level.String()
	}
	if c := ev.Connection; c.Outport != nil && c.Inport != nil {
		msg.Outport = c.Outport.Owner().Identifier() + "." + c.Outport.Identifier()
		msg.Inport = c.Inport.Owner().Identifier() + "." + c.Inport.Identifier()
	}
	if l := ev.Link; l.Source != nil && l.Destination != nil {
		msg.Source = strings.Join(l.Source.Path(), ".")
		msg.Destination = strings.Join(l.Destination.Path(), ".")
	}
	return msg
}

// Marshal encodes the message as JSON.
func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
