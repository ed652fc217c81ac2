package workspace

import (
	"fmt"
	"strings"

	"github.com/c360/vizflow/types"
)

// CurrentVersion is the document version written by this package. Older
// versions load; newer versions are rejected.
const CurrentVersion = 1

// Document is the tree form of a network.
type Document struct {
	Version     int             `json:"version"`
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name,omitempty"`
	Processors  []ProcessorDoc  `json:"processors"`
	Connections []ConnectionDoc `json:"connections"`
	Links       []LinkDoc       `json:"links"`

	// Setup carries application settings through a load/save round trip
	// untouched.
	Setup map[string]any `json:"setup,omitempty"`
}

// ProcessorDoc describes one processor.
type ProcessorDoc struct {
	Identifier string         `json:"identifier"`
	Class      string         `json:"class"`
	Position   types.Position `json:"position"`
	Ports      []PortDoc      `json:"ports,omitempty"`
	Properties []PropertyDoc  `json:"properties,omitempty"`
}

// PortDoc records a port's declaration. Ports are created by the processor
// class, so on load these are only checked, never created.
type PortDoc struct {
	Identifier string `json:"identifier"`
	Direction  string `json:"direction"`
	Type       string `json:"type"`
}

// PropertyDoc holds a property value. Composites carry children instead.
type PropertyDoc struct {
	Identifier string        `json:"identifier"`
	Class      string        `json:"class"`
	Value      any           `json:"value"`
	ReadOnly   bool          `json:"read_only,omitempty"`
	Hidden     bool          `json:"hidden,omitempty"`
	Children   []PropertyDoc `json:"children,omitempty"`
}

// PortRef names a port by processor and port identifier.
type PortRef struct {
	Processor string `json:"processor"`
	Port      string `json:"port"`
}

func (r PortRef) String() string { return r.Processor + "." + r.Port }

// ConnectionDoc is an outport to inport connection.
type ConnectionDoc struct {
	Outport PortRef `json:"outport"`
	Inport  PortRef `json:"inport"`
}

func (c ConnectionDoc) String() string { return c.Outport.String() + " -> " + c.Inport.String() }

// PropertyPath is a property path, processor identifier first.
type PropertyPath []string

func (p PropertyPath) String() string { return strings.Join(p, ".") }

// LinkDoc is a directed property link.
type LinkDoc struct {
	Source      PropertyPath `json:"source"`
	Destination PropertyPath `json:"destination"`
}

func (l LinkDoc) String() string { return l.Source.String() + " -> " + l.Destination.String() }

// Processor returns the processor entry with the given identifier.
func (d *Document) Processor(identifier string) (*ProcessorDoc, bool) {
	for i := range d.Processors {
		if d.Processors[i].Identifier == identifier {
			return &d.Processors[i], true
		}
	}
	return nil, false
}

// Property returns the property entry at path.
func (d *Document) Property(path PropertyPath) (*PropertyDoc, bool) {
	if len(path) < 2 {
		return nil, false
	}
	p, ok := d.Processor(path[0])
	if !ok {
		return nil, false
	}
	props := p.Properties
	var found *PropertyDoc
	for _, id := range path[1:] {
		found = nil
		for i := range props {
			if props[i].Identifier == id {
				found = &props[i]
				break
			}
		}
		if found == nil {
			return nil, false
		}
		props = found.Children
	}
	return found, true
}

// String summarizes the document for logs.
func (d *Document) String() string {
	return fmt.Sprintf("workspace %q v%d (%d processors, %d connections, %d links)",
		d.Name, d.Version, len(d.Processors), len(d.Connections), len(d.Links))
}
