package network

import (
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/types"
)

// EventKind identifies a network event.
type EventKind int

// Network event kinds. Will* events fire before the change is applied,
// the others after.
const (
	EventProcessorWillAdd EventKind = iota
	EventProcessorAdded
	EventProcessorWillRemove
	EventProcessorRemoved
	EventProcessorRenamed
	EventConnectionWillAdd
	EventConnectionAdded
	EventConnectionWillRemove
	EventConnectionRemoved
	EventLinkWillAdd
	EventLinkAdded
	EventLinkWillRemove
	EventLinkRemoved
	EventProcessorInvalidated
	EventProcessorProcessed
	EventEvaluateRequest
)

var eventKindNames = map[EventKind]string{
	EventProcessorWillAdd:     "processor_will_add",
	EventProcessorAdded:       "processor_added",
	EventProcessorWillRemove:  "processor_will_remove",
	EventProcessorRemoved:     "processor_removed",
	EventProcessorRenamed:     "processor_renamed",
	EventConnectionWillAdd:    "connection_will_add",
	EventConnectionAdded:      "connection_added",
	EventConnectionWillRemove: "connection_will_remove",
	EventConnectionRemoved:    "connection_removed",
	EventLinkWillAdd:          "link_will_add",
	EventLinkAdded:            "link_added",
	EventLinkWillRemove:       "link_will_remove",
	EventLinkRemoved:          "link_removed",
	EventProcessorInvalidated: "processor_invalidated",
	EventProcessorProcessed:   "processor_processed",
	EventEvaluateRequest:      "evaluate_request",
}

// String returns the string representation of the kind
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is delivered to network observers. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind          EventKind
	Processor     processor.Processor
	Connection    Connection
	Link          Link
	Level         types.InvalidationLevel
	OldIdentifier string
}
