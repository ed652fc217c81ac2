// Package workspace saves and loads processor networks.
//
// A network is captured as a Document: processors with their class,
// position, port declarations and serializable property values, followed by
// connections and property links that refer to processors by identifier and
// to properties by path. Documents are encoded as JSON or YAML and validated
// against an embedded JSON schema before they are decoded.
//
// Loading is forgiving. Deserialize and Append skip entries that cannot be
// restored (an unknown processor class, a connection to a missing port, a
// link between incompatible properties), log them and return them in the
// LoadReport, and load everything else. All changes happen inside one
// network batch so evaluation runs once afterwards.
//
// SerializeSelection and Append implement copy and paste: a selection keeps
// only the connections and links between selected processors, and pasted
// processors receive fresh identifiers when theirs are taken.
//
// Store persists documents in a NATS JetStream key-value bucket with
// optimistic versioning and a short revision history.
package workspace
