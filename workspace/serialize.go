package workspace

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/network"
	"github.com/c360/vizflow/port"
	"github.com/c360/vizflow/processor"
	"github.com/c360/vizflow/property"
)

// Serialize captures the whole network. Processors, connections and links
// keep their insertion order.
func Serialize(net *network.Network) *Document {
	doc := &Document{Version: CurrentVersion}
	for _, p := range net.Processors() {
		doc.Processors = append(doc.Processors, serializeProcessor(p))
	}
	for _, c := range net.Connections() {
		doc.Connections = append(doc.Connections, serializeConnection(c))
	}
	for _, l := range net.Links() {
		doc.Links = append(doc.Links, serializeLink(l))
	}
	return doc
}

// SerializeSelection captures the named processors together with the
// connections and links running between them.
func SerializeSelection(net *network.Network, identifiers []string) (*Document, error) {
	selected := make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		if _, ok := net.Processor(id); !ok {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: processor %q", errors.ErrNotFound, id),
				"Workspace", "SerializeSelection", "processor lookup")
		}
		selected[id] = true
	}

	doc := &Document{Version: CurrentVersion}
	for _, p := range net.Processors() {
		if selected[p.Identifier()] {
			doc.Processors = append(doc.Processors, serializeProcessor(p))
		}
	}
	for _, c := range net.Connections() {
		if selected[c.Outport.Owner().Identifier()] && selected[c.Inport.Owner().Identifier()] {
			doc.Connections = append(doc.Connections, serializeConnection(c))
		}
	}
	for _, l := range net.Links() {
		if selected[l.Source.Path()[0]] && selected[l.Destination.Path()[0]] {
			doc.Links = append(doc.Links, serializeLink(l))
		}
	}
	return doc, nil
}

func serializeProcessor(p processor.Processor) ProcessorDoc {
	pd := ProcessorDoc{
		Identifier: p.Identifier(),
		Class:      p.Info().ClassIdentifier,
		Position:   p.Position(),
	}
	for _, in := range p.Inports() {
		pd.Ports = append(pd.Ports, PortDoc{Identifier: in.Identifier(), Direction: string(port.DirectionInput), Type: string(in.DataType())})
	}
	for _, out := range p.Outports() {
		pd.Ports = append(pd.Ports, PortDoc{Identifier: out.Identifier(), Direction: string(port.DirectionOutput), Type: string(out.DataType())})
	}
	pd.Properties = serializeProperties(p.Properties())
	return pd
}

func serializeProperties(col *property.Collection) []PropertyDoc {
	var docs []PropertyDoc
	for _, prop := range col.All() {
		if !prop.Serializable() {
			continue
		}
		d := PropertyDoc{
			Identifier: prop.Identifier(),
			Class:      prop.ClassIdentifier(),
			ReadOnly:   prop.ReadOnly(),
			Hidden:     !prop.Visible(),
		}
		if comp, ok := prop.(*property.Composite); ok {
			d.Children = serializeProperties(comp.Children())
		} else {
			d.Value = prop.Value()
		}
		docs = append(docs, d)
	}
	return docs
}

func serializeConnection(c network.Connection) ConnectionDoc {
	return ConnectionDoc{
		Outport: PortRef{Processor: c.Outport.Owner().Identifier(), Port: c.Outport.Identifier()},
		Inport:  PortRef{Processor: c.Inport.Owner().Identifier(), Port: c.Inport.Identifier()},
	}
}

func serializeLink(l network.Link) LinkDoc {
	return LinkDoc{Source: l.Source.Path(), Destination: l.Destination.Path()}
}

// ItemError is a failure to load one document entry.
type ItemError struct {
	Item string
	Err  error
}

func (e *ItemError) Error() string { return e.Item + ": " + e.Err.Error() }

func (e *ItemError) Unwrap() error { return e.Err }

// LoadReport summarizes what a load added. Entries that failed are listed
// in Errors and skipped; everything else is loaded.
type LoadReport struct {
	Processors  int
	Connections int
	Links       int
	// Renamed maps document identifiers to the identifiers used in the
	// network when they differ.
	Renamed map[string]string
	Errors  []error
}

// Err joins the item errors, or returns nil.
func (r *LoadReport) Err() error { return errors.Join(r.Errors...) }

// Deserialize replaces the contents of net with doc. Failing entries are
// reported and skipped. The network is left unmodified-flagged.
func Deserialize(net *network.Network, doc *Document) (*LoadReport, error) {
	l, err := newLoader(net, doc, "Deserialize")
	if err != nil {
		return nil, err
	}
	err = net.Batch(func() error {
		net.Clear()
		l.load(false)
		return nil
	})
	net.SetModified(false)
	l.finish()
	return l.report, err
}

// Append adds doc to net next to the existing processors. Clashing
// identifiers get fresh unique ones and connections and links are remapped
// to follow.
func Append(net *network.Network, doc *Document) (*LoadReport, error) {
	l, err := newLoader(net, doc, "Append")
	if err != nil {
		return nil, err
	}
	err = net.Batch(func() error {
		l.load(true)
		return nil
	})
	l.finish()
	return l.report, err
}

type loader struct {
	net    *network.Network
	doc    *Document
	logger *slog.Logger
	report *LoadReport
	ids    map[string]string
}

func newLoader(net *network.Network, doc *Document, op string) (*loader, error) {
	if doc == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Workspace", op, "document check")
	}
	if doc.Version > CurrentVersion {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: version %d, supported %d", errors.ErrVersionTooNew, doc.Version, CurrentVersion),
			"Workspace", op, "version check")
	}
	if net.Dependencies().Registry == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Workspace", op, "registry check")
	}
	return &loader{
		net:    net,
		doc:    doc,
		logger: net.Dependencies().GetLogger().With("component", "workspace"),
		report: &LoadReport{Renamed: map[string]string{}},
		ids:    map[string]string{},
	}, nil
}

func (l *loader) fail(item string, err error) {
	l.logger.Warn("skipping workspace entry", "item", item, "error", err)
	l.report.Errors = append(l.report.Errors, &ItemError{Item: item, Err: err})
}

func (l *loader) finish() {
	r := l.report
	l.logger.Info("workspace loaded",
		"processors", r.Processors, "connections", r.Connections, "links", r.Links, "errors", len(r.Errors))
}

func (l *loader) load(rename bool) {
	for _, pd := range l.doc.Processors {
		l.loadProcessor(pd, rename)
	}
	for _, cd := range l.doc.Connections {
		l.loadConnection(cd)
	}
	for _, ld := range l.doc.Links {
		l.loadLink(ld)
	}
}

func (l *loader) loadProcessor(pd ProcessorDoc, rename bool) {
	item := "processor " + pd.Identifier
	if _, dup := l.ids[pd.Identifier]; dup {
		l.fail(item, fmt.Errorf("%w: listed twice in the document", errors.ErrDuplicateIdentifier))
		return
	}

	deps := l.net.Dependencies()
	p, err := deps.Registry.Create(pd.Class, deps.Processor)
	if err != nil {
		l.fail(item, err)
		return
	}

	id := pd.Identifier
	if rename {
		id = l.net.UniqueIdentifier(id)
	}
	if err := p.SetIdentifier(id); err != nil {
		processor.Destroy(p)
		l.fail(item, err)
		return
	}
	p.SetPosition(pd.Position)
	l.checkPorts(p, pd)
	l.restoreProperties(p.Properties(), pd.Properties, []string{pd.Identifier})

	if err := l.net.AddProcessor(p); err != nil {
		processor.Destroy(p)
		l.fail(item, err)
		return
	}
	l.ids[pd.Identifier] = id
	if id != pd.Identifier {
		l.report.Renamed[pd.Identifier] = id
	}
	l.report.Processors++
}

func (l *loader) checkPorts(p processor.Processor, pd ProcessorDoc) {
	for _, pt := range pd.Ports {
		var ok bool
		if pt.Direction == string(port.DirectionInput) {
			_, ok = p.Inport(pt.Identifier)
		} else {
			_, ok = p.Outport(pt.Identifier)
		}
		if !ok {
			l.logger.Warn("document port not declared by processor class",
				"processor", pd.Identifier, "class", pd.Class, "port", pt.Identifier)
		}
	}
}

// restoreProperties sets saved values. Properties the class does not
// declare are created through the property registry and keep the saved
// flags; declared properties keep the flags of their class.
func (l *loader) restoreProperties(col *property.Collection, docs []PropertyDoc, path []string) {
	for _, pd := range docs {
		ppath := append(slices.Clone(path), pd.Identifier)
		item := "property " + PropertyPath(ppath).String()

		prop, ok := col.Get(pd.Identifier)
		if !ok {
			created, err := l.net.Dependencies().Registry.CreateProperty(pd.Class, pd.Identifier, pd.Identifier)
			if err != nil {
				l.fail(item, err)
				continue
			}
			created.SetReadOnly(pd.ReadOnly)
			created.SetVisible(!pd.Hidden)
			if err := col.Add(created); err != nil {
				l.fail(item, err)
				continue
			}
			prop = created
		} else if prop.ClassIdentifier() != pd.Class {
			l.fail(item, fmt.Errorf("%w: saved as %s, declared as %s",
				errors.ErrIncompatibleTypes, pd.Class, prop.ClassIdentifier()))
			continue
		}

		if comp, ok := prop.(*property.Composite); ok {
			l.restoreProperties(comp.Children(), pd.Children, ppath)
			continue
		}
		if pd.Value == nil {
			continue
		}
		if err := prop.SetValue(pd.Value); err != nil {
			l.fail(item, err)
		}
	}
}

func (l *loader) processor(docID string) (processor.Processor, error) {
	id, ok := l.ids[docID]
	if !ok {
		return nil, fmt.Errorf("%w: processor %q was not loaded", errors.ErrNotFound, docID)
	}
	p, ok := l.net.Processor(id)
	if !ok {
		return nil, fmt.Errorf("%w: processor %q", errors.ErrNotFound, id)
	}
	return p, nil
}

func (l *loader) loadConnection(cd ConnectionDoc) {
	item := "connection " + cd.String()

	src, err := l.processor(cd.Outport.Processor)
	if err != nil {
		l.fail(item, err)
		return
	}
	dst, err := l.processor(cd.Inport.Processor)
	if err != nil {
		l.fail(item, err)
		return
	}
	out, ok := src.Outport(cd.Outport.Port)
	if !ok {
		l.fail(item, fmt.Errorf("%w: outport %s", errors.ErrNotFound, cd.Outport))
		return
	}
	in, ok := dst.Inport(cd.Inport.Port)
	if !ok {
		l.fail(item, fmt.Errorf("%w: inport %s", errors.ErrNotFound, cd.Inport))
		return
	}
	if _, err := l.net.AddConnection(out, in); err != nil {
		l.fail(item, err)
		return
	}
	l.report.Connections++
}

func (l *loader) property(path PropertyPath) (property.Property, error) {
	p, err := l.processor(path[0])
	if err != nil {
		return nil, err
	}
	prop, ok := processor.Find(p, path[1:])
	if !ok {
		return nil, fmt.Errorf("%w: property %s", errors.ErrNotFound, path)
	}
	return prop, nil
}

func (l *loader) loadLink(ld LinkDoc) {
	item := "link " + ld.String()
	if len(ld.Source) < 2 || len(ld.Destination) < 2 {
		l.fail(item, fmt.Errorf("%w: property paths need a processor and a property", errors.ErrInvalidData))
		return
	}

	src, err := l.property(ld.Source)
	if err != nil {
		l.fail(item, err)
		return
	}
	dst, err := l.property(ld.Destination)
	if err != nil {
		l.fail(item, err)
		return
	}
	if _, err := l.net.AddLink(src, dst); err != nil {
		l.fail(item, err)
		return
	}
	l.report.Links++
}
