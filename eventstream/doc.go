// Package eventstream forwards processor network events to external
// observers.
//
// A Forwarder subscribes to a network, converts each event to a Message and
// hands it to its sinks from its own goroutine, so slow sinks never block
// network edits. Two sinks are provided: NATSPublisher publishes JSON
// messages on <prefix>.<kind> subjects, and Hub pushes them to WebSocket
// clients such as a network editor.
//
// Usage:
//
//	hub := eventstream.NewHub(logger)
//	fwd := eventstream.NewForwarder(net, eventstream.DefaultConfig(), deps,
//		eventstream.NewNATSPublisher(natsClient, "vizflow.events"), hub)
//	go fwd.Run(ctx)
//	mux.Handle("/events", hub)
package eventstream
