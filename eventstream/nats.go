package eventstream

import (
	"context"
	"strings"

	"github.com/c360/vizflow/errors"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "vizflow.events"

// Publisher is the part of natsclient.Client the NATS sink needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSPublisher sends each message to <prefix>.<kind>.
type NATSPublisher struct {
	client Publisher
	prefix string
}

// NewNATSPublisher creates a NATS sink. An empty prefix means
// DefaultSubjectPrefix.
func NewNATSPublisher(client Publisher, prefix string) *NATSPublisher {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{client: client, prefix: prefix}
}

// Name implements Sink.
func (p *NATSPublisher) Name() string { return "nats" }

// Subject returns the subject messages of kind are published on.
func (p *NATSPublisher) Subject(kind string) string {
	return p.prefix + "." + kind
}

// Send implements Sink.
func (p *NATSPublisher) Send(ctx context.Context, msg Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return errors.WrapFatal(err, "NATSPublisher", "Send", "marshal message")
	}
	if err := p.client.Publish(ctx, p.Subject(msg.Kind), data); err != nil {
		return errors.WrapTransient(err, "NATSPublisher", "Send", "publish "+msg.Kind)
	}
	return nil
}
