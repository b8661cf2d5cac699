// Package bus abstracts the request/reply message transport the gateway
// serves on. The production implementation rides NATS; an in-memory
// implementation backs tests and the embedded client.
package bus

import (
	"context"
	"errors"
)

// ErrNoResponder is returned by Request when nothing is subscribed to the
// subject.
var ErrNoResponder = errors.New("bus: no responder on subject")

// Handler processes one inbound request and returns the reply payload. A
// handler must always produce a reply; errors travel inside the payload as
// structured envelopes, never as transport failures.
type Handler func(subject string, data []byte) []byte

// Subscription is a live binding of a handler to a subject pattern.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the transport consumed by the gateway (Subscribe) and the client
// wrapper (Request). Patterns follow subject-token semantics: '.' separates
// tokens, '*' matches exactly one token, '>' matches the remainder.
type Bus interface {
	Subscribe(pattern string, h Handler) (Subscription, error)
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Close()
}
