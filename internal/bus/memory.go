package bus

import (
	"context"
	"strings"
	"sync"
)

// MemoryBus is an in-process Bus with NATS subject-token matching. It backs
// tests and single-process deployments where the client and gateway live in
// the same binary.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[int]*memorySub
	next int
}

type memorySub struct {
	id      int
	pattern string
	handler Handler
	bus     *MemoryBus
}

func (s *memorySub) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
	return nil
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]*memorySub)}
}

func (b *MemoryBus) Subscribe(pattern string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	sub := &memorySub{id: b.next, pattern: pattern, handler: h, bus: b}
	b.subs[sub.id] = sub
	return sub, nil
}

func (b *MemoryBus) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	b.mu.RLock()
	var handler Handler
	for _, sub := range b.subs {
		if subjectMatches(sub.pattern, subject) {
			handler = sub.handler
			break
		}
	}
	b.mu.RUnlock()

	if handler == nil {
		return nil, ErrNoResponder
	}

	replyCh := make(chan []byte, 1)
	go func() { replyCh <- handler(subject, data) }()
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[int]*memorySub)
}

// subjectMatches applies token semantics: '*' matches one token, '>' matches
// everything from its position onward.
func subjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
