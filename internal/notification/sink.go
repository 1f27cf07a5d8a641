package notification

import (
	"context"
	"sync"
)

// Sink accepts payloads for delivery on one channel. Delivery failures are
// the sink's problem to report; the dispatcher never fails a transition over
// them.
type Sink interface {
	Deliver(ctx context.Context, payload Payload) error
}

// MemorySink collects delivered payloads; test double for both channels.
type MemorySink struct {
	mu        sync.Mutex
	delivered []Payload
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Deliver(_ context.Context, payload Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, payload)
	return nil
}

func (s *MemorySink) Delivered() []Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Payload{}, s.delivered...)
}
