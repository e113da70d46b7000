package notify

import (
	"context"
	"sync"

	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// StubComposer records messages instead of sending them.
type StubComposer struct {
	mu     sync.Mutex
	sent   []Message
	logger *logging.Logger
}

// NewStubComposer creates a stub composer that logs but doesn't send.
func NewStubComposer(logger *logging.Logger) *StubComposer {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubComposer{logger: logger}
}

func (s *StubComposer) Compose(ctx context.Context, msg Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	s.logger.Info("stub composer: would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Sent returns a copy of every message composed so far.
func (s *StubComposer) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

var _ Composer = (*StubComposer)(nil)
