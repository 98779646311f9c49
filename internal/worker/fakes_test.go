package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/jmehdipour/reminder/internal/kafka"
	"github.com/jmehdipour/reminder/internal/mail"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []mail.Message
	// failures is consumed one entry per call; true fails that call.
	failures []bool
	failTo   map[string]bool
}

func (s *fakeSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fail := s.failTo[msg.To]
	if len(s.failures) > 0 {
		fail = fail || s.failures[0]
		s.failures = s.failures[1:]
	}
	if fail {
		return errors.New("mail api 503")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) subjects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.Subject)
	}
	return out
}

type fakeSource struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
	commitErr []error
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.pending) > 0 {
		m := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *fakeSource) Commit(_ context.Context, m kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commitErr) > 0 {
		err := s.commitErr[0]
		s.commitErr = s.commitErr[1:]
		if err != nil {
			return err
		}
	}
	s.committed = append(s.committed, m)
	return nil
}

func (s *fakeSource) offsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.committed))
	for _, m := range s.committed {
		out = append(out, m.Offset)
	}
	return out
}

type written struct {
	key, value []byte
	headers    []kafka.Header
}

type fakeWriter struct {
	mu      sync.Mutex
	writes  []written
	failing int // number of next calls that fail
}

func (w *fakeWriter) Write(_ context.Context, key, value []byte, headers ...kafka.Header) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failing > 0 {
		w.failing--
		return errors.New("broker unavailable")
	}
	w.writes = append(w.writes, written{key: key, value: value, headers: headers})
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedup) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *memDedup) Remember(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}
