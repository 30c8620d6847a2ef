package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
)

// fakeConn records every frame the router emits at it.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("undecodable frame %q: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ev := range c.events(t) {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) lastOfType(t *testing.T, typ string) map[string]any {
	t.Helper()
	evs := c.ofType(t, typ)
	if len(evs) == 0 {
		t.Fatalf("no %q event emitted; got %v", typ, c.events(t))
	}
	return evs[len(evs)-1]
}

func (c *fakeConn) countOfType(t *testing.T, typ string) int {
	t.Helper()
	return len(c.ofType(t, typ))
}

// fakeStore is an in-memory core.Store with switchable write failures.
type fakeStore struct {
	mu                sync.Mutex
	users             map[domain.UserID]*domain.User
	messages          []*domain.Message
	calls             map[string]*domain.Call
	failCreateMessage bool
	failCreateCall    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[domain.UserID]*domain.User),
		calls: make(map[string]*domain.Call),
	}
}

func (s *fakeStore) UpsertUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeStore) GetUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) CreateMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateMessage {
		return errors.New("store down")
	}
	cp := *m
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *fakeStore) MessagesBetween(_ context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkMessagesRead(_ context.Context, sender, reader domain.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.messages {
		if m.SenderID == sender && m.ReceiverID == reader && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) UnreadCounts(_ context.Context, user domain.UserID) (map[domain.UserID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.UserID]int)
	for _, m := range s.messages {
		if m.ReceiverID == user && !m.IsRead {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}

func (s *fakeStore) CreateCall(_ context.Context, c *domain.Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateCall {
		return errors.New("store down")
	}
	cp := *c
	s.calls[c.ID] = &cp
	return nil
}

func (s *fakeStore) MarkCallAccepted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.calls[id]; ok {
		c.Status = domain.CallAccepted
	}
	return nil
}

func (s *fakeStore) EndCall(_ context.Context, id string, status domain.CallStatus, duration time.Duration, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.calls[id]; ok {
		c.Status = status
		c.Duration = int64(duration.Seconds())
		t := endedAt
		c.EndedAt = &t
	}
	return nil
}

func (s *fakeStore) call(t *testing.T, id string) domain.Call {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		t.Fatalf("call %s not in store", id)
	}
	return *c
}

func (s *fakeStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
