package app

import (
	"sync"

	"github.com/dkeye/Talk/internal/domain"
)

// ActiveChats maps a user to the conversation they are currently viewing.
// Pure mapping, no side effects; callers decide what to do with the result
// (the message router uses it to auto-mark incoming messages read).
type ActiveChats struct {
	mu      sync.RWMutex
	viewing map[domain.UserID]domain.UserID
}

func NewActiveChats() *ActiveChats {
	return &ActiveChats{viewing: make(map[domain.UserID]domain.UserID)}
}

func (a *ActiveChats) Set(uid, peer domain.UserID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.viewing[uid] = peer
}

func (a *ActiveChats) Clear(uid domain.UserID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.viewing, uid)
}

func (a *ActiveChats) Get(uid domain.UserID) (domain.UserID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	peer, ok := a.viewing[uid]
	return peer, ok
}
