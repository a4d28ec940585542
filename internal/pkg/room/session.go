package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/airenas/go-app/pkg/goapp"
)

// SessionCreator creates session contexts
type SessionCreator interface {
	CreateSession(ctx context.Context) (*api.Session, error)
}

// SessionKeeper holds the session context of the client. The session is
// created on first use and recreated after it expires
type SessionKeeper struct {
	creator SessionCreator
	clk     Clock

	lock    sync.Mutex
	current *api.Session
}

// NewSessionKeeper creates the keeper
func NewSessionKeeper(creator SessionCreator, clk Clock) (*SessionKeeper, error) {
	if creator == nil {
		return nil, fmt.Errorf("no session creator")
	}
	if clk == nil {
		return nil, fmt.Errorf("no clock")
	}
	return &SessionKeeper{creator: creator, clk: clk}, nil
}

// Get returns a valid session
func (k *SessionKeeper) Get(ctx context.Context) (*api.Session, error) {
	k.lock.Lock()
	defer k.lock.Unlock()
	if k.current != nil && !k.current.Expired(k.clk.Now()) {
		return k.current, nil
	}
	if k.current != nil {
		goapp.Log.Info().Str("ID", k.current.SessionID).Msg("session expired")
		k.current = nil
	}
	s, err := k.creator.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't create session: %w", err)
	}
	goapp.Log.Info().Str("ID", s.SessionID).Time("expires", s.ExpiresAt).Msg("session created")
	k.current = s
	return s, nil
}

// Restore sets a previously saved session, an expired one is ignored
func (k *SessionKeeper) Restore(s *api.Session) bool {
	if s == nil || s.Validate() != nil || s.Expired(k.clk.Now()) {
		return false
	}
	k.lock.Lock()
	defer k.lock.Unlock()
	k.current = s
	return true
}

// Clear drops the session
func (k *SessionKeeper) Clear() {
	k.lock.Lock()
	defer k.lock.Unlock()
	k.current = nil
}
