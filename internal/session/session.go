// Package session holds the explicit per-user context and the load state of
// the selected business.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNoSession = errors.New("no active session")

// Session is immutable. Switching business produces a new value.
type Session struct {
	ID         string    `json:"id"`
	UserEmail  string    `json:"user_email"`
	Token      string    `json:"-"`
	BusinessID int64     `json:"business_id"`
	StartedAt  time.Time `json:"started_at"`
}

// HasBusiness reports whether a business is selected.
func (s Session) HasBusiness() bool {
	return s.BusinessID > 0
}

// WithBusiness returns a copy of s bound to another business.
func (s Session) WithBusiness(businessID int64) Session {
	s.BusinessID = businessID
	return s
}

// Manager owns the lifecycle: Start at login, SwitchBusiness on selection,
// End at logout.
type Manager struct {
	mu      sync.RWMutex
	current *Session
	now     func() time.Time
}

func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// Start opens a session, replacing any previous one.
func (m *Manager) Start(userEmail, token string, businessID int64) Session {
	s := Session{
		ID:         uuid.NewString(),
		UserEmail:  userEmail,
		Token:      token,
		BusinessID: businessID,
		StartedAt:  m.now(),
	}
	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()
	return s
}

// Current returns the active session.
func (m *Manager) Current() (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, ErrNoSession
	}
	return *m.current, nil
}

// SwitchBusiness replaces the active session with one bound to businessID.
func (m *Manager) SwitchBusiness(businessID int64) (Session, error) {
	if businessID < 0 {
		return Session{}, fmt.Errorf("switch business: invalid id %d", businessID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, ErrNoSession
	}
	next := m.current.WithBusiness(businessID)
	m.current = &next
	return next, nil
}

// End tears the session down. Later calls fail with ErrNoSession.
func (m *Manager) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ErrNoSession
	}
	m.current = nil
	return nil
}
