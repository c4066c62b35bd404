package oauthflow

import (
	"sync"
	"time"
)

// TTL bounds how long a started flow may wait for its callback.
const TTL = 10 * time.Minute

// PendingRequest is the ephemeral record of one in-flight
// authorization flow. It lives only in process memory: a restart
// silently invalidates it, which is acceptable for a single-user
// local handshake.
type PendingRequest struct {
	State       string
	CreatedAt   time.Time
	RedirectURI string
	Scope       string
}

// PendingSlot owns the single pending request. Replace overwrites any
// prior request, so starting a new flow invalidates an old one.
type PendingSlot struct {
	mu  sync.Mutex
	req *PendingRequest
	now func() time.Time
}

func NewPendingSlot() *PendingSlot {
	return &PendingSlot{now: time.Now}
}

// Replace installs req as the one pending request.
func (s *PendingSlot) Replace(req PendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = &req
}

// Current returns the pending request, if any.
func (s *PendingSlot) Current() (PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req == nil {
		return PendingRequest{}, false
	}
	return *s.req, true
}

// Take removes and returns the pending request, making it single-use.
func (s *PendingSlot) Take() (PendingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.req == nil {
		return PendingRequest{}, false
	}
	req := *s.req
	s.req = nil
	return req, true
}

// Clear drops the pending request.
func (s *PendingSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.req = nil
}

// Expired reports whether req outlived the TTL.
func (s *PendingSlot) Expired(req PendingRequest) bool {
	return s.now().Sub(req.CreatedAt) > TTL
}
