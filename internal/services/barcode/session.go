package barcode

import (
	"context"
	"errors"
	"sync"
)

// State is the scanning session state
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateStopped  State = "stopped"
)

// ErrNotScanning is returned when a code is read while the session is not scanning
var ErrNotScanning = errors.New("barcode session is not scanning")

// Session accepts one barcode read, looks it up and stops until re-armed.
type Session struct {
	mu      sync.Mutex
	lookup  Lookup
	state   State
	product string
	// gen invalidates lookups that finish after a re-arm
	gen uint64
}

// NewSession creates an idle session
func NewSession(lookup Lookup) *Session {
	return &Session{lookup: lookup, state: StateIdle, product: ScanningName}
}

// Start begins scanning. It is a no-op while already scanning.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateScanning {
		return
	}
	s.state = StateScanning
	s.product = ScanningName
	s.gen++
}

// Rearm discards the last read and starts scanning again.
func (s *Session) Rearm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateScanning
	s.product = ScanningName
	s.gen++
}

// Stop ends the session and resets it to idle.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.product = ScanningName
	s.gen++
}

// Read stops scanning on the first code and looks it up. A failed lookup
// leaves the product name at ScanningName.
func (s *Session) Read(ctx context.Context, code string) (string, error) {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return "", ErrNotScanning
	}
	s.state = StateStopped
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	name, err := s.lookup.Lookup(ctx, code)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return "", err
	}
	if s.gen == gen {
		s.product = name
	}
	return name, nil
}

// State returns the session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProductName returns the current product name, which may be a placeholder
func (s *Session) ProductName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.product
}

// Confirm returns the product name usable as an item name, or "".
func (s *Session) Confirm() string {
	return UsableName(s.ProductName())
}
