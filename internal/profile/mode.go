package profile

import (
	"sync"

	"github.com/kindra-app/kindra-client/pkg/logger"
	"go.uber.org/zap"
)

// Mode selects which profile lens and downstream routes the rest of
// the application targets.
type Mode string

const (
	ModeLeisure       Mode = "leisure"
	ModeRomantic      Mode = "romantic"
	ModeCollaborative Mode = "collaborative"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	switch m {
	case ModeLeisure, ModeRomantic, ModeCollaborative:
		return true
	}
	return false
}

// Route returns the profile view route for the mode
func (m Mode) Route() string {
	switch m {
	case ModeRomantic:
		return "/romantic-profile"
	case ModeCollaborative:
		return "/collaborative-profile"
	default:
		return "/leisure-profile"
	}
}

// ModeState holds the current mode for the lifetime of the process.
// Not persisted, not synced to the backend; a restart resets it.
type ModeState struct {
	mu   sync.RWMutex
	mode Mode
}

// NewModeState starts in leisure mode
func NewModeState() *ModeState {
	return &ModeState{mode: ModeLeisure}
}

// Set switches the mode. Unknown values are ignored.
func (s *ModeState) Set(m Mode) {
	if !m.Valid() {
		logger.Debug("Ignoring unknown profile mode", zap.String("mode", string(m)))
		return
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// Current returns the active mode
func (s *ModeState) Current() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}
