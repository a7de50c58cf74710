package common

import (
	"errors"
	"fmt"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when the module is switched off.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}

// Switches is an in-memory PauseView toggled by operators.
type Switches struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func NewSwitches(initial map[string]bool) *Switches {
	s := &Switches{paused: make(map[string]bool, len(initial))}
	for module, paused := range initial {
		s.paused[module] = paused
	}
	return s
}

func (s *Switches) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused[module]
}

// Set pauses or resumes a module.
func (s *Switches) Set(module string, paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[module] = paused
}
