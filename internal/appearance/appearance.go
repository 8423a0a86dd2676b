// Package appearance reports whether the operating environment prefers a
// dark color scheme and notifies when that changes.
package appearance

import (
	"context"
	"sync"

	"github.com/muesli/termenv"
)

// Source is an OS-level light/dark signal.
type Source interface {
	// Dark reports the current value.
	Dark() bool
	// Watch calls fn on every change until ctx ends.
	Watch(ctx context.Context, fn func(dark bool)) error
}

// Static never changes.
type Static bool

func (s Static) Dark() bool { return bool(s) }

func (Static) Watch(context.Context, func(bool)) error { return nil }

// Terminal samples the terminal background once, the way TUIs pick a palette.
func Terminal() Static {
	return Static(termenv.HasDarkBackground())
}

// Switch is a Source set from inside the process, for instance from a
// browser reporting its prefers-color-scheme media query.
type Switch struct {
	mu       sync.Mutex
	dark     bool
	watchers map[int]func(bool)
	next     int
}

// NewSwitch returns a Switch holding dark.
func NewSwitch(dark bool) *Switch {
	return &Switch{dark: dark, watchers: make(map[int]func(bool))}
}

func (s *Switch) Dark() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dark
}

// Set updates the value and notifies watchers when it changed.
func (s *Switch) Set(dark bool) {
	s.mu.Lock()
	if s.dark == dark {
		s.mu.Unlock()
		return
	}
	s.dark = dark
	watchers := make([]func(bool), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(dark)
	}
}

func (s *Switch) Watch(ctx context.Context, fn func(bool)) error {
	s.mu.Lock()
	id := s.next
	s.next++
	s.watchers[id] = fn
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}()
	return nil
}
