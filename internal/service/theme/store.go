package theme

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/taporibrain/internal/appearance"
	"github.com/zhouzirui/taporibrain/internal/storage/kv"
)

// StorageKey is the persisted preference key.
const StorageKey = "theme"

var ErrInvalidPreference = errors.New("invalid theme preference")

// Preference is the user's choice.
type Preference string

const (
	Light  Preference = "light"
	Dark   Preference = "dark"
	System Preference = "system"
)

// ParsePreference validates a user supplied value.
func ParsePreference(value string) (Preference, error) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(value))); p {
	case Light, Dark, System:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPreference, value)
	}
}

// State is the stored preference together with the theme actually applied.
type State struct {
	Preference Preference `json:"preference"`
	Effective  Preference `json:"effective"`
}

// Store owns the theme preference. System preferences are resolved against
// the appearance source on every read.
type Store struct {
	kv     kv.Store
	source appearance.Source
	logger *zap.Logger

	// writeMu keeps the persisted and in-memory preference in step
	writeMu sync.Mutex

	mu        sync.Mutex
	pref      Preference
	observers map[int]func(State)
	nextObs   int

	cancel context.CancelFunc
}

// New loads the persisted preference (System when absent or invalid) and
// starts following the appearance source.
func New(ctx context.Context, store kv.Store, source appearance.Source, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if source == nil {
		source = appearance.Static(false)
	}

	pref := System
	raw, err := store.Get(ctx, StorageKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load theme preference: %w", err)
	default:
		if parsed, perr := ParsePreference(raw); perr == nil {
			pref = parsed
		} else {
			logger.Warn("ignoring stored theme preference", zap.String("value", raw))
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		kv:        store,
		source:    source,
		logger:    logger,
		pref:      pref,
		observers: make(map[int]func(State)),
		cancel:    cancel,
	}

	if err := source.Watch(watchCtx, s.systemChanged); err != nil {
		logger.Warn("appearance changes will not be followed", zap.Error(err))
	}
	return s, nil
}

// State returns the preference and its effective value.
func (s *Store) State() State {
	s.mu.Lock()
	pref := s.pref
	s.mu.Unlock()
	return State{Preference: pref, Effective: s.resolve(pref)}
}

// Set validates, persists and applies pref.
func (s *Store) Set(ctx context.Context, pref Preference) error {
	if _, err := ParsePreference(string(pref)); err != nil {
		return err
	}

	s.writeMu.Lock()
	err := s.store(ctx, pref)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("theme preference set", zap.String("preference", string(pref)))
	s.notify()
	return nil
}

// Toggle switches to the explicit opposite of the effective theme.
func (s *Store) Toggle(ctx context.Context) error {
	s.writeMu.Lock()
	next := Dark
	if s.State().Effective == Dark {
		next = Light
	}
	err := s.store(ctx, next)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Debug("theme toggled", zap.String("preference", string(next)))
	s.notify()
	return nil
}

// store must be called with writeMu held.
func (s *Store) store(ctx context.Context, pref Preference) error {
	if err := s.kv.Set(ctx, StorageKey, string(pref)); err != nil {
		return fmt.Errorf("persist theme preference: %w", err)
	}
	s.mu.Lock()
	s.pref = pref
	s.mu.Unlock()
	return nil
}

// Subscribe registers fn for state changes and returns its remover.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Close stops following the appearance source.
func (s *Store) Close() {
	s.cancel()
}

func (s *Store) resolve(pref Preference) Preference {
	if pref != System {
		return pref
	}
	if s.source.Dark() {
		return Dark
	}
	return Light
}

func (s *Store) systemChanged(bool) {
	s.mu.Lock()
	pref := s.pref
	s.mu.Unlock()
	if pref != System {
		return
	}
	s.notify()
}

func (s *Store) notify() {
	state := s.State()

	s.mu.Lock()
	observers := make([]func(State), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(state)
	}
}
