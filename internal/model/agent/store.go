package agent

// Store exposes agent lookup and routing.
type Store interface {
	List() []Agent
	FindByID(id string) (Agent, bool)
	Select(message string, switching bool) Agent
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Agent
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied agents.
func NewMemoryStore(items []Agent) *MemoryStore {
	return &MemoryStore{items: append([]Agent(nil), items...)}
}

// List returns the agents in routing order.
func (s *MemoryStore) List() []Agent {
	return append([]Agent(nil), s.items...)
}

// FindByID looks up an agent by identifier.
func (s *MemoryStore) FindByID(id string) (Agent, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Agent{}, false
}

// Select routes message to the first matching agent. Slash commands win
// over keywords; with switching off every message goes to the default.
func (s *MemoryStore) Select(message string, switching bool) Agent {
	fallback, ok := s.FindByID(DefaultID)
	if !ok && len(s.items) > 0 {
		fallback = s.items[0]
	}
	if !switching {
		return fallback
	}

	for _, item := range s.items {
		if item.HasCommand(message) {
			return item
		}
	}
	for _, item := range s.items {
		if item.Matches(message) {
			return item
		}
	}
	return fallback
}
