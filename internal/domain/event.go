package domain

import (
	"encoding/json"
	"fmt"
)

// Event describes one registrable event and the constraints a selection of it
// must satisfy.
type Event struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Fee  float64 `json:"fee"`
	// ExactTeamSize, when non-zero, is the only team size accepted (leader included).
	ExactTeamSize int `json:"exactTeamSize,omitempty"`
	// MaxTeamSize caps team size (leader included); zero means individual only.
	MaxTeamSize          int      `json:"maxTeamSize,omitempty"`
	SubSelections        []string `json:"subSelections,omitempty"`
	SubSelectionRequired bool     `json:"subSelectionRequired,omitempty"`
	// Exclusive events cannot be combined with any other selection.
	Exclusive bool `json:"exclusive,omitempty"`
}

// TeamEvent reports whether the event accepts more than one participant.
func (e Event) TeamEvent() bool {
	return e.ExactTeamSize > 1 || e.MaxTeamSize > 1
}

// AllowsSubSelection reports whether v is one of the declared variants.
func (e Event) AllowsSubSelection(v string) bool {
	for _, s := range e.SubSelections {
		if s == v {
			return true
		}
	}
	return false
}

// Catalog is the read-only set of events open for registration.
type Catalog struct {
	events map[string]Event
	order  []string
}

func NewCatalog(events []Event) (*Catalog, error) {
	c := &Catalog{events: make(map[string]Event, len(events))}
	for _, e := range events {
		if e.ID == "" {
			return nil, fmt.Errorf("event without id: %w", ErrValidation)
		}
		if _, dup := c.events[e.ID]; dup {
			return nil, fmt.Errorf("duplicate event id %q: %w", e.ID, ErrValidation)
		}
		c.events[e.ID] = e
		c.order = append(c.order, e.ID)
	}
	return c, nil
}

// ParseCatalog decodes a JSON array of events.
func ParseCatalog(data []byte) (*Catalog, error) {
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode event catalog: %w", err)
	}
	return NewCatalog(events)
}

func (c *Catalog) Lookup(id string) (Event, bool) {
	e, ok := c.events[id]
	return e, ok
}

func (c *Catalog) Events() []Event {
	out := make([]Event, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.events[id])
	}
	return out
}

// DefaultCatalog is the event list used when no catalog file is configured.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog([]Event{
		{ID: "hackathon", Name: "Hackathon", Fee: 500, MaxTeamSize: 4, Exclusive: true},
		{ID: "esports", Name: "Esports", Fee: 250, ExactTeamSize: 5,
			SubSelections: []string{"BGMI", "Valorant", "Free Fire"}, SubSelectionRequired: true},
		{ID: "coding-contest", Name: "Coding Contest", Fee: 100},
		{ID: "paper-presentation", Name: "Paper Presentation", Fee: 150, MaxTeamSize: 3},
		{ID: "technical-quiz", Name: "Technical Quiz", Fee: 100, MaxTeamSize: 2},
		{ID: "robo-race", Name: "Robo Race", Fee: 300, MaxTeamSize: 4},
	})
	return c
}
