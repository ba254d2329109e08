package engine

import (
	"time"

	"github.com/khalecl/supply-chain-idle/internal/catalog"
)

// EventType names a state change.
type EventType string

const (
	EventBuildingCreated EventType = "building_created"
	EventBuildingRemoved EventType = "building_removed"
	EventBuildingReady   EventType = "building_ready"
	EventCropSelected    EventType = "crop_selected"
	EventHarvested       EventType = "harvested"
	EventLoaded          EventType = "loaded"
	EventSold            EventType = "sold"
	EventSurveyCompleted EventType = "survey_completed"
	EventPricesUpdated   EventType = "prices_updated"
	EventPrestige        EventType = "prestige"
	EventReset           EventType = "reset"
)

// Event is published to subscribers after every mutation.
type Event struct {
	Seq        uint64               `json:"seq"`
	Type       EventType            `json:"type"`
	GameTime   time.Duration        `json:"gameTime"`
	BuildingID *uint64              `json:"buildingId,omitempty"`
	Kind       catalog.BuildingKind `json:"kind,omitempty"`
	Resource   catalog.ResourceID   `json:"resource,omitempty"`
	Amount     float64              `json:"amount,omitempty"`
	Money      float64              `json:"money"`
}

const (
	defaultSubscriberBuffer = 64
	recentEventsCap         = 100
)

// Subscribe registers a listener. Delivery never blocks the simulation: a
// subscriber whose buffer is full misses events. A buffer <= 0 selects the
// default size.
func (g *Game) Subscribe(buffer int) (int, <-chan Event) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextSub
	g.nextSub++
	ch := make(chan Event, buffer)
	g.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (g *Game) Unsubscribe(id int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ch, ok := g.subs[id]; ok {
		delete(g.subs, id)
		close(ch)
	}
}

// RecentEvents returns up to n of the latest events, oldest first.
func (g *Game) RecentEvents(n int) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n <= 0 || n > len(g.recent) {
		n = len(g.recent)
	}
	out := make([]Event, n)
	copy(out, g.recent[len(g.recent)-n:])
	return out
}

// emit must be called with g.mu held.
func (g *Game) emit(e Event) {
	g.eventSeq++
	e.Seq = g.eventSeq
	e.GameTime = g.gameTime
	e.Money = g.ledger.Money

	g.recent = append(g.recent, e)
	if len(g.recent) > recentEventsCap {
		g.recent = g.recent[len(g.recent)-recentEventsCap:]
	}

	for _, ch := range g.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func buildingEvent(t EventType, id uint64, kind catalog.BuildingKind) Event {
	return Event{Type: t, BuildingID: &id, Kind: kind}
}
