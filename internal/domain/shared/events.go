package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Side effects of the core operations travel as events
// so the primary write never waits for them.
const (
	// XP ledger events
	EventXPAwarded EventType = "gamification.xp_awarded"
	EventLevelUp   EventType = "gamification.level_up"

	// Streak events
	EventStreakMilestoneReached EventType = "gamification.streak_milestone_reached"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped at the given instant.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted after a ledger row is written and the cached total upserted.
type XPAwardedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	Amount    int    `json:"amount"`
	NewTotal  int    `json:"new_total"`
	NewLevel  int    `json:"new_level"`
	Source    string `json:"source"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"amount":     e.Amount,
		"new_total":  e.NewTotal,
		"new_level":  e.NewLevel,
		"source":     e.Source,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(studentID string, amount, newTotal, newLevel int, source string, at time.Time) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent: NewBaseEvent(EventXPAwarded, studentID, at),
		StudentID: studentID,
		Amount:    amount,
		NewTotal:  newTotal,
		NewLevel:  newLevel,
		Source:    source,
	}
}

// LevelUpEvent is emitted when the derived level exceeds the previously stored one.
type LevelUpEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	TotalXP   int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
		"total_xp":   e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(studentID string, oldLevel, newLevel, totalXP int, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, studentID, at),
		StudentID: studentID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakMilestoneReachedEvent is emitted when a new streak count lands on a milestone.
type StreakMilestoneReachedEvent struct {
	BaseEvent
	StudentID   string `json:"student_id"`
	Milestone   int    `json:"milestone"`
	BonusXP     int    `json:"bonus_xp"`
	NotifyPeers bool   `json:"notify_peers"`
}

// Payload implements Event interface.
func (e StreakMilestoneReachedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.StudentID,
		"milestone":    e.Milestone,
		"bonus_xp":     e.BonusXP,
		"notify_peers": e.NotifyPeers,
	}
}

// NewStreakMilestoneReachedEvent creates a new StreakMilestoneReachedEvent.
func NewStreakMilestoneReachedEvent(studentID string, milestone, bonusXP int, notifyPeers bool, at time.Time) StreakMilestoneReachedEvent {
	return StreakMilestoneReachedEvent{
		BaseEvent:   NewBaseEvent(EventStreakMilestoneReached, studentID, at),
		StudentID:   studentID,
		Milestone:   milestone,
		BonusXP:     bonusXP,
		NotifyPeers: notifyPeers,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers. It must not block on handlers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
