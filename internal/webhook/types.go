// Package webhook implements the Dispatcher subsystem: subscription
// management, event fan-out, signed HTTP delivery, and retry scheduling.
package webhook

import "time"

// EventType identifies the kind of domain event a Subscription listens for.
// The wildcard "*" matches any event type.
type EventType string

const wildcardEvent EventType = "*"

// RetryPolicy controls how failed deliveries are rescheduled.
type RetryPolicy struct {
	MaxRetries        int
	InitialDelayMs    int64
	MaxDelayMs        int64
	BackoffMultiplier float64
}

// DefaultRetryPolicy matches the Dispatcher's documented defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        5,
		InitialDelayMs:    1000,
		MaxDelayMs:        300000,
		BackoffMultiplier: 2,
	}
}

// Subscription is a registered webhook target. ID and CreatedAt are
// immutable once set; every other field may be changed through Update,
// RotateSecret, or the active/inactive toggle.
type Subscription struct {
	ID                string
	URL               string
	Secret            string
	Events            map[EventType]struct{}
	IntegrationFilter map[string]struct{}
	Active            bool
	RetryPolicy       RetryPolicy
	Headers           map[string]string
	Timeout           time.Duration
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// matchesEvent reports whether this subscription listens for the given
// event type, honoring the "*" wildcard.
func (s *Subscription) matchesEvent(t EventType) bool {
	if _, ok := s.Events[wildcardEvent]; ok {
		return true
	}
	_, ok := s.Events[t]
	return ok
}

// matchesIntegration reports whether this subscription's integration
// filter admits an event from the given integration ID. An absent filter
// admits everything; an empty-but-present filter admits nothing.
func (s *Subscription) matchesIntegration(integrationID string) bool {
	if s.IntegrationFilter == nil {
		return true
	}
	_, ok := s.IntegrationFilter[integrationID]
	return ok
}

// Event is a single occurrence dispatched to matching subscriptions.
type Event struct {
	ID              string
	Type            EventType
	Timestamp       time.Time
	IntegrationID   string
	IntegrationName string
	UserID          string
	Data            map[string]any
}

// DeliveryStatus is the lifecycle state of a Delivery.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliveryRetrying DeliveryStatus = "retrying"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed   DeliveryStatus = "failed"
)

// DeliveryResponse captures the outcome of one HTTP attempt.
type DeliveryResponse struct {
	StatusCode int
	DurationMs int64
}

// Delivery tracks one Subscription's attempt(s) at receiving one Event.
type Delivery struct {
	ID             string
	SubscriptionID string
	Event          Event
	Status         DeliveryStatus
	Attempts       int
	LastAttemptAt  *time.Time
	NextRetryAt    *time.Time
	Response       *DeliveryResponse
	Error          string
}

// terminal reports whether a Delivery will never be attempted again.
func (d *Delivery) terminal() bool {
	if d.Status == DeliveryDelivered {
		return true
	}
	return d.Status == DeliveryFailed
}

// SubscriptionStats summarizes delivery outcomes for one subscription.
type SubscriptionStats struct {
	Total             int
	Successful        int
	Failed            int
	AverageLatencyMs  float64
	LastDeliveryAt    *time.Time
	LastSuccessAt     *time.Time
	LastFailureAt     *time.Time
}

// AggregateStats summarizes delivery outcomes across all subscriptions.
type AggregateStats struct {
	TotalSubscriptions  int
	ActiveSubscriptions int
	TotalDeliveries     int
	SuccessRate         float64
	AverageLatencyMs    float64
	PendingRetries      int
}
