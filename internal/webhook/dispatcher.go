package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/coldharbor/infergate/internal/metrics"
	"github.com/coldharbor/infergate/internal/observability"
)

const (
	defaultDeliveryTimeout = 30 * time.Second
	productName            = "infergate"
)

// Archiver receives a copy of every Delivery that reaches a terminal state,
// for caller-side audit persistence. Implementations must not block the
// delivery path; Dispatcher invokes Archive in a separate goroutine.
type Archiver interface {
	Archive(delivery Delivery)
}

// DispatcherConfig configures a Dispatcher instance.
type DispatcherConfig struct {
	HTTPClient *http.Client
	Logger     *observability.Logger
	Archiver   Archiver
	Metrics    *metrics.Collector
}

// Dispatcher manages Subscriptions and delivers Events to them over HTTP,
// retrying failed deliveries per each Subscription's RetryPolicy.
type Dispatcher struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	deliveries    map[string]*Delivery
	schedules     map[string]*retrySchedule
	timers        map[string]*time.Timer

	client   *http.Client
	logger   *observability.Logger
	archiver Archiver
	metrics  *metrics.Collector
}

// New constructs a Dispatcher.
func New(cfg DispatcherConfig) *Dispatcher {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.LoggerConfig{JSONFormat: true})
	}
	return &Dispatcher{
		subscriptions: make(map[string]*Subscription),
		deliveries:    make(map[string]*Delivery),
		schedules:     make(map[string]*retrySchedule),
		timers:        make(map[string]*time.Timer),
		client:        client,
		logger:        logger,
		archiver:      cfg.Archiver,
		metrics:       cfg.Metrics,
	}
}

// RegisterOptions carries the fields a caller may supply to Register.
type RegisterOptions struct {
	URL               string
	Events            []EventType
	IntegrationFilter []string
	Secret            string
	RetryPolicy       *RetryPolicy
	Headers           map[string]string
	Timeout           time.Duration
	Metadata          map[string]any
}

// Register creates a new Subscription. If opts.Secret is empty, a random
// 32-byte hex secret is generated.
func (d *Dispatcher) Register(opts RegisterOptions) (*Subscription, error) {
	secret := opts.Secret
	if secret == "" {
		var err error
		secret, err = generateSecret()
		if err != nil {
			return nil, err
		}
	}

	events := make(map[EventType]struct{}, len(opts.Events))
	for _, e := range opts.Events {
		events[e] = struct{}{}
	}

	var integrationFilter map[string]struct{}
	if opts.IntegrationFilter != nil {
		integrationFilter = make(map[string]struct{}, len(opts.IntegrationFilter))
		for _, id := range opts.IntegrationFilter {
			integrationFilter[id] = struct{}{}
		}
	}

	policy := DefaultRetryPolicy()
	if opts.RetryPolicy != nil {
		policy = *opts.RetryPolicy
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	now := time.Now()
	sub := &Subscription{
		ID:                uuid.NewString(),
		URL:               opts.URL,
		Secret:            secret,
		Events:            events,
		IntegrationFilter: integrationFilter,
		Active:            true,
		RetryPolicy:       policy,
		Headers:           opts.Headers,
		Timeout:           timeout,
		Metadata:          opts.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	d.mu.Lock()
	d.subscriptions[sub.ID] = sub
	d.mu.Unlock()

	return sub, nil
}

// UpdateOptions carries the mutable fields Update may change. A nil field
// leaves the existing value untouched.
type UpdateOptions struct {
	URL               *string
	Events            []EventType
	IntegrationFilter []string
	Active            *bool
	RetryPolicy       *RetryPolicy
	Headers           map[string]string
	Timeout           *time.Duration
	Metadata          map[string]any
}

// Update applies a partial change set to an existing Subscription.
func (d *Dispatcher) Update(id string, opts UpdateOptions) (*Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub, ok := d.subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("webhook: subscription %q not found", id)
	}

	if opts.URL != nil {
		sub.URL = *opts.URL
	}
	if opts.Events != nil {
		events := make(map[EventType]struct{}, len(opts.Events))
		for _, e := range opts.Events {
			events[e] = struct{}{}
		}
		sub.Events = events
	}
	if opts.IntegrationFilter != nil {
		filter := make(map[string]struct{}, len(opts.IntegrationFilter))
		for _, f := range opts.IntegrationFilter {
			filter[f] = struct{}{}
		}
		sub.IntegrationFilter = filter
	}
	if opts.Active != nil {
		sub.Active = *opts.Active
	}
	if opts.RetryPolicy != nil {
		sub.RetryPolicy = *opts.RetryPolicy
	}
	if opts.Headers != nil {
		sub.Headers = opts.Headers
	}
	if opts.Timeout != nil {
		sub.Timeout = *opts.Timeout
	}
	if opts.Metadata != nil {
		sub.Metadata = opts.Metadata
	}
	sub.UpdatedAt = time.Now()

	return sub, nil
}

// Delete removes a Subscription and cancels any of its pending retries.
func (d *Dispatcher) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.subscriptions[id]; !ok {
		return fmt.Errorf("webhook: subscription %q not found", id)
	}
	delete(d.subscriptions, id)

	for deliveryID, delivery := range d.deliveries {
		if delivery.SubscriptionID == id {
			d.stopTimerLocked(deliveryID)
			delete(d.deliveries, deliveryID)
			delete(d.schedules, deliveryID)
		}
	}

	return nil
}

// RotateSecret replaces a Subscription's signing secret and returns it.
func (d *Dispatcher) RotateSecret(id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub, ok := d.subscriptions[id]
	if !ok {
		return "", fmt.Errorf("webhook: subscription %q not found", id)
	}

	secret, err := generateSecret()
	if err != nil {
		return "", err
	}
	sub.Secret = secret
	sub.UpdatedAt = time.Now()
	return secret, nil
}

// ListFilter narrows the subscriptions returned by List.
type ListFilter struct {
	Active        *bool
	EventType     EventType
	IntegrationID string
}

// List returns subscriptions matching filter, sorted by ID.
func (d *Dispatcher) List(filter ListFilter) []Subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Subscription, 0, len(d.subscriptions))
	for _, sub := range d.subscriptions {
		if filter.Active != nil && sub.Active != *filter.Active {
			continue
		}
		if filter.EventType != "" && !sub.matchesEvent(filter.EventType) {
			continue
		}
		if filter.IntegrationID != "" && !sub.matchesIntegration(filter.IntegrationID) {
			continue
		}
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DispatchMeta carries the optional event correlation fields.
type DispatchMeta struct {
	IntegrationID   string
	IntegrationName string
	UserID          string
}

// Dispatch fans an event out to every active, matching Subscription,
// enqueueing one Delivery per match and attempting it asynchronously.
func (d *Dispatcher) Dispatch(eventType EventType, data map[string]any, meta DispatchMeta) {
	event := Event{
		ID:              uuid.NewString(),
		Type:            eventType,
		Timestamp:       time.Now(),
		IntegrationID:   meta.IntegrationID,
		IntegrationName: meta.IntegrationName,
		UserID:          meta.UserID,
		Data:            data,
	}

	d.mu.RLock()
	var targets []*Subscription
	for _, sub := range d.subscriptions {
		if !sub.Active {
			continue
		}
		if !sub.matchesEvent(eventType) {
			continue
		}
		if meta.IntegrationID != "" && !sub.matchesIntegration(meta.IntegrationID) {
			continue
		}
		targets = append(targets, sub)
	}
	d.mu.RUnlock()

	for _, sub := range targets {
		delivery := &Delivery{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			Event:          event,
			Status:         DeliveryPending,
		}

		d.mu.Lock()
		d.deliveries[delivery.ID] = delivery
		d.schedules[delivery.ID] = newRetrySchedule(sub.RetryPolicy)
		d.mu.Unlock()

		go d.attempt(context.Background(), sub.ID, delivery.ID)
	}
}

// attempt performs one HTTP delivery attempt and schedules a retry on
// failure, or finalizes the Delivery on success or exhaustion.
func (d *Dispatcher) attempt(ctx context.Context, subscriptionID, deliveryID string) {
	d.mu.Lock()
	sub, subOK := d.subscriptions[subscriptionID]
	delivery, delOK := d.deliveries[deliveryID]
	if !subOK || !delOK {
		d.mu.Unlock()
		return
	}
	subCopy := *sub
	d.mu.Unlock()

	now := time.Now()
	d.mu.Lock()
	delivery.Attempts++
	delivery.LastAttemptAt = &now
	d.mu.Unlock()

	resp, err := d.send(ctx, &subCopy, delivery.Event)
	d.observeAttempt(resp, err)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.deliveries[deliveryID]; !ok {
		// Deleted or purged while this attempt was in flight.
		return
	}

	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		delivery.Status = DeliveryDelivered
		delivery.Response = resp
		delivery.Error = ""
		d.archiveLocked(*delivery)
		return
	}

	if resp != nil {
		delivery.Response = resp
	}
	if err != nil {
		delivery.Error = err.Error()
	} else {
		delivery.Error = fmt.Sprintf("webhook: unexpected status %d", resp.StatusCode)
	}

	schedule := d.schedules[deliveryID]
	delay := schedule.NextBackOff()
	if delay == backoff.Stop {
		delivery.Status = DeliveryFailed
		d.archiveLocked(*delivery)
		return
	}

	delivery.Status = DeliveryRetrying
	next := time.Now().Add(delay)
	delivery.NextRetryAt = &next

	if d.metrics != nil {
		d.metrics.PendingRetries.Inc()
	}
	timer := time.AfterFunc(delay, func() {
		if d.metrics != nil {
			d.metrics.PendingRetries.Dec()
		}
		d.attempt(context.Background(), subscriptionID, deliveryID)
	})
	d.stopTimerLocked(deliveryID)
	d.timers[deliveryID] = timer
}

// observeAttempt records one HTTP delivery attempt's outcome and latency.
// It is a no-op when the Dispatcher was built without a Collector.
func (d *Dispatcher) observeAttempt(resp *DeliveryResponse, err error) {
	if d.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case resp == nil || resp.StatusCode < 200 || resp.StatusCode >= 300:
		outcome = "bad_status"
	}
	d.metrics.DeliveriesTotal.WithLabelValues(outcome).Inc()
	if resp != nil {
		d.metrics.DeliveryLatency.Observe(float64(resp.DurationMs) / 1000)
	}
}

// send performs one signed HTTP POST of the event body to the
// subscription's URL.
func (d *Dispatcher) send(ctx context.Context, sub *Subscription, event Event) (*DeliveryResponse, error) {
	body, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("webhook: marshal event: %w", err)
	}

	tsMillis := event.Timestamp.UnixMilli()
	signature := sign(sub.Secret, tsMillis, body)

	timeout := sub.Timeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Id", sub.ID)
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Timestamp", fmt.Sprintf("%d", tsMillis))
	req.Header.Set("X-Event-Type", string(event.Type))
	req.Header.Set("User-Agent", productName+"/1.0")
	for k, v := range sub.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		return &DeliveryResponse{DurationMs: duration}, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return &DeliveryResponse{StatusCode: resp.StatusCode, DurationMs: duration}, nil
}

// TestDeliveryResult is the synchronous outcome of TestDelivery.
type TestDeliveryResult struct {
	StatusCode int
	DurationMs int64
	Error      string
}

// TestDelivery sends a single synthetic-payload attempt to the
// subscription without creating or mutating a Delivery record.
func (d *Dispatcher) TestDelivery(id string) (*TestDeliveryResult, error) {
	d.mu.RLock()
	sub, ok := d.subscriptions[id]
	var subCopy Subscription
	if ok {
		subCopy = *sub
	}
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("webhook: subscription %q not found", id)
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      "webhook.test",
		Timestamp: time.Now(),
		Data:      map[string]any{"message": "this is a test delivery"},
	}

	resp, err := d.send(context.Background(), &subCopy, event)
	result := &TestDeliveryResult{}
	if resp != nil {
		result.StatusCode = resp.StatusCode
		result.DurationMs = resp.DurationMs
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result, nil
}

// RetryDelivery resets a Delivery's attempt count and retry schedule and
// attempts it immediately.
func (d *Dispatcher) RetryDelivery(id string) error {
	d.mu.Lock()
	delivery, ok := d.deliveries[id]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("webhook: delivery %q not found", id)
	}
	d.stopTimerLocked(id)
	delivery.Attempts = 0
	delivery.Status = DeliveryPending
	delivery.NextRetryAt = nil
	sub, subOK := d.subscriptions[delivery.SubscriptionID]
	var policy RetryPolicy
	if subOK {
		policy = sub.RetryPolicy
	} else {
		policy = DefaultRetryPolicy()
	}
	d.schedules[id] = newRetrySchedule(policy)
	subscriptionID := delivery.SubscriptionID
	d.mu.Unlock()

	go d.attempt(context.Background(), subscriptionID, id)
	return nil
}

// CancelRetry cancels a pending retry timer for a Delivery without
// scheduling another attempt; a Delivery in the retrying state becomes
// failed.
func (d *Dispatcher) CancelRetry(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delivery, ok := d.deliveries[id]
	if !ok {
		return fmt.Errorf("webhook: delivery %q not found", id)
	}
	d.stopTimerLocked(id)
	if delivery.Status == DeliveryRetrying {
		delivery.Status = DeliveryFailed
		delivery.NextRetryAt = nil
	}
	return nil
}

// PurgeFilter narrows the deliveries removed by PurgeDeliveries.
type PurgeFilter struct {
	SubscriptionID string
	OlderThan      time.Time
	TerminalOnly   bool
}

// PurgeDeliveries removes Delivery records matching filter, returning the
// count removed.
func (d *Dispatcher) PurgeDeliveries(filter PurgeFilter) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, delivery := range d.deliveries {
		if filter.SubscriptionID != "" && delivery.SubscriptionID != filter.SubscriptionID {
			continue
		}
		if filter.TerminalOnly && !delivery.terminal() {
			continue
		}
		if !filter.OlderThan.IsZero() {
			if delivery.LastAttemptAt == nil || delivery.LastAttemptAt.After(filter.OlderThan) {
				continue
			}
		}
		d.stopTimerLocked(id)
		delete(d.deliveries, id)
		delete(d.schedules, id)
		removed++
	}
	return removed
}

// Stats computes delivery statistics for a single subscription.
func (d *Dispatcher) Stats(subscriptionID string) SubscriptionStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var stats SubscriptionStats
	var totalLatency int64
	for _, delivery := range d.deliveries {
		if delivery.SubscriptionID != subscriptionID {
			continue
		}
		d.accumulate(delivery, &stats, &totalLatency)
	}
	if stats.Total > 0 {
		stats.AverageLatencyMs = float64(totalLatency) / float64(stats.Total)
	}
	return stats
}

// AggregateStats computes delivery statistics across all subscriptions.
func (d *Dispatcher) AggregateStats() AggregateStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	agg := AggregateStats{TotalSubscriptions: len(d.subscriptions)}
	for _, sub := range d.subscriptions {
		if sub.Active {
			agg.ActiveSubscriptions++
		}
	}

	var totalLatency int64
	var successful int
	for _, delivery := range d.deliveries {
		var stats SubscriptionStats
		var latency int64
		d.accumulate(delivery, &stats, &latency)
		agg.TotalDeliveries += stats.Total
		successful += stats.Successful
		totalLatency += latency
		if delivery.Status == DeliveryRetrying {
			agg.PendingRetries++
		}
	}
	if agg.TotalDeliveries > 0 {
		agg.SuccessRate = float64(successful) / float64(agg.TotalDeliveries)
		agg.AverageLatencyMs = float64(totalLatency) / float64(agg.TotalDeliveries)
	}
	return agg
}

// accumulate folds one delivery's attempts into running statistics. Each
// delivery contributes its attempt count to Total/latency since
// averageLatency is a running mean over all attempts, not just deliveries.
func (d *Dispatcher) accumulate(delivery *Delivery, stats *SubscriptionStats, totalLatency *int64) {
	if delivery.Attempts == 0 {
		return
	}
	stats.Total += delivery.Attempts
	if delivery.Response != nil {
		*totalLatency += delivery.Response.DurationMs * int64(delivery.Attempts)
	}
	switch delivery.Status {
	case DeliveryDelivered:
		stats.Successful++
		if delivery.LastAttemptAt != nil {
			stats.LastSuccessAt = delivery.LastAttemptAt
		}
	case DeliveryFailed:
		stats.Failed++
		if delivery.LastAttemptAt != nil {
			stats.LastFailureAt = delivery.LastAttemptAt
		}
	}
	if delivery.LastAttemptAt != nil {
		stats.LastDeliveryAt = delivery.LastAttemptAt
	}
}

// archiveLocked hands a terminal Delivery off to the configured Archiver,
// if any. d.mu must be held by the caller.
func (d *Dispatcher) archiveLocked(delivery Delivery) {
	if d.archiver == nil {
		return
	}
	go d.archiver.Archive(delivery)
}

// stopTimerLocked stops and clears any pending retry timer for a delivery,
// decrementing PendingRetries when it stops one before it fired. d.mu must
// be held by the caller.
func (d *Dispatcher) stopTimerLocked(deliveryID string) {
	if timer, ok := d.timers[deliveryID]; ok {
		if timer.Stop() && d.metrics != nil {
			d.metrics.PendingRetries.Dec()
		}
		delete(d.timers, deliveryID)
	}
}

// Delivery returns a copy of a tracked Delivery by ID, for inspection by
// callers (e.g. cmd/gateway's status endpoints).
func (d *Dispatcher) Delivery(id string) (Delivery, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	delivery, ok := d.deliveries[id]
	if !ok {
		return Delivery{}, false
	}
	return *delivery, true
}
