package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/sirupsen/logrus"
)

// AlertTopic is the bus topic progress notifications are published on
const AlertTopic = "screenshot:alert"

// EventType names a pipeline stage
type EventType string

const (
	// ImageCompression is emitted before the screenshot is recompressed
	ImageCompression EventType = "ImageCompression"
)

// AlertEvent is a progress notification
type AlertEvent struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"` // milliseconds since the Unix epoch
}

// NewAlertEvent stamps an event with the current time
func NewAlertEvent(eventType EventType, message string) AlertEvent {
	return AlertEvent{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AlertEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	Publish(ctx context.Context, event AlertEvent)
	Wait()
}

// LoggingObserver logs progress events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles progress events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AlertEvent) {
	o.logger.WithFields(logrus.Fields{
		"event_type": event.Type,
		"timestamp":  event.Timestamp,
	}).Info(event.Message)
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver counts progress events per type
type MetricsObserver struct {
	mu          sync.RWMutex
	totalEvents int64
	byType      map[EventType]int64
	lastEventAt int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{byType: make(map[EventType]int64)}
}

// OnEvent handles progress events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AlertEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.totalEvents++
	o.byType[event.Type]++
	if event.Timestamp > o.lastEventAt {
		o.lastEventAt = event.Timestamp
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	byType := make(map[string]int64, len(o.byType))
	for eventType, count := range o.byType {
		byType[string(eventType)] = count
	}

	return map[string]interface{}{
		"total_events":  o.totalEvents,
		"events":        byType,
		"last_event_at": o.lastEventAt,
	}
}

// EventPublisher implements Subject on top of an async event bus.
// Deliveries run off the publishing goroutine but one at a time, in publish order;
// a Publish waits only for the previous delivery to finish. Observer failures never
// reach the publisher.
type EventPublisher struct {
	bus evbus.Bus

	mu        sync.RWMutex
	observers map[string]Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() (*EventPublisher, error) {
	p := &EventPublisher{
		bus:       evbus.New(),
		observers: make(map[string]Observer),
	}
	if err := p.bus.SubscribeAsync(AlertTopic, p.dispatch, true); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", AlertTopic, err)
	}
	return p, nil
}

// Subscribe adds an observer. Observers are keyed by name; re-subscribing replaces.
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers[observer.GetObserverName()] = observer
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.observers, observer.GetObserverName())
}

// Publish hands the event to the bus and returns immediately.
// Observers receive a context that is not cancelled when the request ends.
func (p *EventPublisher) Publish(ctx context.Context, event AlertEvent) {
	p.bus.Publish(AlertTopic, context.WithoutCancel(ctx), event)
}

// Wait blocks until every published event has been delivered
func (p *EventPublisher) Wait() {
	p.bus.WaitAsync()
}

func (p *EventPublisher) dispatch(ctx context.Context, event AlertEvent) {
	p.mu.RLock()
	observers := make([]Observer, 0, len(p.observers))
	for _, obs := range p.observers {
		observers = append(observers, obs)
	}
	p.mu.RUnlock()

	for _, obs := range observers {
		deliver(ctx, obs, event)
	}
}

func deliver(ctx context.Context, obs Observer, event AlertEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
