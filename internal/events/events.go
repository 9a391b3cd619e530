package events

import (
	"context"
	"sync"
	"time"

	"github.com/gotomicro/ego/core/elog"

	"market-finder/internal/features"
)

// EventType represents the type of event.
type EventType string

const (
	// EventCategoriesLoaded is emitted when a directory view stores a fresh category list
	EventCategoriesLoaded EventType = "categories.loaded"
	// EventMarketsLoaded is emitted when a directory view commits the markets of its active category
	EventMarketsLoaded EventType = "markets.loaded"
	// EventCouponRedeemed is emitted when a redemption call returns a coupon
	EventCouponRedeemed EventType = "coupon.redeemed"
	// EventRedemptionFailed is emitted when a redemption call fails
	EventRedemptionFailed EventType = "coupon.redemption_failed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

type CategoriesLoadedData struct {
	ViewID string
	Count  int
}

type MarketsLoadedData struct {
	ViewID     string
	CategoryID string
	Count      int
}

type CouponRedeemedData struct {
	ViewID   string
	MarketID string
	CouponID string
	Code     string
}

type RedemptionFailedData struct {
	ViewID   string
	MarketID string
	CouponID string
	Reason   string
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	flags    *features.Manager
	logger   *elog.Component
}

// NewManager creates an event manager. Delivery follows the event_hooks_enabled flag.
func NewManager(flags *features.Manager, logger *elog.Component) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		flags:    flags,
		logger:   logger,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish delivers an event to all subscribed handlers. Handlers run in their own
// goroutine and never block the publisher.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data any) {
	if m == nil || !m.flags.IsEnabled(features.FeatureEventHooksEnabled) {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// the request that produced the event may finish before the handlers do
	ctx = context.WithoutCancel(ctx)
	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				m.logger.Error("event handler failed",
					elog.String("event", string(event.Type)),
					elog.FieldErr(err))
			}
		}(handler)
	}
}

func (m *Manager) PublishCategoriesLoaded(ctx context.Context, viewID string, count int) {
	m.Publish(ctx, EventCategoriesLoaded, CategoriesLoadedData{ViewID: viewID, Count: count})
}

func (m *Manager) PublishMarketsLoaded(ctx context.Context, viewID, categoryID string, count int) {
	m.Publish(ctx, EventMarketsLoaded, MarketsLoadedData{ViewID: viewID, CategoryID: categoryID, Count: count})
}

func (m *Manager) PublishCouponRedeemed(ctx context.Context, data CouponRedeemedData) {
	m.Publish(ctx, EventCouponRedeemed, data)
}

func (m *Manager) PublishRedemptionFailed(ctx context.Context, data RedemptionFailedData) {
	m.Publish(ctx, EventRedemptionFailed, data)
}

// LogSubscriber writes every event it receives to logger.
func LogSubscriber(logger *elog.Component) Handler {
	return func(_ context.Context, event Event) error {
		logger.Info("domain event",
			elog.String("event", string(event.Type)),
			elog.Any("data", event.Data))
		return nil
	}
}

// Shutdown drops every subscription.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers = make(map[EventType][]Handler)
}
