package feed

import (
	"fmt"
	"log"
	"sync"
	"time"

	"launchstream/internal/domain"
)

const defaultDownThreshold = time.Minute

// Broadcaster pushes an event to live subscribers. Implemented by the
// broadcast hub.
type Broadcaster interface {
	Broadcast(evt *domain.Event)
}

// HealthConfig configures a Health watcher.
type HealthConfig struct {
	// Threshold is how long a feed may stay away from streaming before
	// the outage is reported downstream. Defaults to one minute.
	Threshold time.Duration

	// Broadcaster receives one "error" event per outage. May be nil;
	// outages are then only logged.
	Broadcaster Broadcaster

	Logger *log.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Health watches subscription state transitions and reports a feed that
// stays down beyond the threshold as an "error" event. One report per
// outage; a feed that resubscribes arms the next report. Observe is driven
// by state transitions, which the reconnect loop keeps emitting while a
// feed is down, so a long outage is always rechecked.
type Health struct {
	threshold time.Duration
	hub       Broadcaster
	logger    *log.Logger
	now       func() time.Time

	mu        sync.Mutex
	downSince map[domain.FeedKind]time.Time
	reported  map[domain.FeedKind]bool
}

// NewHealth creates a Health watcher.
func NewHealth(cfg HealthConfig) *Health {
	h := &Health{
		threshold: cfg.Threshold,
		hub:       cfg.Broadcaster,
		logger:    cfg.Logger,
		now:       cfg.Now,
		downSince: make(map[domain.FeedKind]time.Time),
		reported:  make(map[domain.FeedKind]bool),
	}
	if h.threshold <= 0 {
		h.threshold = defaultDownThreshold
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Observe records a state transition. Wire it into the subscriptions'
// OnStateChange hook.
func (h *Health) Observe(kind domain.FeedKind, st State) {
	switch st {
	case StateSubscribed, StateStreaming:
		h.mu.Lock()
		delete(h.downSince, kind)
		delete(h.reported, kind)
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	since, ok := h.downSince[kind]
	if !ok {
		h.downSince[kind] = h.now()
		h.mu.Unlock()
		return
	}
	down := h.now().Sub(since)
	if h.reported[kind] || down < h.threshold {
		h.mu.Unlock()
		return
	}
	h.reported[kind] = true
	h.mu.Unlock()

	h.logger.Printf("[feed] %s feed down for %s", kind, down.Round(time.Second))
	if h.hub != nil {
		h.hub.Broadcast(&domain.Event{
			Type: domain.EventKindError,
			Data: domain.ErrorEventPayload{
				Code:    "feed_down",
				Message: fmt.Sprintf("%s feed down for %s", kind, down.Round(time.Second)),
			},
			Timestamp: h.now().UnixMilli(),
		})
	}
}
