package mutation

import (
	"context"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/pubsub"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/query"
)

// Relay keeps the query caches of several instances coherent. Local
// invalidations are announced on the bus; announcements from other
// instances are applied to the local cache.
type Relay struct {
	cache  *query.Cache
	bus    pubsub.Bus
	origin string
}

// NewRelay creates a relay with a fresh origin id
func NewRelay(cache *query.Cache, bus pubsub.Bus) *Relay {
	return &Relay{
		cache:  cache,
		bus:    bus,
		origin: uuid.NewString(),
	}
}

// Origin returns the id this instance tags its announcements with
func (r *Relay) Origin() string {
	return r.origin
}

// Announce publishes an invalidation of key
func (r *Relay) Announce(key query.Key) {
	r.bus.Publish(pubsub.InvalidateEvent(r.origin, key))
}

// Start subscribes to the bus and applies remote invalidations until ctx is
// done. The subscription is in place when Start returns; the returned channel
// is closed once the relay has stopped.
func (r *Relay) Start(ctx context.Context) <-chan struct{} {
	ch := r.bus.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer r.bus.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				key, origin, isInvalidation := ev.Invalidation()
				if !isInvalidation || origin == r.origin {
					continue
				}
				n := r.cache.Invalidate(query.Key(key))
				logger.Debug("Applied remote invalidation", "key", key, "origin", origin, "entries", n)
			}
		}
	}()

	return done
}
