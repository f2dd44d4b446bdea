package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/repository"
)

// DeadlineNotifier periodically announces open listings whose deadline is near. Each listing is
// announced at most once: across instances via Redis SETNX, otherwise per process.
type DeadlineNotifier struct {
	listings repository.ListingRepository
	events   *EventDispatcher
	redis    *redis.Client
	keyBase  string
	window   time.Duration
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	announced map[string]time.Time
}

// NewDeadlineNotifier builds the sweeper. redisClient may be nil.
func NewDeadlineNotifier(listings repository.ListingRepository, events *EventDispatcher, redisClient *redis.Client, channelBase string, window, interval time.Duration, logger zerolog.Logger) *DeadlineNotifier {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	keyBase := "groupbuy:deadline"
	if channelBase != "" {
		keyBase = channelBase + ":deadline"
	}

	return &DeadlineNotifier{
		listings:  listings,
		events:    events,
		redis:     redisClient,
		keyBase:   keyBase,
		window:    window,
		interval:  interval,
		logger:    logger.With().Str("component", "deadline_notifier").Logger(),
		now:       time.Now,
		announced: make(map[string]time.Time),
	}
}

// Start runs the sweep on a ticker until ctx is cancelled.
func (n *DeadlineNotifier) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()

		n.sweepAndLog(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.sweepAndLog(ctx)
			}
		}
	}()
}

func (n *DeadlineNotifier) sweepAndLog(ctx context.Context) {
	count, err := n.Sweep(ctx)
	if err != nil {
		n.logger.Error().Err(err).Msg("deadline sweep failed")
		return
	}
	if count > 0 {
		n.logger.Info().Int("announced", count).Msg("deadline sweep completed")
	}
}

// Sweep announces every eligible listing once and returns how many were announced.
func (n *DeadlineNotifier) Sweep(ctx context.Context) (int, error) {
	now := n.now().UTC()
	candidates, err := n.listings.ListDeadlineCandidates(ctx, now, now.Add(n.window))
	if err != nil {
		return 0, err
	}

	announced := 0
	for _, listing := range candidates {
		ttl := listing.Deadline.Sub(now) + time.Hour
		claimed, err := n.claim(ctx, listing.ID, ttl)
		if err != nil {
			n.logger.Warn().Err(err).Str("listing_id", listing.ID).Msg("failed to claim deadline announcement")
			continue
		}
		if !claimed {
			continue
		}

		n.events.Dispatch(ctx, Event{Type: EventListingDeadlineSoon, Listing: listing})
		announced++
	}

	n.forgetExpired(now)
	return announced, nil
}

func (n *DeadlineNotifier) claim(ctx context.Context, listingID string, ttl time.Duration) (bool, error) {
	if n.redis != nil {
		return n.redis.SetNX(ctx, n.keyBase+":"+listingID, n.now().UTC().Format(time.RFC3339), ttl).Result()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, seen := n.announced[listingID]; seen {
		return false, nil
	}
	n.announced[listingID] = n.now().Add(ttl)
	return true, nil
}

func (n *DeadlineNotifier) forgetExpired(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, expiry := range n.announced {
		if now.After(expiry) {
			delete(n.announced, id)
		}
	}
}
