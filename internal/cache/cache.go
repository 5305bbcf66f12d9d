// Package cache maintains in-memory snapshots of channel history so
// per-question retrieval never blocks on a live Slack fetch in the common
// case. Entries are rebuilt in bulk and replaced wholesale: readers either
// see the previous snapshot or the new one, never a mix.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kaluza-tech/askbot/internal/slack"
)

// threadFetchDelay spaces out conversations.replies calls during a bulk
// refresh to respect Slack rate limits.
const threadFetchDelay = 500 * time.Millisecond

// Fetcher is the slice of the Slack client the cache needs. Tests inject
// fakes.
type Fetcher interface {
	FetchHistory(ctx context.Context, channelID string, oldest time.Time) ([]slack.Message, error)
	FetchReplies(ctx context.Context, channelID, threadTS string) ([]slack.Message, error)
}

// Entry is one channel's snapshot. Never mutated after publication; a
// refresh builds a fresh Entry and swaps the map slot.
type Entry struct {
	Messages      []slack.Message
	Threads       map[string][]slack.Message
	LastRefreshed time.Time
}

// Cache holds one Entry per history-source channel.
type Cache struct {
	fetcher  Fetcher
	channels []string
	window   time.Duration
	throttle time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry
}

// New builds a cache over the given history-source channels. The channel
// list is deduplicated: several listen-channels may share one source, and
// each source refreshes exactly once per cycle.
func New(fetcher Fetcher, channels []string, window time.Duration, logger *slog.Logger) *Cache {
	seen := make(map[string]struct{}, len(channels))
	var unique []string
	for _, ch := range channels {
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		unique = append(unique, ch)
	}

	return &Cache{
		fetcher:  fetcher,
		channels: unique,
		window:   window,
		throttle: threadFetchDelay,
		logger:   logger,
		entries:  make(map[string]*Entry),
	}
}

// Snapshot returns the current entry for a channel, or false on a cache
// miss. The returned entry is immutable.
func (c *Cache) Snapshot(channelID string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[channelID]
	return e, ok
}

// RefreshAll rebuilds every source channel. A failure in one channel is
// logged and leaves its previous entry (if any) in place; other channels
// still refresh.
func (c *Cache) RefreshAll(ctx context.Context) {
	for _, channelID := range c.channels {
		entry, err := c.refreshChannel(ctx, channelID)
		if err != nil {
			c.logger.Error("channel refresh failed", "channel", channelID, "error", err)
			continue
		}
		c.mu.Lock()
		c.entries[channelID] = entry
		c.mu.Unlock()
	}
}

// Start runs RefreshAll on the given interval until ctx is cancelled. The
// caller is expected to have run the first RefreshAll synchronously before
// accepting questions.
func (c *Cache) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RefreshAll(ctx)
			}
		}
	}()
}

// refreshChannel fetches one channel's history plus all thread replies and
// builds a complete new entry. Individual thread fetch failures are logged
// and skipped; that thread is simply absent from the snapshot.
func (c *Cache) refreshChannel(ctx context.Context, channelID string) (*Entry, error) {
	c.logger.Info("refreshing channel cache", "channel", channelID)

	messages, err := c.fetcher.FetchHistory(ctx, channelID, time.Now().Add(-c.window))
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	threads := make(map[string][]slack.Message)
	for _, msg := range messages {
		if msg.ReplyCount == 0 {
			continue
		}
		replies, err := c.fetcher.FetchReplies(ctx, channelID, msg.TS)
		if err != nil {
			c.logger.Warn("thread fetch failed, skipping",
				"channel", channelID,
				"thread_ts", msg.TS,
				"error", err,
			)
		} else {
			threads[msg.TS] = replies
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.throttle):
		}
	}

	c.logger.Info("channel cache refreshed",
		"channel", channelID,
		"messages", len(messages),
		"threads", len(threads),
	)

	return &Entry{
		Messages:      messages,
		Threads:       threads,
		LastRefreshed: time.Now(),
	}, nil
}

// ChannelStats is the per-channel freshness view exposed by the status API.
type ChannelStats struct {
	Channel       string    `json:"channel"`
	Messages      int       `json:"messages"`
	Threads       int       `json:"threads"`
	LastRefreshed time.Time `json:"last_refreshed"`
}

// Stats reports freshness for every cached channel, in source order.
// Channels that have never refreshed successfully are omitted.
func (c *Cache) Stats() []ChannelStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var stats []ChannelStats
	for _, ch := range c.channels {
		e, ok := c.entries[ch]
		if !ok {
			continue
		}
		stats = append(stats, ChannelStats{
			Channel:       ch,
			Messages:      len(e.Messages),
			Threads:       len(e.Threads),
			LastRefreshed: e.LastRefreshed,
		})
	}
	return stats
}
