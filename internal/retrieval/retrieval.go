// Package retrieval finds past question/answer exchanges in cached channel
// history that resemble a new question, scored by keyword overlap.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kaluza-tech/askbot/internal/cache"
	"github.com/kaluza-tech/askbot/internal/keyword"
	"github.com/kaluza-tech/askbot/internal/slack"
)

const (
	// DefaultTopN is the number of matches returned per question.
	DefaultTopN = 3
	// DefaultMinOverlap is the minimum shared-token count for a thread to
	// qualify as similar.
	DefaultMinOverlap = 3
)

// QAMatch is one prior exchange: the thread-starting question, its
// canonical answer, and the keyword-overlap score against the new question.
type QAMatch struct {
	Question string
	Answer   string
	Score    int
}

// Retriever searches a channel's cached history, falling back to live
// fetches on a cache miss.
type Retriever struct {
	cache      *cache.Cache
	fetcher    cache.Fetcher
	window     time.Duration
	logger     *slog.Logger
	topN       int
	minOverlap int
}

func New(c *cache.Cache, fetcher cache.Fetcher, window time.Duration, logger *slog.Logger) *Retriever {
	return &Retriever{
		cache:      c,
		fetcher:    fetcher,
		window:     window,
		logger:     logger,
		topN:       DefaultTopN,
		minOverlap: DefaultMinOverlap,
	}
}

// FindSimilar returns up to topN prior Q&A pairs from channelID whose
// starting message shares at least minOverlap keywords with question,
// best match first. Insertion order breaks ties.
func (r *Retriever) FindSimilar(ctx context.Context, channelID, question string) ([]QAMatch, error) {
	var (
		history       []slack.Message
		cachedThreads map[string][]slack.Message
	)

	if entry, ok := r.cache.Snapshot(channelID); ok {
		history = entry.Messages
		cachedThreads = entry.Threads
	} else {
		// Degraded path: no snapshot yet for this channel. Thread replies
		// are fetched live per-candidate below.
		r.logger.Warn("cache miss, falling back to live history fetch", "channel", channelID)
		live, err := r.fetcher.FetchHistory(ctx, channelID, time.Now().Add(-r.window))
		if err != nil {
			return nil, fmt.Errorf("live history fetch for %s: %w", channelID, err)
		}
		history = live
	}

	qTokens := keyword.Tokenize(question)

	var candidates []QAMatch
	for _, msg := range history {
		if msg.IsBot() {
			continue
		}
		if msg.ReplyCount == 0 {
			continue
		}

		score := keyword.OverlapSet(qTokens, msg.Text)
		if score < r.minOverlap {
			continue
		}

		replies, ok := cachedThreads[msg.TS]
		if !ok || len(replies) == 0 {
			live, err := r.fetcher.FetchReplies(ctx, channelID, msg.TS)
			if err != nil {
				return nil, fmt.Errorf("live thread fetch for %s/%s: %w", channelID, msg.TS, err)
			}
			replies = live
		}

		answer, ok := firstHumanReply(msg, replies)
		if !ok {
			continue
		}

		candidates = append(candidates, QAMatch{
			Question: msg.Text,
			Answer:   answer,
			Score:    score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > r.topN {
		candidates = candidates[:r.topN]
	}
	return candidates, nil
}

// firstHumanReply picks the canonical answer: the first reply that is not
// the starting message and not bot-authored. Later replies are ignored
// even when they correct the first; that matches how the channels have
// always been read.
func firstHumanReply(starter slack.Message, replies []slack.Message) (string, bool) {
	for _, reply := range replies {
		if reply.TS == starter.TS {
			continue
		}
		if reply.IsBot() {
			continue
		}
		return reply.Text, true
	}
	return "", false
}
