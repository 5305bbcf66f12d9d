package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kaluza-tech/askbot/internal/cache"
	"github.com/kaluza-tech/askbot/internal/slack"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFetcher struct {
	history      []slack.Message
	historyErr   error
	replies      map[string][]slack.Message
	repliesErr   error
	historyCalls int
	repliesCalls int
}

func (f *fakeFetcher) FetchHistory(ctx context.Context, channelID string, oldest time.Time) ([]slack.Message, error) {
	f.historyCalls++
	return f.history, f.historyErr
}

func (f *fakeFetcher) FetchReplies(ctx context.Context, channelID, threadTS string) ([]slack.Message, error) {
	f.repliesCalls++
	if f.repliesErr != nil {
		return nil, f.repliesErr
	}
	return f.replies[threadTS], nil
}

// primedRetriever returns a retriever whose cache holds the given history
// and threads for channel C1.
func primedRetriever(t *testing.T, history []slack.Message, threads map[string][]slack.Message) (*Retriever, *fakeFetcher) {
	t.Helper()
	f := &fakeFetcher{history: history, replies: threads}
	c := cacheWith(t, f)
	return New(c, f, 30*24*time.Hour, discardLogger()), f
}

func cacheWith(t *testing.T, f *fakeFetcher) *cache.Cache {
	t.Helper()
	c := cache.New(f, []string{"C1"}, 30*24*time.Hour, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	c.RefreshAll(ctx)
	return c
}

func reply(ts, user, text string) slack.Message {
	return slack.Message{TS: ts, User: user, Text: text}
}

func TestFindSimilar_EndToEnd(t *testing.T) {
	history := []slack.Message{
		{TS: "1.0", User: "U1", Text: "How do I expense a taxi?", ReplyCount: 1},
	}
	threads := map[string][]slack.Message{
		"1.0": {
			reply("1.0", "U1", "How do I expense a taxi?"),
			reply("1.1", "U2", "Use Navan, taxis need a receipt."),
		},
	}
	r, _ := primedRetriever(t, history, threads)

	matches, err := r.FindSimilar(context.Background(), "C1", "Can I expense a taxi receipt?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Question != "How do I expense a taxi?" {
		t.Errorf("unexpected question: %q", matches[0].Question)
	}
	if matches[0].Answer != "Use Navan, taxis need a receipt." {
		t.Errorf("unexpected answer: %q", matches[0].Answer)
	}
	if matches[0].Score < DefaultMinOverlap {
		t.Errorf("expected score >= %d, got %d", DefaultMinOverlap, matches[0].Score)
	}
}

func TestFindSimilar_ThresholdBoundary(t *testing.T) {
	// Question tokens: alpha beta gamma delta epsilon.
	question := "alpha beta gamma delta epsilon"
	history := []slack.Message{
		{TS: "1.0", User: "U1", Text: "alpha beta zz", ReplyCount: 1},       // 2 shared: below threshold
		{TS: "2.0", User: "U2", Text: "alpha beta gamma zz", ReplyCount: 1}, // 3 shared: eligible
	}
	threads := map[string][]slack.Message{
		"1.0": {reply("1.1", "U9", "answer one")},
		"2.0": {reply("2.1", "U9", "answer two")},
	}
	r, _ := primedRetriever(t, history, threads)

	matches, err := r.FindSimilar(context.Background(), "C1", question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected only the 3-token candidate, got %+v", matches)
	}
	if matches[0].Score != 3 {
		t.Errorf("expected score 3, got %d", matches[0].Score)
	}
	if matches[0].Answer != "answer two" {
		t.Errorf("expected answer from eligible thread, got %q", matches[0].Answer)
	}
}

func TestFindSimilar_OrderedByScoreDescending(t *testing.T) {
	question := "alpha beta gamma delta epsilon"
	history := []slack.Message{
		{TS: "1.0", User: "U1", Text: "alpha beta gamma zz", ReplyCount: 1},               // 3
		{TS: "2.0", User: "U2", Text: "alpha beta gamma delta epsilon", ReplyCount: 1},    // 5
		{TS: "3.0", User: "U3", Text: "alpha beta gamma delta zz qq ww", ReplyCount: 1},   // 4
	}
	threads := map[string][]slack.Message{
		"1.0": {reply("1.1", "U9", "score three")},
		"2.0": {reply("2.1", "U9", "score five")},
		"3.0": {reply("3.1", "U9", "score four")},
	}
	r, _ := primedRetriever(t, history, threads)

	matches, err := r.FindSimilar(context.Background(), "C1", question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{5, 4, 3}
	if len(matches) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(matches))
	}
	for i, w := range want {
		if matches[i].Score != w {
			t.Errorf("match %d: expected score %d, got %d", i, w, matches[i].Score)
		}
	}
}

func TestFindSimilar_TruncatesToTopN(t *testing.T) {
	question := "alpha beta gamma delta epsilon"
	var history []slack.Message
	threads := make(map[string][]slack.Message)
	for i := range 5 {
		ts := fmt.Sprintf("%d.0", i)
		history = append(history, slack.Message{TS: ts, User: "U1", Text: question, ReplyCount: 1})
		threads[ts] = []slack.Message{reply(ts+"1", "U9", "an answer")}
	}
	r, _ := primedRetriever(t, history, threads)

	matches, err := r.FindSimilar(context.Background(), "C1", question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != DefaultTopN {
		t.Errorf("expected truncation to %d, got %d", DefaultTopN, len(matches))
	}
}

func TestFindSimilar_StableTieOrder(t *testing.T) {
	question := "alpha beta gamma"
	history := []slack.Message{
		{TS: "1.0", User: "U1", Text: "alpha beta gamma first", ReplyCount: 1},
		{TS: "2.0", User: "U2", Text: "alpha beta gamma second", ReplyCount: 1},
	}
	threads := map[string][]slack.Message{
		"1.0": {reply("1.1", "U9", "first answer")},
		"2.0": {reply("2.1", "U9", "second answer")},
	}
	r, _ := primedRetriever(t, history, threads)

	matches, err := r.FindSimilar(context.Background(), "C1", question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 || matches[0].Answer != "first answer" {
		t.Errorf("expected insertion order preserved on equal scores, got %+v", matches)
	}
}

func TestFindSimilar_SkipsBots(t *testing.T) {
	question := "alpha beta gamma"
	history := []slack.Message{
		{TS: "1.0", BotID: "B1", Text: "alpha beta gamma", ReplyCount: 1},
		{TS: "2.0", User: "U1", Subtype: "bot_message", Text: "alpha beta gamma", ReplyCount: 1},
		{TS: "3.0", User: "U1", Text: "alpha beta gamma", ReplyCount: 1},
	}
	threads := map[string][]slack.Message{
		"1.0": {reply("1.1", "U9", "from bot thread")},
		"2.0": {reply("2.1", "U9", "from subtype thread")},
		"3.0": {
			{TS: "3.1", BotID: "B1", Text: "bot reply ignored"},
			reply("3.2", "U9", "human reply wins"),
		},
	}
	r, _ := primedRetriever(t, history, threads)

	matches, err := r.FindSimilar(context.Background(), "C1", question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected only the human-started thread, got %+v", matches)
	}
	if matches[0].Answer != "human reply wins" {
		t.Errorf("expected first human reply, got %q", matches[0].Answer)
	}
}

func TestFindSimilar_SkipsThreadWithoutHumanReplies(t *testing.T) {
	question := "alpha beta gamma"
	history := []slack.Message{
		{TS: "1.0", User: "U1", Text: "alpha beta gamma", ReplyCount: 2},
	}
	threads := map[string][]slack.Message{
		"1.0": {
			reply("1.0", "U1", "alpha beta gamma"), // starter echoed back
			{TS: "1.1", BotID: "B1", Text: "only a bot answered"},
		},
	}
	r, _ := primedRetriever(t, history, threads)

	matches, err := r.FindSimilar(context.Background(), "C1", question)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %+v", matches)
	}
}

func TestFindSimilar_ShortQuestionEmptyResult(t *testing.T) {
	history := []slack.Message{
		{TS: "1.0", User: "U1", Text: "alpha beta gamma", ReplyCount: 1},
	}
	threads := map[string][]slack.Message{
		"1.0": {reply("1.1", "U9", "answer")},
	}
	r, _ := primedRetriever(t, history, threads)

	// Two non-stopword tokens can never reach the threshold of three.
	matches, err := r.FindSimilar(context.Background(), "C1", "alpha beta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected empty result, got %+v", matches)
	}
}

func TestFindSimilar_CacheMissFallsBackToLiveFetch(t *testing.T) {
	f := &fakeFetcher{
		history: []slack.Message{
			{TS: "1.0", User: "U1", Text: "alpha beta gamma", ReplyCount: 1},
		},
		replies: map[string][]slack.Message{
			"1.0": {reply("1.1", "U9", "live answer")},
		},
	}
	// Empty cache: no channels refreshed.
	c := cache.New(f, nil, 30*24*time.Hour, discardLogger())
	r := New(c, f, 30*24*time.Hour, discardLogger())

	matches, err := r.FindSimilar(context.Background(), "C1", "alpha beta gamma")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Answer != "live answer" {
		t.Errorf("expected live-fetched match, got %+v", matches)
	}
	if f.historyCalls != 1 || f.repliesCalls != 1 {
		t.Errorf("expected live history and reply fetches, got %d/%d", f.historyCalls, f.repliesCalls)
	}
}

func TestFindSimilar_LiveHistoryFailurePropagates(t *testing.T) {
	f := &fakeFetcher{historyErr: fmt.Errorf("slack down")}
	c := cache.New(f, nil, 30*24*time.Hour, discardLogger())
	r := New(c, f, 30*24*time.Hour, discardLogger())

	if _, err := r.FindSimilar(context.Background(), "C1", "alpha beta gamma"); err == nil {
		t.Fatal("expected live fetch failure to propagate")
	}
}

func TestFindSimilar_LiveReplyFailurePropagates(t *testing.T) {
	history := []slack.Message{
		{TS: "1.0", User: "U1", Text: "alpha beta gamma", ReplyCount: 1},
	}
	// Cache holds the message but not its thread; the live reply fetch fails.
	f := &fakeFetcher{history: history}
	c := cacheWith(t, f)
	f.repliesErr = fmt.Errorf("rate limited")
	r := New(c, f, 30*24*time.Hour, discardLogger())

	if _, err := r.FindSimilar(context.Background(), "C1", "alpha beta gamma"); err == nil {
		t.Fatal("expected live reply failure to propagate")
	}
}
