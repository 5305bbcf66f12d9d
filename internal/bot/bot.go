// Package bot is the mention handler: it turns an @mention in a
// configured channel into a grounded answer posted back in the thread.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kaluza-tech/askbot/internal/announce"
	"github.com/kaluza-tech/askbot/internal/answerlog"
	"github.com/kaluza-tech/askbot/internal/composer"
	"github.com/kaluza-tech/askbot/internal/integrations"
	"github.com/kaluza-tech/askbot/internal/retrieval"
	"github.com/kaluza-tech/askbot/internal/slack"
)

// Retriever finds similar past Q&A pairs in a channel's history.
type Retriever interface {
	FindSimilar(ctx context.Context, channelID, question string) ([]retrieval.QAMatch, error)
}

// Knowledge returns the knowledge-base context for a domain and question.
type Knowledge interface {
	Relevant(domain, question string) string
}

// Answerer runs one completion for a composed prompt.
type Answerer interface {
	Ask(ctx context.Context, systemPrompt, question string, grounding composer.Context) (string, error)
}

// Poster posts messages back to Slack.
type Poster interface {
	PostMessage(ctx context.Context, channelID, text, threadTS string) error
}

// Recorder persists answered questions.
type Recorder interface {
	Record(ctx context.Context, a answerlog.Answer) error
}

// Publisher announces events to interested services.
type Publisher interface {
	Publish(subject string, data any) error
}

type Bot struct {
	channels  map[string]Channel
	botUserID string
	retriever Retriever
	knowledge Knowledge
	answerer  Answerer
	poster    Poster
	logger    *slog.Logger

	// Optional collaborators; nil disables each.
	enricher  integrations.Enricher
	recorder  Recorder
	announcer Publisher
}

func New(channels map[string]Channel, botUserID string, r Retriever, k Knowledge, a Answerer, p Poster, logger *slog.Logger) *Bot {
	return &Bot{
		channels:  channels,
		botUserID: botUserID,
		retriever: r,
		knowledge: k,
		answerer:  a,
		poster:    p,
		logger:    logger,
	}
}

func (b *Bot) WithEnricher(e integrations.Enricher) *Bot {
	b.enricher = e
	return b
}

func (b *Bot) WithRecorder(rec Recorder) *Bot {
	b.recorder = rec
	return b
}

func (b *Bot) WithAnnouncer(pub Publisher) *Bot {
	b.announcer = pub
	return b
}

// HandleMention answers one @mention. Mentions in unconfigured channels
// are ignored; an empty question gets a nudge; any failure after that is
// logged and turned into an apology in the thread.
func (b *Bot) HandleMention(ctx context.Context, ev slack.MentionEvent) {
	ch, ok := b.channels[ev.Channel]
	if !ok {
		b.logger.Info("mention in unconfigured channel, ignoring", "channel", ev.Channel)
		return
	}

	anchor := ev.ReplyAnchor()
	question := slack.StripMention(ev.Text, b.botUserID)
	if question == "" {
		if err := b.poster.PostMessage(ctx, ev.Channel, emptyQuestionReply, anchor); err != nil {
			b.logger.Error("failed to post nudge", "channel", ev.Channel, "error", err)
		}
		return
	}

	requestID := uuid.New()
	logger := b.logger.With("request_id", requestID, "domain", ch.Domain, "channel", ev.Channel)
	logger.Info("received question", "user", ev.User, "question", truncate(question, 120))

	similar, err := b.retriever.FindSimilar(ctx, ch.HistorySource, question)
	if err != nil {
		logger.Error("retrieval failed", "error", err)
		b.apologise(ctx, ev.Channel, anchor, logger)
		return
	}
	logger.Info("found similar past questions", "count", len(similar))

	grounding := composer.Context{
		Knowledge: b.knowledge.Relevant(ch.Domain, question),
		SimilarQA: similar,
	}

	if b.enricher != nil {
		enrichment, err := b.enricher.Enrich(ctx, question, ev.User)
		if err != nil {
			logger.Warn("enrichment failed, answering without it",
				"enricher", b.enricher.Name(), "error", err)
		} else {
			grounding.Enrichment = enrichment
		}
	}

	answer, err := b.answerer.Ask(ctx, ch.SystemPrompt, question, grounding)
	if err != nil {
		logger.Error("answer generation failed", "error", err)
		b.apologise(ctx, ev.Channel, anchor, logger)
		return
	}

	if err := b.poster.PostMessage(ctx, ev.Channel, answer, anchor); err != nil {
		logger.Error("failed to post answer", "error", err)
		b.apologise(ctx, ev.Channel, anchor, logger)
		return
	}
	logger.Info("replied in thread", "thread_ts", anchor)

	b.followUp(ctx, requestID, ch, question, answer, len(similar), logger)
}

// followUp records and announces a delivered answer. Best effort: the
// user already has their reply, so failures here are only logged.
func (b *Bot) followUp(ctx context.Context, requestID uuid.UUID, ch Channel, question, answer string, matches int, logger *slog.Logger) {
	if b.recorder != nil {
		a := answerlog.Answer{
			ID:        requestID,
			Channel:   ch.ListenID,
			Domain:    ch.Domain,
			Question:  question,
			Answer:    answer,
			Matches:   matches,
			CreatedAt: time.Now().UTC(),
		}
		if err := b.recorder.Record(ctx, a); err != nil {
			logger.Error("failed to record answer", "error", err)
		}
	}

	if b.announcer != nil {
		evt := announce.AnsweredEvent{
			RequestID: requestID.String(),
			Channel:   ch.ListenID,
			Domain:    ch.Domain,
			Matches:   matches,
			Timestamp: time.Now().UTC(),
		}
		if err := b.announcer.Publish(announce.SubjectAnswered, evt); err != nil {
			logger.Error("failed to announce answer", "error", err)
		}
	}
}

func (b *Bot) apologise(ctx context.Context, channelID, anchor string, logger *slog.Logger) {
	if err := b.poster.PostMessage(ctx, channelID, errorReply, anchor); err != nil {
		logger.Error("failed to post apology", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
