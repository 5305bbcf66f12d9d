// Package composer assembles the grounding context and question into the
// final prompt and performs the single LLM call per question.
package composer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaluza-tech/askbot/internal/llm"
	"github.com/kaluza-tech/askbot/internal/retrieval"
)

// DefaultMaxTokens bounds the size of every answer.
const DefaultMaxTokens = 1024

const (
	knowledgeHeader  = "## Relevant Company Policy / Knowledge Base"
	similarQAHeader  = "## Similar Past Questions & Answers from This Channel"
	enrichmentHeader = "## Navan Account Context"
	questionHeader   = "## New Question"
)

// Prompt is the pair of strings handed to the LLM provider.
type Prompt struct {
	System string
	User   string
}

// Context is the optional grounding material for one question. Empty
// sections are omitted from the prompt entirely.
type Context struct {
	Knowledge  string
	SimilarQA  []retrieval.QAMatch
	Enrichment string
}

// Compose builds the prompt: knowledge section, similar-Q&A section,
// optional enrichment, then the question itself.
func Compose(systemPrompt, question string, grounding Context) Prompt {
	var parts []string

	if grounding.Knowledge != "" {
		parts = append(parts, knowledgeHeader+"\n"+grounding.Knowledge)
	}

	if len(grounding.SimilarQA) > 0 {
		pairs := make([]string, len(grounding.SimilarQA))
		for i, qa := range grounding.SimilarQA {
			pairs[i] = fmt.Sprintf("Q: %s\nA: %s", qa.Question, qa.Answer)
		}
		parts = append(parts, similarQAHeader+"\n"+strings.Join(pairs, "\n\n"))
	}

	if grounding.Enrichment != "" {
		parts = append(parts, enrichmentHeader+"\n"+grounding.Enrichment)
	}

	parts = append(parts, questionHeader+"\n"+question)

	return Prompt{
		System: systemPrompt,
		User:   strings.Join(parts, "\n\n"),
	}
}

// Answerer runs composed prompts through the LLM provider. No retries:
// failures propagate to the request handler, which owns the user-facing
// fallback.
type Answerer struct {
	provider  llm.Provider
	maxTokens int
	logger    *slog.Logger
}

func NewAnswerer(provider llm.Provider, logger *slog.Logger) *Answerer {
	return &Answerer{
		provider:  provider,
		maxTokens: DefaultMaxTokens,
		logger:    logger,
	}
}

// Ask composes the prompt and returns the provider's reply verbatim.
func (a *Answerer) Ask(ctx context.Context, systemPrompt, question string, grounding Context) (string, error) {
	prompt := Compose(systemPrompt, question, grounding)

	a.logger.Debug("asking llm",
		"provider", a.provider.Name(),
		"prompt_len", len(prompt.User),
		"similar_qa", len(grounding.SimilarQA),
	)

	answer, err := a.provider.Complete(ctx, prompt.System, prompt.User, a.maxTokens)
	if err != nil {
		return "", fmt.Errorf("llm completion: %w", err)
	}
	return answer, nil
}
