// Package integrations defines the capability interface for external
// context providers. The only current implementer, Navan, is a stub behind
// a feature flag that stays off; handlers treat the enricher as an
// optional collaborator and skip it when nil.
package integrations

import "context"

// Enricher contributes an extra context section for a question, keyed to
// the asking user's identity. An empty string means nothing to add.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, question, userID string) (string, error)
}
