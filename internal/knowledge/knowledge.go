// Package knowledge holds the static policy knowledge base and the ranked
// topic lookup used to ground answers. Content is embedded at build time
// and never mutated.
package knowledge

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kaluza-tech/askbot/internal/keyword"
)

//go:embed knowledge.yaml
var embedded []byte

// Topic is one named section of policy text within a domain.
type Topic struct {
	Name string `yaml:"topic"`
	Body string `yaml:"body"`
}

// Store maps a domain (finance, navan) to its ordered topic list.
// Topic order is the file order; ties in lookup scoring preserve it.
type Store struct {
	domains map[string][]Topic
}

// Load parses the embedded knowledge base.
func Load() (*Store, error) {
	return Parse(embedded)
}

// Parse builds a Store from YAML content. Split out from Load so tests can
// feed small fixtures.
func Parse(data []byte) (*Store, error) {
	var domains map[string][]Topic
	if err := yaml.Unmarshal(data, &domains); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	for domain, topics := range domains {
		for _, topic := range topics {
			if topic.Name == "" || topic.Body == "" {
				return nil, fmt.Errorf("knowledge base domain %q has a topic with empty name or body", domain)
			}
		}
	}
	return &Store{domains: domains}, nil
}

// Domains returns the known domain names.
func (s *Store) Domains() []string {
	names := make([]string, 0, len(s.domains))
	for d := range s.domains {
		names = append(names, d)
	}
	sort.Strings(names)
	return names
}

// Relevant returns the bodies of all topics in the domain sharing at least
// one keyword with the question, best match first, each under a
// "### topic" header. Unknown domain or no matches returns "".
func (s *Store) Relevant(domain, question string) string {
	topics := s.domains[domain]
	if len(topics) == 0 {
		return ""
	}

	qTokens := keyword.Tokenize(question)

	type match struct {
		score int
		topic Topic
	}
	var matches []match
	for _, t := range topics {
		score := keyword.OverlapSet(qTokens, t.Name+" "+t.Body)
		if score > 0 {
			matches = append(matches, match{score: score, topic: t})
		}
	}
	if len(matches) == 0 {
		return ""
	}

	// Stable: equal scores keep file order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	sections := make([]string, len(matches))
	for i, m := range matches {
		sections[i] = fmt.Sprintf("### %s\n%s", m.topic.Name, m.topic.Body)
	}
	return strings.Join(sections, "\n\n")
}
