// Package answerlog persists answered questions to Postgres for later
// auditing. It is optional: the bot runs without it when DATABASE_URL is
// unset, and recording failures never block a reply.
package answerlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Answer is one answered question.
type Answer struct {
	ID        uuid.UUID `json:"id"`
	Channel   string    `json:"channel"`
	Domain    string    `json:"domain"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Matches   int       `json:"matches"`
	CreatedAt time.Time `json:"created_at"`
}

type Log struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Log, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Log{pool: pool}, nil
}

func (l *Log) Close() {
	l.pool.Close()
}

// EnsureSchema creates the answers table if it does not exist.
func (l *Log) EnsureSchema(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS answers (
			id UUID PRIMARY KEY,
			channel TEXT NOT NULL,
			domain TEXT NOT NULL,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			matches INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create answers table: %w", err)
	}
	return nil
}

// Record writes one answered question.
func (l *Log) Record(ctx context.Context, a Answer) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO answers (id, channel, domain, question, answer, matches, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Channel, a.Domain, a.Question, a.Answer, a.Matches, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

// Recent returns the most recently answered questions, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Answer, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, channel, domain, question, answer, matches, created_at
		FROM answers
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	var answers []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ID, &a.Channel, &a.Domain, &a.Question, &a.Answer, &a.Matches, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return answers, nil
}
