package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// MentionHandler is invoked once per inbound app_mention. Handlers run on
// their own goroutine, so distinct events may be processed concurrently.
type MentionHandler func(ctx context.Context, ev MentionEvent)

// SocketClient maintains the Socket Mode connection: it opens a websocket
// URL via apps.connections.open, acknowledges event envelopes, and
// dispatches app_mention events to the handler.
type SocketClient struct {
	appToken string
	client   *http.Client
	logger   *slog.Logger
	apiURL   string
	dialer   *websocket.Dialer
}

func NewSocketClient(appToken string, logger *slog.Logger) *SocketClient {
	return &SocketClient{
		appToken: appToken,
		client:   &http.Client{Timeout: 10 * time.Second},
		apiURL:   defaultAPIURL,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
	}
}

// envelope is the Socket Mode framing around every inbound message.
type envelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Reason     string          `json:"reason,omitempty"`
}

type eventsAPIPayload struct {
	Event struct {
		Type     string `json:"type"`
		Channel  string `json:"channel"`
		User     string `json:"user"`
		Text     string `json:"text"`
		TS       string `json:"ts"`
		ThreadTS string `json:"thread_ts"`
		BotID    string `json:"bot_id"`
	} `json:"event"`
}

// Run connects and serves events until ctx is cancelled, reconnecting with
// backoff when Slack closes the socket or asks for a refresh.
func (s *SocketClient) Run(ctx context.Context, handler MentionHandler) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.serveOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Warn("socket mode connection lost", "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// serveOnce runs a single websocket session to completion.
func (s *SocketClient) serveOnce(ctx context.Context, handler MentionHandler) error {
	wsURL, err := s.openConnection(ctx)
	if err != nil {
		return err
	}

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial socket mode: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("socket read: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.logger.Warn("unparseable socket envelope", "error", err)
			continue
		}

		switch env.Type {
		case "hello":
			s.logger.Info("socket mode connected")

		case "disconnect":
			s.logger.Info("socket mode disconnect requested", "reason", env.Reason)
			return nil

		case "events_api":
			// Ack first: Slack redelivers unacked envelopes, and handling
			// may take several seconds of LLM time.
			if err := conn.WriteJSON(map[string]string{"envelope_id": env.EnvelopeID}); err != nil {
				return fmt.Errorf("ack envelope: %w", err)
			}
			s.dispatch(ctx, env.Payload, handler)

		default:
			if env.EnvelopeID != "" {
				_ = conn.WriteJSON(map[string]string{"envelope_id": env.EnvelopeID})
			}
		}
	}
}

func (s *SocketClient) dispatch(ctx context.Context, payload json.RawMessage, handler MentionHandler) {
	var p eventsAPIPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.logger.Warn("unparseable events_api payload", "error", err)
		return
	}
	if p.Event.Type != "app_mention" || p.Event.BotID != "" {
		return
	}

	ev := MentionEvent{
		Channel:  p.Event.Channel,
		User:     p.Event.User,
		Text:     p.Event.Text,
		TS:       p.Event.TS,
		ThreadTS: p.Event.ThreadTS,
	}
	go handler(ctx, ev)
}

// openConnection requests a fresh websocket URL.
func (s *SocketClient) openConnection(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/apps.connections.open", nil)
	if err != nil {
		return "", fmt.Errorf("create connections.open request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.appToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("apps.connections.open: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
		URL   string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("parse connections.open response: %w", err)
	}
	if !body.OK {
		return "", fmt.Errorf("apps.connections.open: %s", body.Error)
	}
	return body.URL, nil
}
