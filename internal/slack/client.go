// Package slack speaks the Slack Web API and Socket Mode directly over
// HTTP, without an SDK wrapper: history reads, thread reads, threaded
// replies, identity resolution, and the mention event stream.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultAPIURL = "https://slack.com/api"

// historyPageSize is the Slack-recommended maximum page size for
// conversations.history and conversations.replies.
const historyPageSize = 200

type Client struct {
	token  string
	client *http.Client
	logger *slog.Logger
	apiURL string
}

func NewClient(token string, logger *slog.Logger) *Client {
	return &Client{
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
		apiURL: defaultAPIURL,
		logger: logger,
	}
}

type historyResponse struct {
	OK               bool      `json:"ok"`
	Error            string    `json:"error,omitempty"`
	Messages         []Message `json:"messages"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// AuthTest resolves the bot's own user id, used to strip self-mentions
// from question text.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	var resp struct {
		OK     bool   `json:"ok"`
		Error  string `json:"error,omitempty"`
		UserID string `json:"user_id"`
	}
	if err := c.postJSON(ctx, "auth.test", map[string]any{}, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("slack auth.test: %s", resp.Error)
	}
	return resp.UserID, nil
}

// FetchHistory returns all channel messages authored since oldest,
// following pagination cursors until exhausted.
func (c *Client) FetchHistory(ctx context.Context, channelID string, oldest time.Time) ([]Message, error) {
	var messages []Message
	cursor := ""

	for {
		params := url.Values{
			"channel":   {channelID},
			"oldest":    {strconv.FormatInt(oldest.Unix(), 10)},
			"limit":     {strconv.Itoa(historyPageSize)},
			"inclusive": {"true"},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp historyResponse
		if err := c.get(ctx, "conversations.history", params, &resp); err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, fmt.Errorf("slack conversations.history for %s: %s", channelID, resp.Error)
		}

		messages = append(messages, resp.Messages...)

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return messages, nil
		}
	}
}

// FetchReplies returns all messages in the thread anchored at threadTS,
// including the starting message itself. Callers filter the starter out.
func (c *Client) FetchReplies(ctx context.Context, channelID, threadTS string) ([]Message, error) {
	params := url.Values{
		"channel": {channelID},
		"ts":      {threadTS},
		"limit":   {strconv.Itoa(historyPageSize)},
	}

	var resp historyResponse
	if err := c.get(ctx, "conversations.replies", params, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack conversations.replies for %s/%s: %s", channelID, threadTS, resp.Error)
	}
	return resp.Messages, nil
}

// PostMessage delivers text into a channel, threaded under threadTS when
// non-empty.
func (c *Client) PostMessage(ctx context.Context, channelID, text, threadTS string) error {
	payload := map[string]any{
		"channel": channelID,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}

	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
		TS    string `json:"ts"`
	}
	if err := c.postJSON(ctx, "chat.postMessage", payload, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("slack chat.postMessage to %s: %s", channelID, resp.Error)
	}
	return nil
}

func (c *Client) get(ctx context.Context, method string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/"+method+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.do(req, method, out)
}

func (c *Client) postJSON(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.do(req, method, out)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: status %d: %s", method, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse %s response: %w", method, err)
	}
	return nil
}
