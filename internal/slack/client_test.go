package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(serverURL string) *Client {
	c := NewClient("xoxb-test", discardLogger())
	c.apiURL = serverURL
	return c
}

func TestFetchHistory_Paginates(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if got := r.URL.Query().Get("channel"); got != "C123" {
			t.Errorf("expected channel C123, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "200" {
			t.Errorf("expected limit 200, got %q", got)
		}
		if r.URL.Query().Get("oldest") == "" {
			t.Error("expected oldest to be set")
		}

		calls++
		resp := historyResponse{OK: true}
		switch calls {
		case 1:
			if r.URL.Query().Get("cursor") != "" {
				t.Error("first page must not carry a cursor")
			}
			resp.Messages = []Message{{TS: "1.0", User: "U1", Text: "first"}}
			resp.ResponseMetadata.NextCursor = "page2"
		case 2:
			if got := r.URL.Query().Get("cursor"); got != "page2" {
				t.Errorf("expected cursor page2, got %q", got)
			}
			resp.Messages = []Message{{TS: "2.0", User: "U2", Text: "second"}}
		default:
			t.Error("unexpected third page fetch")
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	msgs, err := testClient(server.URL).FetchHistory(context.Background(), "C123", time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Errorf("unexpected messages: %+v", msgs)
	}
	if calls != 2 {
		t.Errorf("expected 2 pages fetched, got %d", calls)
	}
}

func TestFetchHistory_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(historyResponse{OK: false, Error: "channel_not_found"})
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchHistory(context.Background(), "C404", time.Now())
	if err == nil {
		t.Fatal("expected error for slack error response")
	}
}

func TestFetchReplies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ts"); got != "1700000000.000100" {
			t.Errorf("expected thread ts, got %q", got)
		}
		json.NewEncoder(w).Encode(historyResponse{
			OK: true,
			Messages: []Message{
				{TS: "1700000000.000100", User: "U1", Text: "How do I expense a taxi?"},
				{TS: "1700000000.000200", User: "U2", Text: "Use Navan, taxis need a receipt."},
			},
		})
	}))
	defer server.Close()

	msgs, err := testClient(server.URL).FetchReplies(context.Background(), "C123", "1700000000.000100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestPostMessage_Threaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		if payload["channel"] != "C123" {
			t.Errorf("expected channel C123, got %v", payload["channel"])
		}
		if payload["thread_ts"] != "1.23" {
			t.Errorf("expected thread_ts 1.23, got %v", payload["thread_ts"])
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "ts": "1.24"})
	}))
	defer server.Close()

	if err := testClient(server.URL).PostMessage(context.Background(), "C123", "answer", "1.23"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostMessage_OmitsEmptyThread(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		json.Unmarshal(body, &payload)

		if _, present := payload["thread_ts"]; present {
			t.Error("thread_ts must be omitted for unthreaded posts")
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	if err := testClient(server.URL).PostMessage(context.Background(), "C123", "hello", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthTest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "user_id": "UBOT"})
	}))
	defer server.Close()

	id, err := testClient(server.URL).AuthTest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "UBOT" {
		t.Errorf("expected UBOT, got %q", id)
	}
}
