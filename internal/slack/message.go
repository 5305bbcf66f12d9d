package slack

import "strings"

// Message is one channel or thread message as returned by the Slack Web
// API. Immutable once fetched.
type Message struct {
	TS         string `json:"ts"`
	ThreadTS   string `json:"thread_ts,omitempty"`
	User       string `json:"user"`
	Text       string `json:"text"`
	BotID      string `json:"bot_id,omitempty"`
	Subtype    string `json:"subtype,omitempty"`
	ReplyCount int    `json:"reply_count,omitempty"`
}

// IsBot reports whether the message was authored by a bot. Slack marks bot
// messages either with a bot_id or the bot_message subtype.
func (m Message) IsBot() bool {
	return m.BotID != "" || m.Subtype == "bot_message"
}

// MentionEvent is an inbound app_mention delivered over Socket Mode.
type MentionEvent struct {
	Channel  string `json:"channel"`
	User     string `json:"user"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// ReplyAnchor returns the thread the bot should answer in: the existing
// thread if the mention was already threaded, otherwise the mention itself.
func (e MentionEvent) ReplyAnchor() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.TS
}

// StripMention removes the literal <@botUserID> mention syntax from text
// and trims whitespace, leaving the raw question.
func StripMention(text, botUserID string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+botUserID+">", ""))
}
