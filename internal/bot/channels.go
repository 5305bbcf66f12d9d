package bot

import "github.com/kaluza-tech/askbot/internal/config"

// Channel binds a listened Slack channel to its knowledge domain, its
// history source, and the system prompt used for answers in it.
type Channel struct {
	// ListenID is the channel whose mentions we answer.
	ListenID string
	// HistorySource is the channel whose history feeds retrieval. In test
	// mode this stays pointed at the production channel so answers are
	// grounded in real Q&A even while the bot listens elsewhere.
	HistorySource string
	Domain        string
	SystemPrompt  string
}

// Channels builds the listen-channel table from configuration, keyed by
// the channel ID mentions arrive on.
func Channels(cfg *config.Config) map[string]Channel {
	listenFinance := cfg.FinanceChannelID
	listenNavan := cfg.NavanChannelID
	if cfg.TestMode {
		listenFinance = cfg.TestFinanceChannelID
		listenNavan = cfg.TestNavanChannelID
	}

	return map[string]Channel{
		listenFinance: {
			ListenID:      listenFinance,
			HistorySource: cfg.FinanceChannelID,
			Domain:        "finance",
			SystemPrompt:  financeSystemPrompt,
		},
		listenNavan: {
			ListenID:      listenNavan,
			HistorySource: cfg.NavanChannelID,
			Domain:        "navan",
			SystemPrompt:  navanSystemPrompt,
		},
	}
}

// HistorySources lists the distinct channels retrieval reads from.
func HistorySources(channels map[string]Channel) []string {
	seen := make(map[string]struct{}, len(channels))
	var sources []string
	for _, ch := range channels {
		if _, ok := seen[ch.HistorySource]; ok {
			continue
		}
		seen[ch.HistorySource] = struct{}{}
		sources = append(sources, ch.HistorySource)
	}
	return sources
}
