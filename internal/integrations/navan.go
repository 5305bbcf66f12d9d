package integrations

import "context"

// Navan is the placeholder client for the Navan travel platform. The
// integration surface is defined so it is ready to build on once API
// access is available; until then every method reports no data and the
// feature flag that would select it stays off.
type Navan struct {
	apiKey    string
	apiSecret string
}

func NewNavan(apiKey, apiSecret string) *Navan {
	return &Navan{apiKey: apiKey, apiSecret: apiSecret}
}

func (n *Navan) Name() string { return "navan" }

// Enrich would surface the user's upcoming trips and bookings as prompt
// context. Unimplemented: always no data.
func (n *Navan) Enrich(ctx context.Context, question, userID string) (string, error) {
	return "", nil
}
