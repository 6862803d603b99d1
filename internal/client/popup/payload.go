package popup

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/campusgive/internal/client/client"
)

// payload is the wire shape the popup posts to its opener.
type payload struct {
	AuthSuccess      *bool           `json:"authSuccess"`
	User             json.RawMessage `json:"user,omitempty"`
	Token            string          `json:"token,omitempty"`
	Provider         string          `json:"provider"`
	RequireEmail     bool            `json:"requireEmail,omitempty"`
	EmailNotVerified bool            `json:"emailNotVerified,omitempty"`
	ProfileURL       string          `json:"profileUrl,omitempty"`
	Message          string          `json:"message,omitempty"`
}

// decodeOutcome turns a trusted message body into an Outcome.
func decodeOutcome(data []byte, provider string) (Outcome, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if p.AuthSuccess == nil {
		return Outcome{}, fmt.Errorf("%w: missing authSuccess", ErrMalformedMessage)
	}
	if p.Provider != "" {
		provider = p.Provider
	}

	if *p.AuthSuccess {
		if client.IsEmptyJSON(p.User) {
			return Outcome{}, fmt.Errorf("%w: success without user", ErrMalformedMessage)
		}
		return Outcome{Kind: Success, Provider: provider, User: p.User, Token: p.Token}, nil
	}

	reason := p.Message
	if reason == "" {
		reason = "rejected by provider"
	}
	return Outcome{
		Kind:            Rejected,
		Provider:        provider,
		Reason:          reason,
		RequiresEmail:   p.RequireEmail,
		EmailUnverified: p.EmailNotVerified,
		ProfileURL:      p.ProfileURL,
	}, nil
}
