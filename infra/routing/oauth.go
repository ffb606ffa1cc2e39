package routing

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2Config enables client-credentials authentication for routing
// gateways that sit behind an identity provider.
type OAuth2Config struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

// Enabled reports whether a token endpoint is configured.
func (c OAuth2Config) Enabled() bool { return c.TokenURL != "" }

// Validate checks the configuration values.
func (c OAuth2Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("routing.oauth2 requires client_id and client_secret")
	}
	return nil
}

// Client returns an http.Client that fetches and refreshes bearer tokens.
// The token request uses base as transport when set.
func (c OAuth2Config) Client(base *http.Client) *http.Client {
	cc := clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return cc.Client(ctx)
}
