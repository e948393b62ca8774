package remote

import (
	"context"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"
)

// OAuthConfig holds client-credentials settings for the external services
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Enabled reports whether a client id was configured
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != ""
}

// NewOAuthHTTPClient returns an http.Client that attaches a bearer token
// obtained through the client-credentials grant. Tokens are cached and
// refreshed by the oauth2 transport.
func NewOAuthHTTPClient(ctx context.Context, cfg OAuthConfig) *http.Client {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return cc.Client(ctx)
}
