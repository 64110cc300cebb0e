// Package gauth builds authenticated Google API clients from either a
// service account key file or an OAuth2 refresh token.
package gauth

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
)

// Config holds Google API credentials. ServiceAccountPath wins when both
// are set; the OAuth2 fields are the fallback for personal accounts.
type Config struct {
	ServiceAccountPath string
	ClientID           string
	ClientSecret       string
	RefreshToken       string
}

// TokenSource returns a token source scoped to the given APIs.
func (c Config) TokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	if c.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(c.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, scopes...)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		return jwtConfig.TokenSource(ctx), nil
	}

	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return nil, fmt.Errorf("%w: need a service account path or an OAuth2 client ID, secret, and refresh token", common.ErrMissingConfig)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
	}
	token := &oauth2.Token{
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}

	return oauthConfig.TokenSource(ctx, token), nil
}

// Client returns an authenticated HTTP client scoped to the given APIs.
func (c Config) Client(ctx context.Context, scopes ...string) (*http.Client, error) {
	tokenSource, err := c.TokenSource(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, tokenSource), nil
}
