package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
)

// OAuth2Refresher refreshes tokens with the OAuth 2.0 refresh_token grant.
type OAuth2Refresher struct {
	name       string
	config     *oauth2.Config
	httpClient *http.Client
	clock      clockwork.Clock
}

// NewOAuth2Refresher creates a refresher for the provider described by cfg.
// A nil httpClient uses http.DefaultClient.
func NewOAuth2Refresher(cfg Config, httpClient *http.Client, clock clockwork.Clock) *OAuth2Refresher {
	return &OAuth2Refresher{
		name: cfg.Name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		clock:      clock,
	}
}

// Refresh exchanges refreshToken for a new token set. Rejections of the grant
// itself are reported as revoked.
func (r *OAuth2Refresher) Refresh(ctx context.Context, refreshToken string) (*credentialDomain.TokenSet, error) {
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	retrievedAt := r.clock.Now().UTC()
	token, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &credentialDomain.RefreshError{
			Provider: r.name,
			Revoked:  isRevoked(err),
			Err:      err,
		}
	}

	tokens := &credentialDomain.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		RetrievedAt:  retrievedAt,
	}
	switch {
	case token.ExpiresIn > 0:
		tokens.ExpiresIn = time.Duration(token.ExpiresIn) * time.Second
	case !token.Expiry.IsZero():
		tokens.ExpiresIn = token.Expiry.Sub(retrievedAt).Round(time.Second)
	}
	return tokens, nil
}

// isRevoked reports whether the token endpoint rejected the refresh token itself.
func isRevoked(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	if retrieveErr.ErrorCode != "" {
		return retrieveErr.ErrorCode == "invalid_grant"
	}
	if retrieveErr.Response == nil {
		return false
	}
	return retrieveErr.Response.StatusCode == http.StatusBadRequest ||
		retrieveErr.Response.StatusCode == http.StatusUnauthorized
}
