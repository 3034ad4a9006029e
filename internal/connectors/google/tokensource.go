package google

import (
	"golang.org/x/oauth2"
)

// NewTokenSource creates an oauth2.TokenSource for a fixed access token.
// Refreshing the token is left to whoever issued it.
func NewTokenSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
}
