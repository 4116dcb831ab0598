package oauth

import (
	"time"

	"golang.org/x/oauth2"
)

// AccessTokenResponse is the wire form of a successful token endpoint
// response according to RFC 6749, section 5.1.
type AccessTokenResponse struct {
	AccessToken  string              `json:"access_token,omitempty" schema:"access_token,omitempty"`
	TokenType    string              `json:"token_type,omitempty" schema:"token_type,omitempty"`
	RefreshToken string              `json:"refresh_token,omitempty" schema:"refresh_token,omitempty"`
	ExpiresIn    uint64              `json:"expires_in,omitempty" schema:"expires_in,omitempty"`
	IDToken      string              `json:"id_token,omitempty" schema:"id_token,omitempty"`
	Scope        SpaceDelimitedArray `json:"scope,omitempty" schema:"scope,omitempty"`
	State        string              `json:"state,omitempty" schema:"state,omitempty"`
}

// Tokens bundles the oauth2 token with the raw identity token and its
// parsed (unverified) claims.
type Tokens struct {
	*oauth2.Token
	IDTokenClaims *IDTokenClaims
	IDToken       string
}

// Token converts the response into an [oauth2.Token], computing the
// absolute expiry from expires_in against the given time.
func (resp *AccessTokenResponse) Token(now time.Time) *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		token.Expiry = now.UTC().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if resp.IDToken != "" {
		token = token.WithExtra(map[string]any{
			"id_token": resp.IDToken,
		})
	}
	return token
}
