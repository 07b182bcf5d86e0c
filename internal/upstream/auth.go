package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// ErrMissingToken is returned when a token reply carries no token anywhere.
var ErrMissingToken = errors.New("upstream: token response did not include an access token")

// RequestToken performs a password grant. Rejections come back as *HTTPError.
func (c *Client) RequestToken(ctx context.Context, form url.Values, clientID string) (TokenGrant, error) {
	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("client_id", clientID)

	r, err := c.do(ctx, http.MethodPost, "/api/token", "application/x-www-form-urlencoded", headers, nil, []byte(form.Encode()))
	if err != nil {
		return TokenGrant{}, err
	}
	return parseTokenReply(r)
}

func parseTokenReply(r *reply) (TokenGrant, error) {
	var tb tokenBody
	if len(strings.TrimSpace(string(r.body))) > 0 {
		// Some deployments return the token only in headers; a body that is not
		// JSON is not an error by itself.
		_ = json.Unmarshal(r.body, &tb)
	}

	grant := TokenGrant{AccessToken: firstNonBlank(tb.AccessToken, tb.AccessTokenCamel, tb.Token)}
	switch {
	case tb.ExpiresIn != 0:
		grant.ExpiresIn = int64(tb.ExpiresIn)
	case tb.ExpiresInCamel != 0:
		grant.ExpiresIn = int64(tb.ExpiresInCamel)
	}

	if grant.AccessToken == "" {
		grant.AccessToken = stripBearer(r.header.Get("Authorization"))
	}
	if grant.AccessToken == "" {
		grant.AccessToken = stripBearer(r.header.Get("Bearer"))
	}
	if grant.AccessToken == "" {
		return TokenGrant{}, ErrMissingToken
	}
	return grant, nil
}

// Logout ends the upstream session for token.
func (c *Client) Logout(ctx context.Context, token string) error {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+token)
	_, err := c.do(ctx, http.MethodGet, "/en/login/logout", "", headers, nil, nil)
	return err
}

func stripBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	return v
}

func firstNonBlank(vs ...string) string {
	for _, v := range vs {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
