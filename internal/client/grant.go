package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfeidau/polifeed/internal/models"
	"golang.org/x/oauth2"
)

// PasswordGrant exchanges a username and password for a token pair using the
// OAuth2 resource owner password grant. The request is form encoded with
// username, password and grant_type=password, and shares this client's
// transport, cookie jar and timeout. Failures are returned as *APIError.
func (c *Client) PasswordGrant(ctx context.Context, endpoint, username, password string) (*models.TokenPair, error) {
	started := time.Now()

	pair, err := c.passwordGrant(ctx, endpoint, username, password)

	status := http.StatusOK
	if apiErr, ok := AsAPIError(err); ok {
		status = apiErr.Status
	} else if err != nil {
		status = 0
	}
	recordRequest(ctx, http.MethodPost, status, err, time.Since(started))

	return pair, err
}

func (c *Client) passwordGrant(ctx context.Context, endpoint, username, password string) (*models.TokenPair, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, errRequestTimeout)
	defer cancel()

	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.url(endpoint),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	tok, err := conf.PasswordCredentialsToken(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), username, password)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			return nil, errorFromBody(rErr.Response.StatusCode, rErr.Response.Status, rErr.Body)
		}
		return nil, c.normalize(ctx, err)
	}

	return &models.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    strings.ToLower(tok.TokenType),
	}, nil
}
