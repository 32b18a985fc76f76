package bullhorn

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/wave/molly/internal/credential"
	"github.com/wave/molly/internal/fetch"
)

// DefaultAuthBaseURL is the OAuth server base; /authorize and /token hang off it.
const DefaultAuthBaseURL = "https://auth.bullhornstaffing.com/oauth"

// OAuthConfig holds the registered client settings.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthBaseURL  string
}

// OAuth drives the authorization-code flow.
type OAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuth returns an OAuth flow for cfg. httpClient may be nil.
func NewOAuth(cfg OAuthConfig, httpClient *http.Client) *OAuth {
	base := strings.TrimRight(cfg.AuthBaseURL, "/")
	if base == "" {
		base = DefaultAuthBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetch.DefaultTimeout}
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/authorize",
				TokenURL:  base + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the authorization URL the user is redirected to.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
func (o *OAuth) Exchange(ctx context.Context, code string) (credential.Tokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)

	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		e := &Error{Op: "token exchange", URL: o.config.Endpoint.TokenURL, Message: "exchange failed", Cause: err}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			e.StatusCode = retrieveErr.Response.StatusCode
			if desc := fetch.DescribeBody(retrieveErr.Response.Header.Get("Content-Type"), retrieveErr.Body); desc != "" {
				e.Message = desc
			}
		}
		return credential.Tokens{}, e
	}
	if token.AccessToken == "" {
		return credential.Tokens{}, &Error{Op: "token exchange", URL: o.config.Endpoint.TokenURL, Message: "response missing access_token"}
	}

	return credential.Tokens{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}

// Connect completes the flow: it exchanges code, logs in with the new access
// token and stores the resulting material.
func (o *OAuth) Connect(ctx context.Context, code string, login credential.Loginer, store *credential.Store, now time.Time) error {
	tokens, err := o.Exchange(ctx, code)
	if err != nil {
		return err
	}

	session, err := login.Login(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}

	store.Authorize(tokens, session, now)
	return nil
}
