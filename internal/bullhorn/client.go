// Package bullhorn talks to the Bullhorn REST API: the OAuth authorization
// code flow, the session login and candidate search.
package bullhorn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wave/molly/internal/credential"
	"github.com/wave/molly/internal/fetch"
)

// DefaultLoginURL is the REST login endpoint that exchanges an access token
// for a session.
const DefaultLoginURL = "https://rest.bullhornstaffing.com/rest-services/login"

// Error represents a failed backend call.
type Error struct {
	Op         string
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bullhorn %s", e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Client calls the login and search endpoints.
type Client struct {
	loginURL string
	opts     *fetch.Options
}

// NewClient returns a client using loginURL. An empty loginURL selects
// DefaultLoginURL; nil opts selects fetch defaults.
func NewClient(loginURL string, opts *fetch.Options) *Client {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	return &Client{loginURL: loginURL, opts: opts}
}

type loginResponse struct {
	BhRestToken string `json:"BhRestToken"`
	RestURL     string `json:"restUrl"`
}

// Login exchanges an access token for a REST session. A response missing
// either the session token or the REST URL is a failure.
func (c *Client) Login(ctx context.Context, accessToken string) (credential.Session, error) {
	q := url.Values{}
	q.Set("version", "2.0")
	q.Set("access_token", accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.loginURL+"?"+q.Encode(), nil)
	if err != nil {
		return credential.Session{}, &Error{Op: "login", URL: c.loginURL, Message: "failed to create request", Cause: err}
	}

	result, err := fetch.Do(req, c.opts)
	if err != nil {
		return credential.Session{}, wrapFetch("login", c.loginURL, err)
	}

	var body loginResponse
	if err := json.Unmarshal(result.Body, &body); err != nil {
		return credential.Session{}, &Error{Op: "login", URL: c.loginURL, StatusCode: result.StatusCode, Message: "invalid response body", Cause: err}
	}
	if body.BhRestToken == "" || body.RestURL == "" {
		return credential.Session{}, &Error{Op: "login", URL: c.loginURL, StatusCode: result.StatusCode, Message: "response missing BhRestToken or restUrl"}
	}

	return credential.Session{Token: body.BhRestToken, BaseURL: body.RestURL}, nil
}

// Search runs a candidate search and returns at most count candidates in
// backend order.
func (c *Client) Search(ctx context.Context, session credential.Session, query string, count int) ([]Candidate, error) {
	endpoint := session.BaseURL + "search/Candidate"

	q := url.Values{}
	q.Set("query", query)
	q.Set("count", strconv.Itoa(count))
	q.Set("start", "0")
	q.Set("fields", SearchFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &Error{Op: "search", URL: endpoint, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("BhRestToken", session.Token)
	req.Header.Set("Accept", "application/json")

	result, err := fetch.Do(req, c.opts)
	if err != nil {
		return nil, wrapFetch("search", endpoint, err)
	}

	var body searchResponse
	if err := json.Unmarshal(result.Body, &body); err != nil {
		return nil, &Error{Op: "search", URL: endpoint, StatusCode: result.StatusCode, Message: "invalid response body", Cause: err}
	}
	if body.Data == nil {
		return nil, &Error{Op: "search", URL: endpoint, StatusCode: result.StatusCode, Message: "response missing data"}
	}

	candidates := make([]Candidate, 0, len(*body.Data))
	for _, raw := range *body.Data {
		candidates = append(candidates, raw.candidate())
	}
	if count > 0 && len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates, nil
}

func wrapFetch(op, endpoint string, err error) error {
	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		return &Error{Op: op, URL: endpoint, StatusCode: fetchErr.StatusCode, Message: fetchErr.Message, Cause: fetchErr.Cause}
	}
	return &Error{Op: op, URL: endpoint, Message: "request failed", Cause: err}
}
