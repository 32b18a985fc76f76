// Package fetch performs HTTP round trips against upstream APIs and turns
// their failure bodies into short, readable messages.
package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for upstream requests.
const DefaultUserAgent = "Molly/1.0"

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 8 << 20

// maxDescription bounds the message derived from a failure body.
const maxDescription = 300

// Result holds a completed response.
type Result struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// OK reports whether the response has a 2xx status.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Error represents a failed round trip. StatusCode is zero when no response
// was received.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("request to %s failed: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("request to %s failed: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures a round trip.
type Options struct {
	Client       *http.Client
	UserAgent    string
	MaxBodyBytes int64
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Client:       &http.Client{Timeout: DefaultTimeout},
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func (o *Options) withDefaults() *Options {
	d := DefaultOptions()
	if o == nil {
		return d
	}
	if o.Client != nil {
		d.Client = o.Client
	}
	if o.UserAgent != "" {
		d.UserAgent = o.UserAgent
	}
	if o.MaxBodyBytes > 0 {
		d.MaxBodyBytes = o.MaxBodyBytes
	}
	return d
}

// Do executes req and reads its body. A non-2xx status returns both the
// Result and an *Error whose message describes the body.
func Do(req *http.Request, opts *Options) (*Result, error) {
	opts = opts.withDefaults()
	urlStr := redact(req.URL.String())

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBodyBytes))
	if err != nil {
		return nil, &Error{URL: urlStr, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if !result.OK() {
		msg := fmt.Sprintf("HTTP status %d", resp.StatusCode)
		if desc := DescribeBody(result.ContentType, body); desc != "" {
			msg += ": " + desc
		}
		return result, &Error{URL: urlStr, StatusCode: resp.StatusCode, Message: msg}
	}

	return result, nil
}

// DescribeBody reduces an upstream response body to a single short message.
// JSON error envelopes yield their message field, HTML pages their visible
// text, anything else its trimmed content.
func DescribeBody(contentType string, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var desc string
	switch {
	case strings.Contains(contentType, "json") || json.Valid(body):
		desc = describeJSON(body)
	case strings.Contains(contentType, "html") || bytes.HasPrefix(body, []byte("<")):
		text, err := ExtractMainText(string(body))
		if err == nil {
			desc = strings.ReplaceAll(text, "\n", " ")
		}
	}
	if desc == "" {
		desc = string(body)
	}
	return truncate(desc, maxDescription)
}

func describeJSON(body []byte) string {
	var envelope struct {
		Error        json.RawMessage `json:"error"`
		Message      string          `json:"message"`
		ErrorMessage string          `json:"errorMessage"`
		Description  string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if json.Unmarshal(envelope.Error, &s) == nil && s != "" {
			if envelope.Description != "" {
				return s + ": " + envelope.Description
			}
			return s
		}
	}
	for _, s := range []string{envelope.ErrorMessage, envelope.Message, envelope.Description} {
		if s != "" {
			return s
		}
	}
	return ""
}

// ExtractMainText parses HTML and returns its visible text, preferring the
// main content region over the whole body.
func ExtractMainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript").Remove()

	var content *goquery.Selection
	for _, selector := range []string{"main", "article", "#content", ".content", "h1, p"} {
		if selection := doc.Find(selector); selection.Length() > 0 {
			content = selection
			break
		}
	}
	if content == nil {
		content = doc.Find("body")
	}

	parts := content.Map(func(_ int, sel *goquery.Selection) string {
		return sel.Text()
	})
	return cleanWhitespace(strings.Join(parts, "\n")), nil
}

// cleanWhitespace trims every line and drops empty ones.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// redact strips query strings, which may carry access tokens.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
