// Package jira is a small Jira Cloud REST v3 client bound to one set of
// per-session credentials.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/httpretry"
)

const (
	apiPrefix       = "/rest/api/3"
	userAgent       = "jira-mcp-gateway"
	maxResponseSize = 8 << 20
)

// DefaultTimeout bounds every outbound request.
const DefaultTimeout = 30 * time.Second

// ErrHTMLOrRedirect is wrapped by APIError when Jira answers with a redirect
// or an HTML page (usually a login or maintenance page) instead of JSON.
var ErrHTMLOrRedirect = errors.New("jira api returned html/redirect (likely login page)")

// Credentials identify one Jira Cloud tenant and user.
type Credentials struct {
	BaseURL  string
	Email    string
	APIToken string
}

func (c Credentials) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Email+":"+c.APIToken))
}

// NewHTTPClient returns the client used for all Jira calls. Redirects are not
// followed; Jira answers unauthenticated API calls on some sites with a 302
// to the login page.
func NewHTTPClient(timeout time.Duration, readRetries int) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: httpretry.NewTransport(nil, httpretry.Config{Retries: readRetries}),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Client performs REST calls with one session's credentials.
type Client struct {
	hc    *http.Client
	creds Credentials
}

// New binds hc to creds. hc is shared across sessions; creds are not.
func New(hc *http.Client, creds Credentials) *Client {
	if hc == nil {
		hc = NewHTTPClient(DefaultTimeout, 0)
	}
	creds.BaseURL = strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")
	return &Client{hc: hc, creds: creds}
}

// APIError is a non-2xx, redirect or HTML answer from Jira.
type APIError struct {
	Method   string
	Path     string
	Status   int
	Message  string
	Location string
	Title    string
	Hint     string
	err      error
}

func (e *APIError) Error() string {
	var b strings.Builder
	if errors.Is(e.err, ErrHTMLOrRedirect) {
		fmt.Fprintf(&b, "%s: status=%d", e.err, e.Status)
		if e.Location != "" {
			fmt.Fprintf(&b, " location=%s", e.Location)
		}
		if e.Title != "" {
			fmt.Fprintf(&b, " title=%q", e.Title)
		}
	} else {
		fmt.Fprintf(&b, "jira api error (%d %s)", e.Status, http.StatusText(e.Status))
		if e.Message != "" {
			b.WriteString(": " + e.Message)
		}
	}
	if e.Hint != "" {
		b.WriteString(". " + e.Hint)
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, apiPath string, query url.Values, payload any) (int, []byte, error) {
	u := c.creds.BaseURL + apiPrefix + apiPath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", c.creds.authHeader())

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, apiPath, scrubURLError(err))
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading %s response: %w", apiPath, err)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400,
		strings.Contains(ct, "text/html") || looksLikeHTML(b):
		return resp.StatusCode, b, &APIError{
			Method:   method,
			Path:     apiPath,
			Status:   resp.StatusCode,
			Location: resp.Header.Get("Location"),
			Title:    pageTitle(b),
			Hint:     authHint(resp.StatusCode, b),
			err:      ErrHTMLOrRedirect,
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resp.StatusCode, b, &APIError{
			Method:  method,
			Path:    apiPath,
			Status:  resp.StatusCode,
			Message: errorMessage(b),
			Hint:    authHint(resp.StatusCode, b),
		}
	}
	return resp.StatusCode, b, nil
}

// getJSON performs a GET and returns the body as JSON.
func (c *Client) getJSON(ctx context.Context, apiPath string, query url.Values) (json.RawMessage, error) {
	_, b, err := c.do(ctx, http.MethodGet, apiPath, query, nil)
	if err != nil {
		return nil, err
	}
	return asJSON(b), nil
}

// scrubURLError drops the request URL from transport errors; callers only
// need the cause.
func scrubURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

func asJSON(b []byte) json.RawMessage {
	if len(bytes.TrimSpace(b)) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	raw, _ := json.Marshal(map[string]string{"raw": string(b)})
	return raw
}

// errorMessage extracts Jira's {"errorMessages":[...],"errors":{...}} payload.
func errorMessage(b []byte) string {
	var payload struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
		Message       string            `json:"message"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		s := strings.TrimSpace(string(b))
		if len(s) > 512 {
			s = s[:512] + "..."
		}
		return s
	}
	parts := append([]string(nil), payload.ErrorMessages...)
	fields := make([]string, 0, len(payload.Errors))
	for field := range payload.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		parts = append(parts, field+": "+payload.Errors[field])
	}
	if payload.Message != "" {
		parts = append(parts, payload.Message)
	}
	return strings.Join(parts, "; ")
}

func looksLikeHTML(b []byte) bool {
	s := strings.TrimSpace(strings.ToLower(string(b)))
	if s == "" {
		return false
	}
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html") || (strings.Contains(s, "<html") && strings.Contains(s, "<body"))
}

func authHint(status int, body []byte) string {
	switch status {
	case http.StatusUnauthorized:
		return "Check the session's Jira email and API token"
	case http.StatusForbidden:
		return "The Jira user lacks permission for this operation"
	case http.StatusNotFound:
		return "Issue or project may not exist, or the user cannot see it"
	case http.StatusTooManyRequests:
		return "Jira rate limited the request; retry later"
	default:
		if bytes.Contains(bytes.ToLower(body), []byte("captcha")) {
			return "Jira requires an interactive login to clear a CAPTCHA"
		}
		return ""
	}
}
