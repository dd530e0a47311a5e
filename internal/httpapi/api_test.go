package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/auth"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/logging"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/registry"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/testutil"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/tools"
)

const (
	testEmail  = "dev@acme.io"
	testToken  = "atl-secret-token-0123456789"
	testSecret = "jwt-signing-secret-for-tests"
)

type harness struct {
	api   *API
	srv   *httptest.Server
	fake  *testutil.FakeJira
	store *session.MemoryStore
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	fake := testutil.NewFakeJira(t, testEmail, testToken)
	store := session.NewMemoryStore()
	authn := auth.NewAuthenticator(auth.NewIssuer([]byte(testSecret), time.Hour), store)
	d := tools.NewDispatcher(registry.New(), jira.NewHTTPClient(5*time.Second, 0),
		tools.WithLogger(logging.Discard()),
		tools.WithSecrets(testSecret),
	)
	opts = append([]Option{WithLogger(logging.Discard()), WithSecrets(testSecret)}, opts...)
	api := New(store, authn, jira.NewValidator(5*time.Second), d, opts...)

	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &harness{api: api, srv: srv, fake: fake, store: store}
}

type response struct {
	status int
	header http.Header
	raw    string
	body   map[string]any
}

func (h *harness) do(t *testing.T, method, path, token, body string, headers ...string) response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, header: resp.Header, raw: string(b)}
	_ = json.Unmarshal(b, &out.body)
	return out
}

func (h *harness) login(t *testing.T, userID string) (token, sessionID string) {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/auth/token", "", tokenBody(userID, h.fake.URL, testEmail, testToken))
	require.Equal(t, http.StatusOK, resp.status, resp.raw)
	return resp.body["token"].(string), resp.body["sessionId"].(string)
}

func tokenBody(userID, jiraURL, email, apiToken string) string {
	b, _ := json.Marshal(map[string]string{
		"userId":   userID,
		"jiraUrl":  jiraURL,
		"email":    email,
		"apiToken": apiToken,
	})
	return string(b)
}

func TestIssueToken(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/auth/token", "", tokenBody("u1", h.fake.URL+"/", testEmail, testToken))
	require.Equal(t, http.StatusOK, resp.status, resp.raw)

	assert.NotEmpty(t, resp.body["token"])
	assert.True(t, strings.HasPrefix(resp.body["sessionId"].(string), "sess_"))
	assert.EqualValues(t, 3600, resp.body["expiresIn"])
	assert.NotEmpty(t, resp.body["message"])
	assert.Equal(t, 1, h.fake.CallCount(http.MethodGet, "/rest/api/3/project"))

	sess, err := h.store.Get(context.Background(), resp.body["sessionId"].(string))
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, h.fake.URL, sess.JiraBaseURL)
}

func TestIssueTokenValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no body", "", "body"},
		{"not an object", `[1,2]`, "body"},
		{"missing userId", tokenBody("", "https://a.atlassian.net", testEmail, testToken), "userId"},
		{"missing jiraUrl", tokenBody("u1", "", testEmail, testToken), "jiraUrl"},
		{"missing email", tokenBody("u1", "https://a.atlassian.net", " ", testToken), "email"},
		{"missing apiToken", tokenBody("u1", "https://a.atlassian.net", testEmail, ""), "apiToken"},
		{"relative url", tokenBody("u1", "acme.atlassian.net", testEmail, testToken), "jiraUrl"},
		{"ftp url", tokenBody("u1", "ftp://acme.atlassian.net", testEmail, testToken), "jiraUrl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.do(t, http.MethodPost, "/auth/token", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.status, resp.raw)
			assert.Equal(t, tt.field, resp.body["field"])
			assert.Equal(t, "validation_error", resp.body["kind"])
		})
	}
	assert.Empty(t, h.fake.Calls())
	assert.Zero(t, h.store.Len())
}

func TestIssueTokenRejectedCredentials(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/auth/token", "", tokenBody("u1", h.fake.URL, testEmail, "wrong-token-value"))
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "auth_error", resp.body["kind"])
	assert.NotContains(t, resp.raw, "wrong-token-value")
	assert.Equal(t, 1, h.fake.CallCount(http.MethodGet, "/rest/api/3/project"))
	assert.Zero(t, h.store.Len())
}

func TestIssueTokenUnreachableJira(t *testing.T) {
	h := newHarness(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	resp := h.do(t, http.MethodPost, "/auth/token", "", tokenBody("u1", dead.URL, testEmail, testToken))
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Zero(t, h.store.Len())
}

func TestBearerRequired(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.do(t, http.MethodPost, "/mcp/message", tt.token, `{"method":"tools/list"}`)
			assert.Equal(t, http.StatusUnauthorized, resp.status)
			assert.Equal(t, "auth_error", resp.body["kind"])
			assert.NotEmpty(t, resp.header.Get("WWW-Authenticate"))
		})
	}
}

func TestMessageToolsList(t *testing.T) {
	h := newHarness(t)
	token, _ := h.login(t, "u1")

	resp := h.do(t, http.MethodPost, "/mcp/message", token, `{"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, resp.status, resp.raw)
	result := resp.body["result"].(map[string]any)
	assert.Len(t, result["tools"], 11)
}

func TestMessageToolsCall(t *testing.T) {
	h := newHarness(t)
	token, _ := h.login(t, "u1")
	h.fake.Reset()

	resp := h.do(t, http.MethodPost, "/mcp/message", token,
		`{"method":"tools/call","params":{"name":"get_issue","arguments":{"issueKey":"DEMO-1"}}}`)
	require.Equal(t, http.StatusOK, resp.status, resp.raw)
	result := resp.body["result"].(map[string]any)
	assert.Equal(t, "DEMO-1", result["key"])

	calls := h.fake.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Auth, "Basic ")
}

func TestMessageErrors(t *testing.T) {
	h := newHarness(t)
	token, _ := h.login(t, "u1")

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"unknown tool", `{"method":"tools/call","params":{"name":"drop_db"}}`, http.StatusBadRequest, "unknown_tool"},
		{"missing argument", `{"method":"tools/call","params":{"name":"get_issue","arguments":{}}}`, http.StatusBadRequest, "missing_argument"},
		{"missing params", `{"method":"tools/call"}`, http.StatusBadRequest, "validation_error"},
		{"unsupported method", `{"method":"resources/list"}`, http.StatusBadRequest, "validation_error"},
		{"no method", `{}`, http.StatusBadRequest, "validation_error"},
		{"remote 404", `{"method":"tools/call","params":{"name":"get_issue","arguments":{"issueKey":"NOPE-9"}}}`, http.StatusInternalServerError, "tool_execution_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.do(t, http.MethodPost, "/mcp/message", token, tt.body)
			assert.Equal(t, tt.status, resp.status, resp.raw)
			assert.Equal(t, tt.kind, resp.body["kind"])
			assert.NotContains(t, resp.raw, testToken)
			assert.NotContains(t, resp.raw, testSecret)
		})
	}
}

func TestMessageIdentityHeaderMismatch(t *testing.T) {
	h := newHarness(t)
	token, _ := h.login(t, "u1")
	h.fake.Reset()

	resp := h.do(t, http.MethodPost, "/mcp/message", token, `{"method":"tools/list"}`, "x-user-id", "someone-else")
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = h.do(t, http.MethodPost, "/mcp/message", token,
		`{"method":"tools/call","params":{"name":"get_projects"}}`,
		"x-jira-url", "https://evil.atlassian.net")
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Empty(t, h.fake.Calls())

	resp = h.do(t, http.MethodPost, "/mcp/message", token, `{"method":"tools/list"}`,
		"x-user-id", "u1", "x-jira-url", h.fake.URL+"/")
	assert.Equal(t, http.StatusOK, resp.status, resp.raw)
}

func TestLogoutRevokesToken(t *testing.T) {
	h := newHarness(t)
	token, sessionID := h.login(t, "u1")

	resp := h.do(t, http.MethodPost, "/auth/logout", token, "")
	require.Equal(t, http.StatusOK, resp.status, resp.raw)
	assert.Equal(t, sessionID, resp.body["sessionId"])

	resp = h.do(t, http.MethodPost, "/mcp/message", token, `{"method":"tools/list"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "session expired or revoked", resp.body["error"])
}

func TestSessionsListAndDelete(t *testing.T) {
	h := newHarness(t)
	token1, _ := h.login(t, "u1")
	token2, session2 := h.login(t, "u2")

	resp := h.do(t, http.MethodGet, "/sessions", token1, "")
	require.Equal(t, http.StatusOK, resp.status, resp.raw)
	assert.EqualValues(t, 2, resp.body["count"])
	assert.NotContains(t, resp.raw, testToken)
	assert.NotContains(t, resp.raw, testEmail)

	resp = h.do(t, http.MethodGet, "/sessions?userId=u2", token1, "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.EqualValues(t, 1, resp.body["count"])
	sessions := resp.body["sessions"].([]any)
	first := sessions[0].(map[string]any)
	assert.Equal(t, session2, first["sessionId"])
	assert.Contains(t, first, "createdAt")
	assert.Contains(t, first, "lastAccess")

	resp = h.do(t, http.MethodDelete, "/sessions/sess_missing", token1, "")
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "not_found", resp.body["kind"])

	resp = h.do(t, http.MethodDelete, "/sessions/"+session2, token1, "")
	assert.Equal(t, http.StatusOK, resp.status)

	resp = h.do(t, http.MethodGet, "/sessions", token2, "")
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, 1, h.store.Len())
}

func TestHealth(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	h := newHarness(t)
	h.api.now = func() time.Time { return now }
	h.login(t, "u1")

	resp := h.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "healthy", resp.body["status"])
	assert.Equal(t, "multitenant", resp.body["mode"])
	assert.Equal(t, "2025-06-01T09:30:00Z", resp.body["timestamp"])
	assert.EqualValues(t, 1, resp.body["activeSessions"])
}

func TestToolsCatalog(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/tools", "", "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.EqualValues(t, 11, resp.body["count"])
	assert.NotEmpty(t, resp.body["categories"])
	first := resp.body["tools"].([]any)[0].(map[string]any)
	assert.Contains(t, first, "inputSchema")
	assert.Contains(t, first, "required")

	resp = h.do(t, http.MethodGet, "/tools?q=transition", "", "")
	require.Equal(t, http.StatusOK, resp.status)
	top := resp.body["tools"].([]any)[0].(map[string]any)
	assert.Contains(t, top["name"], "transition")

	resp = h.do(t, http.MethodGet, "/tools?category=comments", "", "")
	require.Equal(t, http.StatusOK, resp.status)
	assert.EqualValues(t, 1, resp.body["count"])

	resp = h.do(t, http.MethodGet, "/tools?limit=zero", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.status)
}
