package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/logging"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/registry"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/testutil"
)

const (
	testEmail = "dev@acme.io"
	testToken = "atl-secret-token-0123456789"
)

func setup(t *testing.T) (*Dispatcher, *testutil.FakeJira, session.Session) {
	t.Helper()
	fake := testutil.NewFakeJira(t, testEmail, testToken)
	d := NewDispatcher(registry.New(), jira.NewHTTPClient(5*time.Second, 0), WithLogger(logging.Discard()))
	sess := session.Session{
		ID:          "sess_1",
		UserID:      "u1",
		JiraBaseURL: fake.URL,
		Email:       testEmail,
		APIToken:    testToken,
	}
	return d, fake, sess
}

func dispatch(t *testing.T, d *Dispatcher, sess session.Session, name, args string) (map[string]any, error) {
	t.Helper()
	raw, err := d.Dispatch(context.Background(), sess, name, json.RawMessage(args))
	if err != nil {
		return nil, err
	}
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out, nil
}

func TestUnknownToolMakesNoCall(t *testing.T) {
	d, fake, sess := setup(t)

	_, err := dispatch(t, d, sess, "delete_everything", `{}`)
	ae := apierr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apierr.KindUnknownTool, ae.Kind)
	assert.Equal(t, http.StatusBadRequest, ae.HTTPStatus())
	assert.Empty(t, fake.Calls())
}

func TestMissingArgumentMakesNoCall(t *testing.T) {
	d, fake, sess := setup(t)

	tests := []struct {
		tool  string
		args  string
		field string
	}{
		{registry.GetIssue, `{}`, "issueKey"},
		{registry.GetIssue, ``, "issueKey"},
		{registry.GetIssue, `{"issueKey": null}`, "issueKey"},
		{registry.GetIssue, `{"issueKey": "  "}`, "issueKey"},
		{registry.SearchIssues, `{"maxResults": 5}`, "jql"},
		{registry.CreateIssue, `{"projectKey": "DEMO", "summary": "x"}`, "issueType"},
		{registry.TransitionIssue, `{"issueKey": "DEMO-1"}`, "transitionId"},
		{registry.AddComment, `{"issueKey": "DEMO-1", "comment": ""}`, "comment"},
	}
	for _, tt := range tests {
		t.Run(tt.tool+"/"+tt.field, func(t *testing.T) {
			_, err := dispatch(t, d, sess, tt.tool, tt.args)
			ae := apierr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, apierr.KindMissingArgument, ae.Kind)
			assert.Equal(t, tt.field, ae.Field)
			assert.Contains(t, ae.Error(), "missing required argument: "+tt.field)
		})
	}
	assert.Empty(t, fake.Calls())
}

func TestSchemaViolationsMakeNoCall(t *testing.T) {
	d, fake, sess := setup(t)

	tests := []struct {
		name, tool, args string
	}{
		{"wrong type", registry.GetIssue, `{"issueKey": 42}`},
		{"unknown property", registry.GetProjects, `{"verbose": true}`},
		{"non-numeric maxResults", registry.GetRecentIssues, `{"maxResults": "lots"}`},
		{"zero maxResults", registry.GetRecentIssues, `{"maxResults": 0}`},
		{"not an object", registry.GetProjects, `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dispatch(t, d, sess, tt.tool, tt.args)
			ae := apierr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, apierr.KindValidation, ae.Kind)
			assert.Equal(t, tt.tool, ae.Tool)
		})
	}
	assert.Empty(t, fake.Calls())
}

func TestSearchIssuesMaxResults(t *testing.T) {
	d, fake, sess := setup(t)

	out, err := dispatch(t, d, sess, registry.SearchIssues, `{"jql": "project = DEMO"}`)
	require.NoError(t, err)
	assert.EqualValues(t, 50, out["maxResults"])

	out, err = dispatch(t, d, sess, registry.SearchIssues, `{"jql": "project = DEMO", "maxResults": "7"}`)
	require.NoError(t, err)
	assert.EqualValues(t, 7, out["maxResults"])
	assert.Equal(t, "project = DEMO", out["jql"])

	assert.Equal(t, 2, fake.CallCount(http.MethodGet, "/rest/api/3/search/jql"))
}

func TestGetMyIssuesUsesSessionEmail(t *testing.T) {
	d, fake, sess := setup(t)

	_, err := dispatch(t, d, sess, registry.GetMyIssues, `{"maxResults": 10}`)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	q, err := url.ParseQuery(calls[0].Query)
	require.NoError(t, err)
	assert.Equal(t, `assignee = "dev@acme.io" ORDER BY updated DESC`, q.Get("jql"))
	assert.Equal(t, "10", q.Get("maxResults"))
}

func TestGetMyIssuesIgnoresUserIDArgument(t *testing.T) {
	d, fake, sess := setup(t)

	_, err := dispatch(t, d, sess, registry.GetMyIssues, `{"userId": "someone-else"}`)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	q, err := url.ParseQuery(calls[0].Query)
	require.NoError(t, err)
	assert.Equal(t, `assignee = "dev@acme.io" ORDER BY updated DESC`, q.Get("jql"))
	assert.NotContains(t, calls[0].Query, "someone-else")
}

func TestGetRecentIssues(t *testing.T) {
	d, fake, sess := setup(t)

	_, err := dispatch(t, d, sess, registry.GetRecentIssues, ``)
	require.NoError(t, err)

	q, err := url.ParseQuery(fake.Calls()[0].Query)
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY updated DESC", q.Get("jql"))
	assert.Equal(t, "50", q.Get("maxResults"))
}

func TestCreateIssuePostsThenFetches(t *testing.T) {
	d, fake, sess := setup(t)

	out, err := dispatch(t, d, sess, registry.CreateIssue,
		`{"projectKey": "DEMO", "issueType": "Bug", "summary": "Broken login", "description": "It fails", "priority": "High"}`)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, "/rest/api/3/issue", calls[0].Path)
	assert.Equal(t, http.MethodGet, calls[1].Method)

	key, _ := out["key"].(string)
	require.Equal(t, "DEMO-2", key)
	assert.Equal(t, "/rest/api/3/issue/"+key, calls[1].Path)

	// Server-assigned values only present in the fetched issue.
	stored, ok := fake.Issue(key)
	require.True(t, ok)
	assert.Equal(t, "10002", out["id"])
	fields, _ := out["fields"].(map[string]any)
	require.NotNil(t, fields)
	assert.Equal(t, "Broken login", fields["summary"])
	assert.NotEmpty(t, fields["created"])
	assert.Equal(t, stored["created"], fields["created"])
	assert.Equal(t, stored["updated"], fields["updated"])

	var posted struct {
		Fields map[string]json.RawMessage `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(calls[0].Body, &posted))
	assert.JSONEq(t, `{"key":"DEMO"}`, string(posted.Fields["project"]))
	assert.JSONEq(t, `{"name":"Bug"}`, string(posted.Fields["issuetype"]))
	assert.JSONEq(t, `{"name":"High"}`, string(posted.Fields["priority"]))
	assert.JSONEq(t, `{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"It fails"}]}]}`, string(posted.Fields["description"]))
}

func TestCreateIssueRefetchFailureIsReported(t *testing.T) {
	d, fake, sess := setup(t)
	fake.Fail(http.MethodGet, "/rest/api/3/issue/DEMO-2", http.StatusInternalServerError, `{"errorMessages":["boom"]}`)

	_, err := dispatch(t, d, sess, registry.CreateIssue, `{"projectKey": "DEMO", "issueType": "Task", "summary": "x"}`)
	ae := apierr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apierr.KindToolExecution, ae.Kind)

	// The issue was created and stays created.
	_, ok := fake.Issue("DEMO-2")
	assert.True(t, ok)
}

func TestUpdateIssueSendsOnlyProvidedFields(t *testing.T) {
	d, fake, sess := setup(t)
	before, _ := fake.Issue("DEMO-1")
	created, updated := before["created"], before["updated"]

	out, err := dispatch(t, d, sess, registry.UpdateIssue, `{"issueKey": "DEMO-1", "summary": "Renamed"}`)
	require.NoError(t, err)
	assert.Equal(t, "10001", out["id"])
	assert.Equal(t, "DEMO-1", out["key"])
	fields, _ := out["fields"].(map[string]any)
	assert.Equal(t, "Renamed", fields["summary"])
	assert.Equal(t, created, fields["created"])
	assert.NotEqual(t, updated, fields["updated"])
	assert.NotEmpty(t, fields["updated"])

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPut, calls[0].Method)
	assert.JSONEq(t, `{"fields":{"summary":"Renamed"}}`, string(calls[0].Body))
	assert.Equal(t, http.MethodGet, calls[1].Method)
}

func TestUpdateIssueWithNothingToChange(t *testing.T) {
	d, fake, sess := setup(t)

	_, err := dispatch(t, d, sess, registry.UpdateIssue, `{"issueKey": "DEMO-1"}`)
	ae := apierr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apierr.KindValidation, ae.Kind)
	assert.Equal(t, registry.UpdateIssue, ae.Tool)
	assert.Empty(t, fake.Calls())
}

func TestTransitionIssue(t *testing.T) {
	d, fake, sess := setup(t)

	out, err := dispatch(t, d, sess, registry.TransitionIssue, `{"issueKey": "DEMO-1", "transitionId": 31}`)
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "31", out["transitionId"])

	fields, _ := fake.Issue("DEMO-1")
	assert.Equal(t, map[string]any{"name": "Done"}, fields["status"])
}

func TestTransitionRejectionIsToolError(t *testing.T) {
	d, _, sess := setup(t)

	_, err := dispatch(t, d, sess, registry.TransitionIssue, `{"issueKey": "DEMO-1", "transitionId": "999"}`)
	ae := apierr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apierr.KindToolExecution, ae.Kind)
	assert.Equal(t, http.StatusBadRequest, ae.RemoteStatus)
	assert.Equal(t, http.StatusInternalServerError, ae.HTTPStatus())
	assert.Contains(t, ae.Error(), "not valid for this issue")
}

func TestAddCommentIsADF(t *testing.T) {
	d, fake, sess := setup(t)

	_, err := dispatch(t, d, sess, registry.AddComment, `{"issueKey": "DEMO-1", "comment": "ship it"}`)
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/rest/api/3/issue/DEMO-1/comment", calls[0].Path)
	assert.JSONEq(t, `{"body":{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"ship it"}]}]}}`, string(calls[0].Body))
}

func TestProjectsAndTransitions(t *testing.T) {
	d, _, sess := setup(t)
	ctx := context.Background()

	raw, err := d.Dispatch(ctx, sess, registry.GetProjects, nil)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"DEMO"`)

	raw, err = d.Dispatch(ctx, sess, registry.GetProject, json.RawMessage(`{"projectKey": "DEMO"}`))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Demo project")

	raw, err = d.Dispatch(ctx, sess, registry.GetIssueTransitions, json.RawMessage(`{"issueKey": "DEMO-1"}`))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "transitions")
}

func TestRemoteErrorIsRedacted(t *testing.T) {
	d, fake, sess := setup(t)
	d = NewDispatcher(registry.New(), jira.NewHTTPClient(5*time.Second, 0),
		WithLogger(logging.Discard()), WithSecrets("jwt-signing-secret-value"))

	basic := apierr.BasicAuthSecret(testEmail, testToken)
	fake.Fail(http.MethodGet, "/rest/api/3/issue/DEMO-1", http.StatusBadGateway,
		`{"errorMessages":["upstream rejected token `+testToken+` header Basic `+basic+` secret jwt-signing-secret-value"]}`)

	_, err := dispatch(t, d, sess, registry.GetIssue, `{"issueKey": "DEMO-1"}`)
	ae := apierr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apierr.KindToolExecution, ae.Kind)
	assert.Equal(t, http.StatusBadGateway, ae.RemoteStatus)
	assert.Equal(t, registry.GetIssue, ae.Tool)

	msg := ae.Error()
	assert.NotContains(t, msg, testToken)
	assert.NotContains(t, msg, basic)
	assert.NotContains(t, msg, "jwt-signing-secret-value")
	assert.True(t, strings.Contains(msg, "[REDACTED]"))
}

func TestWrongCredentialsSurfaceAsToolError(t *testing.T) {
	d, _, sess := setup(t)
	sess.APIToken = "revoked-token-value"

	_, err := dispatch(t, d, sess, registry.GetProjects, `{}`)
	ae := apierr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apierr.KindToolExecution, ae.Kind)
	assert.Equal(t, http.StatusUnauthorized, ae.RemoteStatus)
}

func TestCatalogSchemasCompile(t *testing.T) {
	catalog := registry.New()
	schemas, err := compileArgSchemas(catalog)
	require.NoError(t, err)
	assert.Len(t, schemas, catalog.Len())

	err = schemas.check(registry.GetIssue, map[string]any{"issueKey": "DEMO-1", "extra": true})
	var sv *schemaViolation
	require.ErrorAs(t, err, &sv)
	assert.Contains(t, sv.message, "extra")

	assert.NoError(t, schemas.check("not_a_tool", map[string]any{}))
}
