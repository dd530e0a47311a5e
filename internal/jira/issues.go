package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultMaxResults is used when a search does not specify a page size.
const DefaultMaxResults = 50

const searchFields = "*navigable"

// Myself returns the user the credentials belong to.
func (c *Client) Myself(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/myself", nil)
}

// ListProjects returns every project visible to the user.
func (c *Client) ListProjects(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/project", nil)
}

func (c *Client) GetProject(ctx context.Context, projectKey string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/project/"+url.PathEscape(projectKey), nil)
}

// SearchIssues runs a JQL query through the enhanced search endpoint. That
// endpoint returns only issue ids unless fields are requested.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) (json.RawMessage, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("fields", searchFields)
	return c.getJSON(ctx, "/search/jql", q)
}

func (c *Client) GetIssue(ctx context.Context, issueKey string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/issue/"+url.PathEscape(issueKey), nil)
}

// IssueFields is the subset of issue fields the gateway writes. Nil pointers
// are omitted from the request.
type IssueFields struct {
	ProjectKey  string
	IssueType   string
	Summary     *string
	Description *string
	Priority    *string
}

func (f IssueFields) payload() map[string]any {
	fields := map[string]any{}
	if f.ProjectKey != "" {
		fields["project"] = map[string]string{"key": f.ProjectKey}
	}
	if f.IssueType != "" {
		fields["issuetype"] = map[string]string{"name": f.IssueType}
	}
	if f.Summary != nil {
		fields["summary"] = *f.Summary
	}
	if f.Description != nil {
		fields["description"] = DocFromText(*f.Description)
	}
	if f.Priority != nil {
		fields["priority"] = map[string]string{"name": *f.Priority}
	}
	return fields
}

// Empty reports whether no field would be written.
func (f IssueFields) Empty() bool { return len(f.payload()) == 0 }

// CreatedIssue is Jira's answer to an issue create.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// CreateIssue creates an issue and returns its key.
func (c *Client) CreateIssue(ctx context.Context, fields IssueFields) (CreatedIssue, error) {
	_, b, err := c.do(ctx, http.MethodPost, "/issue", nil, map[string]any{"fields": fields.payload()})
	if err != nil {
		return CreatedIssue{}, err
	}
	var created CreatedIssue
	if err := json.Unmarshal(b, &created); err != nil {
		return CreatedIssue{}, fmt.Errorf("decoding create response: %w", err)
	}
	if created.Key == "" {
		return CreatedIssue{}, errors.New("create response carried no issue key")
	}
	return created, nil
}

// UpdateIssue writes only the non-nil fields.
func (c *Client) UpdateIssue(ctx context.Context, issueKey string, fields IssueFields) error {
	_, _, err := c.do(ctx, http.MethodPut, "/issue/"+url.PathEscape(issueKey), nil, map[string]any{"fields": fields.payload()})
	return err
}

func (c *Client) GetTransitions(ctx context.Context, issueKey string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/issue/"+url.PathEscape(issueKey)+"/transitions", nil)
}

// TransitionIssue applies a workflow transition. Jira decides whether the
// transition is legal for the issue's current status.
func (c *Client) TransitionIssue(ctx context.Context, issueKey, transitionID string) error {
	payload := map[string]any{"transition": map[string]string{"id": transitionID}}
	_, _, err := c.do(ctx, http.MethodPost, "/issue/"+url.PathEscape(issueKey)+"/transitions", nil, payload)
	return err
}

func (c *Client) GetComments(ctx context.Context, issueKey string) (json.RawMessage, error) {
	return c.getJSON(ctx, "/issue/"+url.PathEscape(issueKey)+"/comment", nil)
}

// AddComment posts text as an ADF comment body.
func (c *Client) AddComment(ctx context.Context, issueKey, text string) (json.RawMessage, error) {
	_, b, err := c.do(ctx, http.MethodPost, "/issue/"+url.PathEscape(issueKey)+"/comment", nil, map[string]any{"body": DocFromText(text)})
	if err != nil {
		return nil, err
	}
	return asJSON(b), nil
}
