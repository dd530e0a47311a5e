package tools

import (
	"context"
	"encoding/json"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
)

func decode[T any](args json.RawMessage) (T, error) {
	var req T
	if err := json.Unmarshal(args, &req); err != nil {
		return req, apierr.Validation("arguments", err.Error())
	}
	return req, nil
}

func searchIssues(ctx context.Context, c *jira.Client, _ session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[searchIssuesRequest](args)
	if err != nil {
		return nil, err
	}
	return c.SearchIssues(ctx, req.JQL, req.MaxResults.orDefault())
}

func getIssue(ctx context.Context, c *jira.Client, _ session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[issueKeyRequest](args)
	if err != nil {
		return nil, err
	}
	return c.GetIssue(ctx, req.IssueKey)
}

// createIssue creates the issue and returns the freshly fetched record. A
// failed fetch is reported as-is; the created issue is not rolled back.
func createIssue(ctx context.Context, c *jira.Client, _ session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[createIssueRequest](args)
	if err != nil {
		return nil, err
	}
	created, err := c.CreateIssue(ctx, req.fields())
	if err != nil {
		return nil, err
	}
	return c.GetIssue(ctx, created.Key)
}

func updateIssue(ctx context.Context, c *jira.Client, _ session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[updateIssueRequest](args)
	if err != nil {
		return nil, err
	}
	fields := req.fields()
	if fields.Empty() {
		return nil, apierr.Validation("arguments", "provide at least one of summary, description or priority")
	}
	if err := c.UpdateIssue(ctx, req.IssueKey, fields); err != nil {
		return nil, err
	}
	return c.GetIssue(ctx, req.IssueKey)
}

func getIssueTransitions(ctx context.Context, c *jira.Client, _ session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[issueKeyRequest](args)
	if err != nil {
		return nil, err
	}
	return c.GetTransitions(ctx, req.IssueKey)
}

func transitionIssue(ctx context.Context, c *jira.Client, _ session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[transitionIssueRequest](args)
	if err != nil {
		return nil, err
	}
	if err := c.TransitionIssue(ctx, req.IssueKey, string(req.TransitionID)); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{
		"success":      true,
		"issueKey":     req.IssueKey,
		"transitionId": string(req.TransitionID),
	})
}

func getProjects(ctx context.Context, c *jira.Client, _ session.Session, _ json.RawMessage) (json.RawMessage, error) {
	return c.ListProjects(ctx)
}

func getProject(ctx context.Context, c *jira.Client, _ session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[projectKeyRequest](args)
	if err != nil {
		return nil, err
	}
	return c.GetProject(ctx, req.ProjectKey)
}

func getMyIssues(ctx context.Context, c *jira.Client, sess session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[pageRequest](args)
	if err != nil {
		return nil, err
	}
	return c.SearchIssues(ctx, myIssuesJQL(sess.Email), req.MaxResults.orDefault())
}

func getRecentIssues(ctx context.Context, c *jira.Client, _ session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[pageRequest](args)
	if err != nil {
		return nil, err
	}
	return c.SearchIssues(ctx, recentIssuesJQL, req.MaxResults.orDefault())
}

func addComment(ctx context.Context, c *jira.Client, _ session.Session, args json.RawMessage) (json.RawMessage, error) {
	req, err := decode[addCommentRequest](args)
	if err != nil {
		return nil, err
	}
	return c.AddComment(ctx, req.IssueKey, req.Comment)
}
