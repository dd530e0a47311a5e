package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/jira"
)

// maxResults accepts either a JSON integer or a numeric string.
type maxResults int

func (m *maxResults) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("maxResults must be a positive integer, got %s", b)
	}
	*m = maxResults(n)
	return nil
}

func (m maxResults) orDefault() int {
	if m <= 0 {
		return jira.DefaultMaxResults
	}
	return int(m)
}

// transitionID accepts either a string or an integer id.
type transitionID string

func (t *transitionID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = transitionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("transitionId must be a string or integer")
	}
	*t = transitionID(n.String())
	return nil
}

type searchIssuesRequest struct {
	JQL        string     `json:"jql"`
	MaxResults maxResults `json:"maxResults"`
}

type issueKeyRequest struct {
	IssueKey string `json:"issueKey"`
}

type projectKeyRequest struct {
	ProjectKey string `json:"projectKey"`
}

type createIssueRequest struct {
	ProjectKey  string  `json:"projectKey"`
	IssueType   string  `json:"issueType"`
	Summary     string  `json:"summary"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
}

func (r createIssueRequest) fields() jira.IssueFields {
	summary := r.Summary
	return jira.IssueFields{
		ProjectKey:  r.ProjectKey,
		IssueType:   r.IssueType,
		Summary:     &summary,
		Description: nonEmpty(r.Description),
		Priority:    nonEmpty(r.Priority),
	}
}

type updateIssueRequest struct {
	IssueKey    string  `json:"issueKey"`
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
}

// fields keeps only the provided, non-blank properties.
func (r updateIssueRequest) fields() jira.IssueFields {
	return jira.IssueFields{
		Summary:     nonEmpty(r.Summary),
		Description: nonEmpty(r.Description),
		Priority:    nonEmpty(r.Priority),
	}
}

type transitionIssueRequest struct {
	IssueKey     string       `json:"issueKey"`
	TransitionID transitionID `json:"transitionId"`
}

type pageRequest struct {
	MaxResults maxResults `json:"maxResults"`
}

type addCommentRequest struct {
	IssueKey string `json:"issueKey"`
	Comment  string `json:"comment"`
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// myIssuesJQL builds the assignee query for the session's email.
func myIssuesJQL(email string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(email)
	return `assignee = "` + escaped + `" ORDER BY updated DESC`
}

const recentIssuesJQL = "ORDER BY updated DESC"
