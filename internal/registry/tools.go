package registry

import "encoding/json"

// Tool names.
const (
	SearchIssues        = "search_issues"
	GetIssue            = "get_issue"
	CreateIssue         = "create_issue"
	UpdateIssue         = "update_issue"
	GetIssueTransitions = "get_issue_transitions"
	TransitionIssue     = "transition_issue"
	GetProjects         = "get_projects"
	GetProject          = "get_project"
	GetMyIssues         = "get_my_issues"
	GetRecentIssues     = "get_recent_issues"
	AddComment          = "add_comment"
)

const (
	maxResultsProp = `"maxResults": {"type": ["integer", "string"], "minimum": 1, "pattern": "^[0-9]+$", "description": "Maximum number of issues to return (default 50)"}`
	issueKeyProp   = `"issueKey": {"type": "string", "description": "Issue key, e.g. PROJ-123"}`
	projectKeyProp = `"projectKey": {"type": "string", "description": "Project key, e.g. PROJ"}`
)

func schema(props string, required ...string) json.RawMessage {
	req, _ := json.Marshal(required)
	return json.RawMessage(`{"type": "object", "properties": {` + props + `}, "required": ` + string(req) + `, "additionalProperties": false}`)
}

func defaultTools() []Tool {
	tool := func(name, category, desc string, props string, required ...string) Tool {
		if required == nil {
			required = []string{}
		}
		return Tool{Name: name, Category: category, Description: desc, InputSchema: schema(props, required...), Required: required}
	}
	return []Tool{
		tool(SearchIssues, "search", "Search for Jira issues using JQL",
			`"jql": {"type": "string", "description": "JQL query string"}, `+maxResultsProp,
			"jql"),
		tool(GetIssue, "issues", "Get details of a specific Jira issue",
			issueKeyProp,
			"issueKey"),
		tool(CreateIssue, "issues", "Create a new Jira issue",
			projectKeyProp+`,
			"issueType": {"type": "string", "description": "Issue type name, e.g. Task, Bug, Story"},
			"summary": {"type": "string", "description": "Issue summary"},
			"description": {"type": "string", "description": "Plain-text description"},
			"priority": {"type": "string", "description": "Priority name, e.g. High"}`,
			"projectKey", "issueType", "summary"),
		tool(UpdateIssue, "issues", "Update an existing Jira issue; only the provided fields change",
			issueKeyProp+`,
			"summary": {"type": "string", "description": "New summary"},
			"description": {"type": "string", "description": "New plain-text description"},
			"priority": {"type": "string", "description": "New priority name"}`,
			"issueKey"),
		tool(GetIssueTransitions, "workflow", "List the workflow transitions available for an issue",
			issueKeyProp,
			"issueKey"),
		tool(TransitionIssue, "workflow", "Move an issue through its workflow using a transition id from get_issue_transitions",
			issueKeyProp+`,
			"transitionId": {"type": ["string", "integer"], "description": "Transition id"}`,
			"issueKey", "transitionId"),
		tool(GetProjects, "projects", "List all accessible Jira projects", ""),
		tool(GetProject, "projects", "Get details of a specific Jira project",
			projectKeyProp,
			"projectKey"),
		tool(GetMyIssues, "search", "Get issues assigned to the current user, most recently updated first",
			maxResultsProp+`,
			"userId": {"type": "string", "description": "Accepted for compatibility; the assignee is always the session's Jira account"}`),
		tool(GetRecentIssues, "search", "Get recently updated issues",
			maxResultsProp),
		tool(AddComment, "comments", "Add a comment to a Jira issue",
			issueKeyProp+`,
			"comment": {"type": "string", "description": "Comment text"}`,
			"issueKey", "comment"),
	}
}

func defaultCategories(tools []Tool) []Category {
	cats := []Category{
		{Name: "search", Description: "Find issues with JQL or by recency", Keywords: []string{"search", "find", "jql", "query", "assigned", "recent", "mine"}},
		{Name: "issues", Description: "Read, create and edit issues", Keywords: []string{"issue", "ticket", "bug", "task", "create", "update", "edit"}},
		{Name: "workflow", Description: "Inspect and apply status transitions", Keywords: []string{"transition", "status", "move", "workflow", "close", "resolve"}},
		{Name: "projects", Description: "Browse projects", Keywords: []string{"project", "projects", "space"}},
		{Name: "comments", Description: "Discuss issues", Keywords: []string{"comment", "note", "reply"}},
	}
	for i := range cats {
		for _, t := range tools {
			if t.Category == cats[i].Name {
				cats[i].Tools = append(cats[i].Tools, t.Name)
			}
		}
	}
	return cats
}
