package jira

// ADF is an Atlassian Document Format node.
type ADF struct {
	Type    string `json:"type"`
	Version int    `json:"version,omitempty"`
	Text    string `json:"text,omitempty"`
	Content []ADF  `json:"content,omitempty"`
}

// DocFromText wraps plain text in a single-paragraph document, the shape
// REST v3 expects for description and comment bodies.
func DocFromText(text string) ADF {
	return ADF{
		Type:    "doc",
		Version: 1,
		Content: []ADF{{
			Type:    "paragraph",
			Content: []ADF{{Type: "text", Text: text}},
		}},
	}
}
