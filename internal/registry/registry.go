// Package registry is the fixed catalog of Jira tools the gateway exposes.
package registry

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/golovatskygroup/jira-mcp-gateway/pkg/mcp"
)

// Tool describes one dispatchable operation.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Required    []string        `json:"required"`
}

// Category groups related tools for listing and search.
type Category struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
	Tools       []string `json:"tools"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	tools      []Tool
	byName     map[string]Tool
	categories []Category
}

// New returns the gateway's tool catalog.
func New() *Catalog {
	c := &Catalog{
		tools:  defaultTools(),
		byName: make(map[string]Tool),
	}
	for _, t := range c.tools {
		c.byName[t.Name] = t
	}
	c.categories = defaultCategories(c.tools)
	return c
}

// Lookup returns the tool named name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Tools returns every tool in declaration order.
func (c *Catalog) Tools() []Tool {
	return append([]Tool(nil), c.tools...)
}

func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

func (c *Catalog) Len() int { return len(c.tools) }

// MCPTools converts the catalog to MCP tool descriptors for tools/list.
func (c *Catalog) MCPTools() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, mcp.Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

// Search ranks tools against query. An empty query lists the category (or
// everything) in declaration order.
func (c *Catalog) Search(query, category string, limit int) []Tool {
	if limit <= 0 {
		limit = len(c.tools)
	}
	query = strings.ToLower(strings.TrimSpace(query))

	type scored struct {
		tool  Tool
		score int
		order int
	}
	var results []scored
	for i, t := range c.tools {
		if category != "" && !strings.EqualFold(t.Category, category) {
			continue
		}
		score := 1
		if query != "" {
			score = c.score(t, query)
		}
		if score > 0 {
			results = append(results, scored{tool: t, score: score, order: i})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].order < results[j].order
	})

	out := make([]Tool, 0, min(limit, len(results)))
	for i := 0; i < len(results) && i < limit; i++ {
		out = append(out, results[i].tool)
	}
	return out
}

func (c *Catalog) score(t Tool, query string) int {
	score := 0
	name := strings.ToLower(t.Name)
	desc := strings.ToLower(t.Description)

	if strings.Contains(name, query) {
		score += 100
	}
	if fuzzy.Match(query, name) {
		score += 50
	}
	if strings.Contains(desc, query) {
		score += 30
	}
	for _, cat := range c.categories {
		if cat.Name != t.Category {
			continue
		}
		for _, kw := range cat.Keywords {
			if strings.Contains(query, kw) {
				score += 20
			}
		}
	}
	return score
}
