package httpapi

import (
	"net/http"
	"strconv"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
)

// ListTools describes the catalog. ?q= ranks by fuzzy relevance, ?category=
// narrows to one group and ?limit= caps the result.
func (a *API) ListTools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			a.writeError(w, apierr.Validation("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	catalog := a.dispatcher.Catalog()
	found := catalog.Search(q.Get("q"), q.Get("category"), limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":      found,
		"categories": catalog.Categories(),
		"count":      len(found),
	})
}
