// Package testutil holds test helpers shared across packages.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Call is one request received by FakeJira.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Auth   string
}

// FakeJira is an httptest-backed stand-in for the Jira Cloud REST v3 API.
// It authenticates with HTTP Basic against Email and APIToken, keeps issues
// in memory and records every request.
type FakeJira struct {
	*httptest.Server

	Email    string
	APIToken string

	mu       sync.Mutex
	calls    []Call
	issues   map[string]map[string]any
	ids      map[string]string
	comments map[string][]map[string]any
	projects []map[string]any
	failures map[string]failure
	seq      int
	clock    int
}

type failure struct {
	status int
	body   string
	html   bool
}

const fakeTransitionID = "31"

// NewFakeJira starts a fake seeded with project DEMO and issue DEMO-1.
func NewFakeJira(t testing.TB, email, apiToken string) *FakeJira {
	t.Helper()
	f := &FakeJira{
		Email:    email,
		APIToken: apiToken,
		issues:   map[string]map[string]any{},
		ids:      map[string]string{"DEMO-1": "10001"},
		comments: map[string][]map[string]any{},
		failures: map[string]failure{},
		projects: []map[string]any{
			{"id": "10000", "key": "DEMO", "name": "Demo project"},
		},
		seq: 1,
	}
	f.issues["DEMO-1"] = map[string]any{
		"summary":   "Seed issue",
		"issuetype": map[string]any{"name": "Task"},
		"status":    map[string]any{"name": "To Do"},
		"project":   map[string]any{"key": "DEMO"},
	}
	seeded := f.stamp()
	f.issues["DEMO-1"]["created"] = seeded
	f.issues["DEMO-1"]["updated"] = seeded

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/3/myself", f.myself)
	mux.HandleFunc("GET /rest/api/3/project", f.listProjects)
	mux.HandleFunc("GET /rest/api/3/project/{key}", f.getProject)
	mux.HandleFunc("GET /rest/api/3/search/jql", f.search)
	mux.HandleFunc("POST /rest/api/3/issue", f.createIssue)
	mux.HandleFunc("GET /rest/api/3/issue/{key}", f.getIssue)
	mux.HandleFunc("PUT /rest/api/3/issue/{key}", f.updateIssue)
	mux.HandleFunc("GET /rest/api/3/issue/{key}/transitions", f.getTransitions)
	mux.HandleFunc("POST /rest/api/3/issue/{key}/transitions", f.doTransition)
	mux.HandleFunc("GET /rest/api/3/issue/{key}/comment", f.listComments)
	mux.HandleFunc("POST /rest/api/3/issue/{key}/comment", f.addComment)

	f.Server = httptest.NewServer(f.wrap(mux))
	t.Cleanup(f.Close)
	return f
}

// Fail makes every "METHOD path" request answer with status and body.
func (f *FakeJira) Fail(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+path] = failure{status: status, body: body}
}

// FailHTML makes "METHOD path" answer with an HTML login page.
func (f *FakeJira) FailHTML(method, path string, status int, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	page := "<!DOCTYPE html><html><head><title>" + title + "</title></head><body>Log in</body></html>"
	f.failures[method+" "+path] = failure{status: status, body: page, html: true}
}

// Calls returns a copy of the recorded requests.
func (f *FakeJira) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount counts requests matching method and path.
func (f *FakeJira) CallCount(method, path string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (f *FakeJira) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// Issue returns the stored fields of key.
func (f *FakeJira) Issue(key string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fields, ok := f.issues[key]
	return fields, ok
}

func (f *FakeJira) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body,
			Auth:   r.Header.Get("Authorization"),
		})
		fail, failing := f.failures[r.Method+" "+r.URL.Path]
		f.mu.Unlock()

		want := "Basic " + base64.StdEncoding.EncodeToString([]byte(f.Email+":"+f.APIToken))
		if r.Header.Get("Authorization") != want {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"errorMessages": []string{"Client must be authenticated to access this resource."},
			})
			return
		}
		if failing {
			if fail.html {
				w.Header().Set("Content-Type", "text/html;charset=UTF-8")
			} else {
				w.Header().Set("Content-Type", "application/json")
			}
			w.WriteHeader(fail.status)
			_, _ = io.WriteString(w, fail.body)
			return
		}
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		next.ServeHTTP(w, r)
	})
}

func (f *FakeJira) myself(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"accountId":    "acc-1",
		"emailAddress": f.Email,
		"displayName":  "Test User",
	})
}

func (f *FakeJira) listProjects(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.projects)
}

func (f *FakeJira) getProject(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p["key"] == r.PathValue("key") {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{
		"errorMessages": []string{fmt.Sprintf("No project could be found with key '%s'.", r.PathValue("key"))},
	})
}

func (f *FakeJira) search(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.issues))
	for k := range f.issues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	issues := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		issues = append(issues, map[string]any{"key": k, "fields": f.issues[k]})
	}
	q := r.URL.Query()
	maxResults, _ := strconv.Atoi(q.Get("maxResults"))
	writeJSON(w, http.StatusOK, map[string]any{
		"jql":        q.Get("jql"),
		"fields":     q.Get("fields"),
		"maxResults": maxResults,
		"isLast":     true,
		"issues":     issues,
	})
}

func (f *FakeJira) createIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Fields == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{"invalid body"}})
		return
	}
	project, _ := req.Fields["project"].(map[string]any)
	projectKey, _ := project["key"].(string)
	if projectKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string]string{"project": "project is required"}})
		return
	}

	f.mu.Lock()
	f.seq++
	key := fmt.Sprintf("%s-%d", projectKey, f.seq)
	id := strconv.Itoa(10000 + f.seq)
	now := f.stamp()
	req.Fields["status"] = map[string]any{"name": "To Do"}
	req.Fields["created"] = now
	req.Fields["updated"] = now
	f.issues[key] = req.Fields
	f.ids[key] = id
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   id,
		"key":  key,
		"self": f.URL + "/rest/api/3/issue/" + id,
	})
}

func (f *FakeJira) getIssue(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	fields, ok := f.Issue(key)
	if !ok {
		issueNotFound(w)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     f.ids[key],
		"key":    key,
		"self":   f.URL + "/rest/api/3/issue/" + f.ids[key],
		"fields": fields,
	})
}

func (f *FakeJira) updateIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errorMessages": []string{"invalid body"}})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fields, ok := f.issues[r.PathValue("key")]
	if !ok {
		issueNotFound(w)
		return
	}
	for k, v := range req.Fields {
		fields[k] = v
	}
	fields["updated"] = f.stamp()
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeJira) getTransitions(w http.ResponseWriter, r *http.Request) {
	if _, ok := f.Issue(r.PathValue("key")); !ok {
		issueNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transitions": []map[string]any{
			{"id": "11", "name": "To Do"},
			{"id": "21", "name": "In Progress"},
			{"id": fakeTransitionID, "name": "Done"},
		},
	})
}

func (f *FakeJira) doTransition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transition struct {
			ID string `json:"id"`
		} `json:"transition"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	fields, ok := f.issues[r.PathValue("key")]
	if !ok {
		issueNotFound(w)
		return
	}
	names := map[string]string{"11": "To Do", "21": "In Progress", fakeTransitionID: "Done"}
	name, ok := names[req.Transition.ID]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errorMessages": []string{fmt.Sprintf("Transition id '%s' is not valid for this issue.", req.Transition.ID)},
		})
		return
	}
	fields["status"] = map[string]any{"name": name}
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeJira) listComments(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, ok := f.Issue(key); !ok {
		issueNotFound(w)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	comments := append([]map[string]any{}, f.comments[key]...)
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments, "total": len(comments)})
}

func (f *FakeJira) addComment(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, ok := f.Issue(key); !ok {
		issueNotFound(w)
		return
	}
	var req struct {
		Body map[string]any `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": map[string]string{"comment": "Comment body can not be empty!"}})
		return
	}
	f.mu.Lock()
	f.seq++
	c := map[string]any{"id": strconv.Itoa(f.seq), "body": req.Body}
	f.comments[key] = append(f.comments[key], c)
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, c)
}

// stamp returns a Jira-formatted timestamp one minute after the previous
// one. Callers hold f.mu or own f exclusively.
func (f *FakeJira) stamp() string {
	f.clock++
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(f.clock) * time.Minute).Format("2006-01-02T15:04:05.000-0700")
}

func issueNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"errorMessages": []string{"Issue does not exist or you do not have permission to see it."},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
