package testutil

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var loadOnce sync.Once

// LoadDotEnv loads a ".env" file found in the working directory or any
// parent into the environment. Variables already set are left alone. It is
// meant for live tests only; a missing file is not an error.
func LoadDotEnv() {
	loadOnce.Do(func() {
		path, err := findUpwards(".env")
		if err != nil {
			return
		}
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()

		vars, err := ParseDotEnv(f)
		if err != nil {
			return
		}
		for k, v := range vars {
			if _, ok := os.LookupEnv(k); !ok {
				_ = os.Setenv(k, v)
			}
		}
	})
}

// LiveJira returns real Jira credentials from the environment (after
// LoadDotEnv) or skips the test when any is missing.
func LiveJira(t testing.TB) (baseURL, email, apiToken string) {
	t.Helper()
	LoadDotEnv()
	baseURL = strings.TrimRight(os.Getenv("JIRA_URL"), "/")
	email = os.Getenv("JIRA_EMAIL")
	apiToken = os.Getenv("JIRA_API_TOKEN")
	if baseURL == "" || email == "" || apiToken == "" {
		t.Skip("JIRA_URL, JIRA_EMAIL and JIRA_API_TOKEN must be set (env or .env)")
	}
	return baseURL, email, apiToken
}

// ParseDotEnv reads KEY=VALUE lines. Blank lines, comments and an optional
// "export " prefix are accepted; matching surrounding quotes are stripped.
func ParseDotEnv(r io.Reader) (map[string]string, error) {
	out := map[string]string{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		val = strings.TrimSpace(val)
		if n := len(val); n >= 2 && (val[0] == '"' || val[0] == '\'') && val[n-1] == val[0] {
			val = val[1 : n-1]
		}
		out[key] = val
	}
	return out, sc.Err()
}

func findUpwards(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("not found")
		}
		dir = parent
	}
}
