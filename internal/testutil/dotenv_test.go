package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDotEnv(t *testing.T) {
	in := `
# comment
JIRA_URL=https://acme.atlassian.net
export JIRA_EMAIL = "dev@acme.io"
JIRA_API_TOKEN='abc=def'
broken line
=novalue
`
	vars, err := ParseDotEnv(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"JIRA_URL":       "https://acme.atlassian.net",
		"JIRA_EMAIL":     "dev@acme.io",
		"JIRA_API_TOKEN": "abc=def",
	}, vars)
}
