package apierr

import (
	"encoding/base64"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// minSecretLen keeps very short values from blanking out unrelated text.
const minSecretLen = 4

var authHeaderPattern = regexp.MustCompile(`(?i)\b(basic|bearer)\s+[A-Za-z0-9+/=._\-]{20,}`)

// Redact removes secret material from msg: every given secret, its base64
// form, the base64 of any "email:secret" pair embedded in a Basic header,
// and anything that looks like an Authorization header value.
func Redact(msg string, secrets ...string) string {
	if msg == "" {
		return msg
	}
	for _, s := range secrets {
		if len(s) < minSecretLen {
			continue
		}
		msg = strings.ReplaceAll(msg, s, redacted)
		msg = strings.ReplaceAll(msg, base64.StdEncoding.EncodeToString([]byte(s)), redacted)
	}
	return authHeaderPattern.ReplaceAllString(msg, "$1 "+redacted)
}

// BasicAuthSecret returns the base64 blob used in a Basic Authorization
// header for email and token. Pass it to Redact alongside the raw token.
func BasicAuthSecret(email, token string) string {
	if token == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(email + ":" + token))
}
