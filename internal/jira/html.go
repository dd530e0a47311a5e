package jira

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// pageTitle returns the <title> text of an HTML page, or "".
func pageTitle(b []byte) string {
	z := html.NewTokenizer(bytes.NewReader(b))
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tok := z.Token()
			inTitle = tok.DataAtom == atom.Title
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		case html.TextToken:
			if inTitle {
				return strings.Join(strings.Fields(string(z.Text())), " ")
			}
		}
	}
}
