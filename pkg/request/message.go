package request

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var apiMessageKeys = []string{"msg", "error_description", "message"}

// DefaultAPIMessage extracts a human readable message from a reply. JSON
// envelopes are searched for msg, error_description and message in that order.
// HTML error pages fall back to their description or title.
func DefaultAPIMessage(r *Reply) string {
	if r == nil {
		return ""
	}
	if env, ok := envelope(r); ok {
		for _, key := range apiMessageKeys {
			if s, ok := env[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}
	if r.Response == nil || !looksLikeHTML(r) {
		return ""
	}
	return htmlMessage(r.Response.Body())
}

func looksLikeHTML(r *Reply) bool {
	if ct := r.Response.Header().Get("Content-Type"); strings.Contains(strings.ToLower(ct), "text/html") {
		return true
	}
	body := bytes.TrimSpace(r.Response.Body())
	return len(body) > 0 && body[0] == '<'
}

func htmlMessage(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return firstNonEmpty(
		extract(`meta[name="description"]`),
		strings.TrimSpace(doc.Find("h1").First().Text()),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
}
