package web

import "github.com/microcosm-cc/bluemonday"

// NewSanitizer returns the policy applied to message content before it is
// sent. Class names survive so the message stylesheet still applies.
func NewSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	p.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowElements("strong", "em", "u", "s", "code", "pre", "blockquote")
	p.AllowElements("ul", "ol", "li")
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	p.AllowAttrs("class").Globally()
	p.AllowAttrs("style").OnElements("span", "div", "p")

	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	return p
}
