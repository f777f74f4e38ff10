package chat

import "regexp"

// htmlFenceRE matches a fenced code block explicitly tagged as HTML. The
// inner text is captured verbatim up to the closing fence.
var htmlFenceRE = regexp.MustCompile("(?s)```html\n(.*?)```")

// ExtractHTML scans assistant text for the first fenced block tagged `html`
// and returns its inner content. Later blocks in the same text are ignored.
func ExtractHTML(text string) (string, bool) {
	m := htmlFenceRE.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
