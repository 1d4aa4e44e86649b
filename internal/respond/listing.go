package respond

import (
	"bytes"
	"html"
	"net/url"
)

const listingStyle = `<style>a { display: inline-block; padding: 4px; margin: 4px; } body { font-family: sans-serif; }</style>`

// listing renders one anchor per entry. Names are escaped both as link
// targets and as text.
func listing(dirURL string, names []string) []byte {
	var b bytes.Buffer
	b.WriteString(`<!doctype html><html><head><title>`)
	b.WriteString(html.EscapeString(dirURL))
	b.WriteString(`</title></head><body>`)
	b.WriteString(listingStyle)
	for _, name := range names {
		href := (&url.URL{Path: dirURL + name}).EscapedPath()
		b.WriteString(`<a href="`)
		b.WriteString(html.EscapeString(href))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(name))
		b.WriteString(`</a>`)
	}
	b.WriteString(`</body></html>`)
	return b.Bytes()
}
