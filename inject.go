package kludd

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
)

// Client-side live reload script that we attach to the end of the body
const scriptTag = `<script type="text/javascript" src=%q></script>`

func rewrite(data []byte, src string) ([]byte, bool) {
	index := bytes.LastIndex(data, []byte("</body>"))
	if index < 0 {
		return data, false
	}
	script := fmt.Sprintf(scriptTag, src)
	data = append(data[:index:index], append([]byte(script), data[index:]...)...)
	return data, true
}

// Don't cache re-written responses
func noCache(header http.Header, length int) {
	header.Set("Content-Length", strconv.Itoa(length))
	header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	header.Set("Last-Modified", "0")
}
