package kludd_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/livebud/sse"
	"github.com/matryer/is"
	"github.com/matthewmueller/kludd"
	"github.com/matthewmueller/kludd/internal/config"
)

// Pulled from: https://github.com/mathiasbynens/small
// Built with: xxd -i small.ico
var favicon = []byte{
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x01, 0x01, 0x00, 0x00, 0x01, 0x00,
	0x18, 0x00, 0x30, 0x00, 0x00, 0x00, 0x16, 0x00, 0x00, 0x00, 0x28, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00,
	0x18, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0x00, 0x00, 0x00, 0x00, 0x00,
}

func contains(haystack, needle string) error {
	if strings.Contains(haystack, needle) {
		return nil
	}
	return fmt.Errorf("expected the following to contain %s:\n\n%s", needle, haystack)
}

func notContains(haystack, needle string) error {
	if !strings.Contains(haystack, needle) {
		return nil
	}
	return fmt.Errorf("expected the following to not contain %s:\n\n%s", needle, haystack)
}

// writeSite lays out a small site under dir/site and returns its path
func writeSite(t testing.TB, dir string) string {
	t.Helper()
	files := map[string][]byte{
		"site/index.html":         []byte("<html><body>hello world</body></html>"),
		"site/app.js":             []byte("console.log('hello world')"),
		"site/main.py":            []byte("print('hello')"),
		"site/favicon.ico":        favicon,
		"site/assets/style.css":   []byte("body { color: red }"),
		"site/assets/data.json":   []byte(`{"ok":true}`),
		"site/docs/index.html":    []byte("<html><body>docs</body></html>"),
		"site/docs/guide.html":    []byte("<html><body>guide</body></html>"),
		"site/empty/.gitkeep":     nil,
		"secret.js":               []byte("const secret = 42"),
		"site/notes/readme.md":    []byte("# notes"),
		"site/notes/<b>bold.html": []byte("<p>bold</p>"),
	}
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "site")
}

// output collects traces, which are written after the response is sent
type output struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (o *output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Write(p)
}

func (o *output) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

// traces waits for n request traces and returns the output
func (o *output) traces(t testing.TB, n int) string {
	t.Helper()
	waitFor(t, func() bool { return strings.Count(o.String(), "\n\n") >= n })
	return o.String()
}

func newServer(t testing.TB, mutate func(cfg *config.Config)) (*kludd.Server, string, *output) {
	t.Helper()
	root := writeSite(t, t.TempDir())
	cfg := config.Default(root)
	cfg.Color = false
	if mutate != nil {
		mutate(cfg)
	}
	stdout := new(output)
	s, err := kludd.New(slog.Default(), stdout, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, root, stdout
}

// Don't follow redirects
var client = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func get(t testing.TB, url string) (*http.Response, string) {
	t.Helper()
	res, err := client.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(body)
}

func TestServeFile(t *testing.T) {
	is := is.New(t)
	s, root, stdout := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()

	res, body := get(t, server.URL+"/app.js")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/javascript")
	is.Equal(res.Header.Get("Cache-Control"), "")
	is.Equal(body, "console.log('hello world')")
	is.True(s.Watching(filepath.Join(root, "app.js")))
	is.Equal(stdout.traces(t, 1), "GET /app.js\n=> "+filepath.Join(root, "app.js")+"\n\n")

	res, body = get(t, server.URL+"/favicon.ico")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "image/x-icon")
	is.Equal([]byte(body), favicon)

	res, body = get(t, server.URL+"/assets/style.css?v=3")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/css")
	is.Equal(body, "body { color: red }")
	is.True(s.Watching(filepath.Join(root, "assets", "style.css")))

	// Extra leading slashes are part of the path, not a host
	res, body = get(t, server.URL+"//app.js")
	is.Equal(res.StatusCode, 200)
	is.Equal(body, "console.log('hello world')")

	res, body = get(t, server.URL+"//assets/style.css")
	is.Equal(res.StatusCode, 200)
	is.Equal(body, "body { color: red }")
}

func TestServeHTMLInjectsScript(t *testing.T) {
	is := is.New(t)
	s, _, _ := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()

	res, body := get(t, server.URL+"/index.html")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/html; charset=utf-8")
	is.Equal(res.Header.Get("Cache-Control"), "no-cache, no-store, must-revalidate")
	is.Equal(res.Header.Get("Last-Modified"), "0")
	is.NoErr(contains(body, "<html><body>hello world"))
	is.NoErr(contains(body, `<script type="text/javascript" src="/_kludd/livereload.js"></script></body>`))
	is.Equal(res.ContentLength, int64(len(body)))

	// Only HTML gets the script
	_, body = get(t, server.URL+"/app.js")
	is.NoErr(notContains(body, "livereload.js"))
}

func TestServeHTMLWithoutInject(t *testing.T) {
	is := is.New(t)
	s, _, _ := newServer(t, func(cfg *config.Config) { cfg.Inject = false })
	server := httptest.NewServer(s)
	defer server.Close()
	res, body := get(t, server.URL+"/index.html")
	is.Equal(res.StatusCode, 200)
	is.Equal(body, "<html><body>hello world</body></html>")
	is.Equal(res.Header.Get("Cache-Control"), "")
}

func TestNotFound(t *testing.T) {
	is := is.New(t)
	s, _, stdout := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()

	// Unsupported extensions are never served, even when the file exists
	res, body := get(t, server.URL+"/main.py")
	is.Equal(res.StatusCode, 404)
	is.Equal(body, "Not found")
	is.Equal(stdout.traces(t, 1), "GET /main.py\n404\n\n")

	res, body = get(t, server.URL+"/missing.js")
	is.Equal(res.StatusCode, 404)
	is.Equal(body, "Not found")

	res, body = get(t, server.URL+"/missing")
	is.Equal(res.StatusCode, 404)
	is.Equal(body, "Not found")

	res, body = get(t, server.URL+"/missing/")
	is.Equal(res.StatusCode, 404)
	is.Equal(body, "Not found")
}

func TestDirectoryRedirects(t *testing.T) {
	is := is.New(t)
	s, _, _ := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()

	res, body := get(t, server.URL+"/assets")
	is.Equal(res.StatusCode, 302)
	is.Equal(res.Header.Get("Location"), "/assets/")
	is.Equal(body, "")

	res, _ = get(t, server.URL+"/docs")
	is.Equal(res.StatusCode, 302)
	is.Equal(res.Header.Get("Location"), "/docs/index.html")

	res, _ = get(t, server.URL+"/docs/")
	is.Equal(res.StatusCode, 302)
	is.Equal(res.Header.Get("Location"), "/docs/index.html")

	res, _ = get(t, server.URL+"/")
	is.Equal(res.StatusCode, 302)
	is.Equal(res.Header.Get("Location"), "/index.html")

	res, _ = get(t, server.URL+"//assets")
	is.Equal(res.StatusCode, 302)
	is.Equal(res.Header.Get("Location"), "/assets/")

	res, _ = get(t, server.URL+"//docs")
	is.Equal(res.StatusCode, 302)
	is.Equal(res.Header.Get("Location"), "/docs/index.html")
}

func TestDirectoryListing(t *testing.T) {
	is := is.New(t)
	s, root, stdout := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()

	res, body := get(t, server.URL+"/assets/")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/html; charset=utf-8")
	is.NoErr(contains(body, "<title>/assets/</title>"))
	is.NoErr(contains(body, `<a href="/assets/data.json">data.json</a>`))
	is.NoErr(contains(body, `<a href="/assets/style.css">style.css</a>`))
	is.NoErr(contains(body, `src="/_kludd/livereload.js"`))
	is.Equal(stdout.traces(t, 1), "GET /assets/\n=> "+filepath.Join(root, "assets")+"\n\n")

	// Listings don't watch anything
	is.True(!s.Watching(filepath.Join(root, "assets")))

	_, body = get(t, server.URL+"/notes/")
	is.NoErr(notContains(body, "<b>bold"))
	is.NoErr(contains(body, "&lt;b&gt;bold.html"))
	is.NoErr(contains(body, `<a href="/notes/readme.md">readme.md</a>`))

	res, body = get(t, server.URL+"/empty/")
	is.Equal(res.StatusCode, 200)
	is.NoErr(contains(body, ".gitkeep"))
}

func TestPathTraversal(t *testing.T) {
	is := is.New(t)
	s, _, _ := newServer(t, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/../secret.js", nil))
	is.Equal(rec.Code, 404)
	is.Equal(rec.Body.String(), "Not found")

	s, _, _ = newServer(t, func(cfg *config.Config) { cfg.AllowEscape = true })
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/../secret.js", nil))
	is.Equal(rec.Code, 200)
	is.Equal(rec.Body.String(), "const secret = 42")
}

func TestInternalAssets(t *testing.T) {
	is := is.New(t)
	s, _, _ := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()

	res, body := get(t, server.URL+"/_kludd/livereload.js")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/javascript")
	is.NoErr(contains(body, "new WebSocket"))

	res, body = get(t, server.URL+"/_kludd/")
	is.Equal(res.StatusCode, 200)
	is.NoErr(contains(body, `<a href="/_kludd/livereload.js">livereload.js</a>`))

	res, _ = get(t, server.URL+"/_kludd/missing.js")
	is.Equal(res.StatusCode, 404)

	// The embedded client has nothing on disk to watch
	_, body = get(t, server.URL+"/_kludd/status")
	is.Equal(strings.TrimSpace(body), `{"watched":0,"connections":0}`)
}

func TestInternalAssetsDir(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	is.NoErr(os.MkdirAll(filepath.Join(dir, "_kludd"), 0755))
	is.NoErr(os.WriteFile(filepath.Join(dir, "_kludd", "livereload.js"), []byte("custom()"), 0644))
	s, _, _ := newServer(t, func(cfg *config.Config) { cfg.AssetsDir = dir })
	server := httptest.NewServer(s)
	defer server.Close()
	res, body := get(t, server.URL+"/_kludd/livereload.js")
	is.Equal(res.StatusCode, 200)
	is.Equal(body, "custom()")
	is.True(s.Watching(filepath.Join(dir, "_kludd", "livereload.js")))
}

func TestStatus(t *testing.T) {
	is := is.New(t)
	s, _, _ := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()
	get(t, server.URL+"/app.js")
	get(t, server.URL+"/app.js")
	get(t, server.URL+"/index.html")
	res, body := get(t, server.URL+"/_kludd/status")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "application/json")
	is.Equal(strings.TrimSpace(body), `{"watched":2,"connections":0}`)
}

func handshake(t testing.TB, server *httptest.Server, upgrade string) *bufio.Reader {
	t.Helper()
	conn, err := net.Dial("tcp", server.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	fmt.Fprintf(conn, "GET /_kludd/socket HTTP/1.1\r\nHost: %s\r\nConnection: Upgrade\r\nUpgrade: %s\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n", server.Listener.Addr(), upgrade)
	return bufio.NewReader(conn)
}

func readHead(t testing.TB, r *bufio.Reader) string {
	t.Helper()
	var head strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		if line == "\r\n" {
			return head.String()
		}
		head.WriteString(line)
	}
}

func waitFor(t testing.TB, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLiveReload(t *testing.T) {
	is := is.New(t)
	s, root, stdout := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx)

	first := handshake(t, server, "websocket")
	head := readHead(t, first)
	is.NoErr(contains(head, "HTTP/1.1 101 Web Socket Protocol Handshake\r\n"))
	is.NoErr(contains(head, "Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n"))
	second := handshake(t, server, "websocket")
	readHead(t, second)
	waitFor(t, func() bool { return s.Connections() == 2 })
	// Upgrades aren't traced
	is.Equal(stdout.String(), "")

	res, _ := get(t, server.URL+"/app.js")
	is.Equal(res.StatusCode, 200)
	is.NoErr(os.WriteFile(filepath.Join(root, "app.js"), []byte("console.log('changed')"), 0644))

	// Every open connection gets closed
	_, err := first.ReadByte()
	is.True(errors.Is(err, io.EOF))
	_, err = second.ReadByte()
	is.True(errors.Is(err, io.EOF))
	is.Equal(s.Connections(), 0)
}

func TestLiveReloadBadUpgrade(t *testing.T) {
	is := is.New(t)
	s, _, _ := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()
	r := handshake(t, server, "WebSocket")
	data, err := io.ReadAll(r)
	is.NoErr(err)
	is.Equal(string(data), "HTTP/1.1 400 Bad Request\r\n\r\n")
	is.Equal(s.Connections(), 0)
}

func TestLiveReloadEvents(t *testing.T) {
	is := is.New(t)
	log := slog.Default()
	s, root, _ := newServer(t, nil)
	server := httptest.NewServer(s)
	defer server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go s.Watch(ctx)

	res, _ := get(t, server.URL+"/assets/data.json")
	is.Equal(res.StatusCode, 200)
	stream, err := sse.Dial(log, server.URL+"/_kludd/events")
	is.NoErr(err)
	defer stream.Close()
	path := filepath.Join(root, "assets", "data.json")
	is.NoErr(os.WriteFile(path, []byte(`{"ok":false}`), 0644))
	event, err := stream.Next(ctx)
	is.NoErr(err)
	is.Equal(string(event.Type), "reload")
	is.Equal(string(event.Data), path)
}
