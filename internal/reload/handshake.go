package reload

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/net/http/httpguts"
)

// Fixed GUID from RFC 6455 that's appended to the client's key
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

const badRequest = "HTTP/1.1 400 Bad Request\r\n\r\n"

// ErrBadUpgrade is returned for upgrade requests that aren't websockets
var ErrBadUpgrade = errors.New("reload: bad upgrade request")

// AcceptKey computes the Sec-WebSocket-Accept value for a client key
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// IsUpgrade reports whether the request asks to switch protocols
func IsUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") != "" &&
		httpguts.HeaderValuesContainsToken(r.Header["Connection"], "upgrade")
}

func handshake(acceptKey string) string {
	return "HTTP/1.1 101 Web Socket Protocol Handshake\r\n" +
		"Upgrade: WebSocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + acceptKey + "\r\n" +
		"\r\n"
}

// Upgrade takes over the connection, completes the websocket opening
// handshake and parks the connection in the pool. Nothing is ever read from
// or framed onto the connection afterwards, it only exists to be closed.
func (r *Reloader) Upgrade(w http.ResponseWriter, req *http.Request) error {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return fmt.Errorf("reload: %T can't be hijacked", w)
	}
	conn, _, err := hijacker.Hijack()
	if err != nil {
		return fmt.Errorf("reload: unable to hijack connection: %w", err)
	}
	key := req.Header.Get("Sec-WebSocket-Key")
	// Compared as received, "WebSocket" is rejected
	if req.Header.Get("Upgrade") != "websocket" || key == "" {
		conn.Write([]byte(badRequest))
		conn.Close()
		return fmt.Errorf("%w: upgrade=%q", ErrBadUpgrade, req.Header.Get("Upgrade"))
	}
	if _, err := conn.Write([]byte(handshake(AcceptKey(key)))); err != nil {
		conn.Close()
		return fmt.Errorf("reload: unable to write handshake: %w", err)
	}
	r.pool.Add(conn)
	r.log.Debug("reload: connection opened", "remote", conn.RemoteAddr().String(), "connections", r.pool.Len())
	return nil
}
