package proxy

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// IsUpgrade reports whether r is a WebSocket upgrade request.
func IsUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") &&
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSProxy bridges a client WebSocket connection to an app's WebSocket
// endpoint, pumping frames in both directions until either side closes.
type WSProxy struct {
	logger *slog.Logger
}

func NewWSProxy(logger *slog.Logger) *WSProxy {
	return &WSProxy{logger: logger}
}

// ServeApp upgrades r to a WebSocket, dials targetURL (http(s) rewritten
// to ws(s)) and relays frames until either side disconnects.
func (p *WSProxy) ServeApp(w http.ResponseWriter, r *http.Request, targetURL string) {
	wsURL := rewriteScheme(targetURL)

	client, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn("websocket proxy: upgrading client connection", "error", err)
		return
	}
	defer client.Close()

	upstream, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		p.logger.Warn("websocket proxy: dialing app", "url", wsURL, "error", err)
		_ = client.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "app unreachable"))
		return
	}
	if resp != nil {
		defer resp.Body.Close()
	}
	defer upstream.Close()

	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	go pump(client, upstream, closeDone, p.logger)
	go pump(upstream, client, closeDone, p.logger)

	<-done
}

// pump copies frames from src to dst. Close frames always collapse to a
// bare close on the far side — the reason and code aren't propagated.
func pump(src, dst *websocket.Conn, done func(), logger *slog.Logger) {
	defer done()
	src.SetPingHandler(func(data string) error {
		return dst.WriteMessage(websocket.PingMessage, []byte(data))
	})
	src.SetPongHandler(func(data string) error {
		return dst.WriteMessage(websocket.PongMessage, []byte(data))
	})
	for {
		msgType, data, err := src.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				_ = dst.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return
		}

		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			if err := dst.WriteMessage(msgType, data); err != nil {
				return
			}
		case websocket.PingMessage:
			if err := dst.WriteMessage(websocket.PingMessage, data); err != nil {
				return
			}
		case websocket.PongMessage:
			if err := dst.WriteMessage(websocket.PongMessage, data); err != nil {
				return
			}
		case websocket.CloseMessage:
			_ = dst.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func rewriteScheme(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	default:
		return url
	}
}
