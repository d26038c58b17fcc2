package notify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Minthug/chzzk-chat-analyzer/internal/analyzer"

	"github.com/coder/websocket"
)

// ServeHTTP upgrades the request to a websocket and streams events until
// the client goes away. ?stream_id= restricts the feed to one stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The browser extension connects from its own origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	client := &Client{
		conn:     conn,
		streamID: analyzer.StreamID(r.URL.Query().Get("stream_id")),
		send:     make(chan Message, sendBuffer),
		log:      h.log,
	}
	h.Register(client)

	ctx, cancel := context.WithCancel(r.Context())
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	client.readPump(ctx)

	h.Unregister(client)
	cancel()
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}
