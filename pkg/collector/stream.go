package collector

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// streamWriteTimeout bounds a single websocket write.
const streamWriteTimeout = 5 * time.Second

// handleStream serves the live span feed on GET /v1/stream. Every span
// accepted after the connection is established is pushed as one JSON
// message. Slow clients miss spans instead of stalling ingest.
func (c *Collector) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		c.log.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	c.metrics.streamConnected()
	defer c.metrics.streamDisconnected()

	spans, cancel := c.store.Subscribe()
	defer cancel()

	// CloseRead watches for the client closing the connection; no
	// inbound messages are expected.
	ctx := conn.CloseRead(r.Context())

	c.log.Debug("stream client connected", "remote_addr", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case span, ok := <-spans:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "store closed")
				return
			}
			if err := writeSpan(ctx, conn, span); err != nil {
				if !errors.Is(err, context.Canceled) {
					c.log.Debug("stream write failed", "error", err)
				}
				return
			}
		}
	}
}

func writeSpan(ctx context.Context, conn *websocket.Conn, span *Span) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, span)
}
