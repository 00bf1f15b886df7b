package wakeonlan

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/HerbHall/wolgate/internal/server"
	"github.com/HerbHall/wolgate/pkg/plugin"
)

const (
	streamBuffer       = 64
	streamWriteTimeout = 5 * time.Second
)

// handleEvents streams module events over a websocket. The first message is
// a snapshot of all devices; module events follow as they are published.
func (m *Module) handleEvents(w http.ResponseWriter, r *http.Request) {
	if m.bus == nil {
		server.ServiceUnavailable(w, "event bus not available", r.URL.Path)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		m.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	events := make(chan plugin.Event, streamBuffer)
	unsubscribe := m.bus.SubscribeAll(func(_ context.Context, e plugin.Event) {
		if !strings.HasPrefix(e.Topic, pluginName+".") {
			return
		}
		select {
		case events <- e:
		default:
			m.logger.Debug("event stream client too slow, dropping event", zap.String("topic", e.Topic))
		}
	})
	defer unsubscribe()

	ctx := conn.CloseRead(r.Context())

	snapshot := plugin.Event{
		Topic:     TopicSnapshot,
		Source:    pluginName,
		Timestamp: m.now().UTC(),
		Payload:   m.snapshots(),
	}
	if err := writeEvent(ctx, conn, snapshot); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done():
			conn.Close(websocket.StatusGoingAway, "module stopping")
			return
		case e := <-events:
			if err := writeEvent(ctx, conn, e); err != nil {
				m.logger.Debug("event stream write failed", zap.Error(err))
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, e plugin.Event) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, e)
}
