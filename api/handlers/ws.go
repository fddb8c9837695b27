package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/orchestrator"
)

// wsWriteTimeout bounds one frame write to a feed client.
const wsWriteTimeout = 10 * time.Second

// FeedHandler streams appended conversation messages over a websocket.
type FeedHandler struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
}

// NewFeedHandler creates the live feed handler.
func NewFeedHandler(orch *orchestrator.Orchestrator, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		orch:   orch,
		logger: logger.With(zap.String("component", "feed_handler")),
	}
}

// Serve handles GET /v1/session/feed. Each client gets its own
// subscription; a slow client loses messages rather than stalling the
// conversation loop.
func (h *FeedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	feed, cancel := h.orch.Subscribe()
	defer cancel()

	h.logger.Info("feed client connected", zap.String("remote", r.RemoteAddr))

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-feed:
			if !ok {
				return
			}
			writeCtx, done := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, msg)
			done()
			if err != nil {
				h.logger.Debug("feed client write failed, disconnecting",
					zap.String("remote", r.RemoteAddr),
					zap.Error(err))
				return
			}
		}
	}
}
