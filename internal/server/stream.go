package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/conneroisu/roster/internal/appstate"
	apperrors "github.com/conneroisu/roster/internal/errors"
)

// Time allowed to write one stats frame to the peer.
const streamWriteWait = 5 * time.Second

// StatsMessage is one frame of the /ws/stats stream.
type StatsMessage struct {
	Type      string         `json:"type"`
	Stats     appstate.Stats `json:"stats"`
	Timestamp time.Time      `json:"timestamp"`
}

// handleStatsStream pushes a stats snapshot immediately and then every
// stream.interval until the peer goes away or the server shuts down. The
// connection is write-only; anything the client sends is discarded.
func (s *Server) handleStatsStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	if s.metrics != nil {
		defer s.metrics.StreamOpened()()
	}

	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(s.config.Stream.Interval)
	defer ticker.Stop()

	for {
		if err := s.pushStats(ctx, conn); err != nil {
			if ctx.Err() == nil {
				s.logger.Debug(ctx, "stats stream ended", "error", err.Error())
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pushStats(ctx context.Context, conn *websocket.Conn) error {
	stats, err := appstate.Snapshot(ctx, s.store)
	switch {
	case apperrors.IsRecoverable(err):
		// A busy tick is skipped; the next one will catch up.
		return nil
	case err != nil:
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, streamWriteWait)
	defer cancel()
	return wsjson.Write(writeCtx, conn, StatsMessage{
		Type:      "stats",
		Stats:     stats,
		Timestamp: time.Now().UTC(),
	})
}
