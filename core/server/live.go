package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleLive streams state-cache updates for one device over a
// websocket, fanning out from the Redis feed channel.
func (s *Server) handleLive(c *gin.Context) {
	if s.config.Cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "STATE_CACHE_DISABLED", "detail": "no state cache configured"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.config.Cache.SubscribeFeed(c.Request.Context(), c.Param("imei"))
	defer sub.Close()

	done := make(chan struct{})

	// reader only to observe client close
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}
