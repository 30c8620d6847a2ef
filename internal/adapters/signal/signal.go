// Package signal is the websocket edge of the relay: it authenticates the
// attach, decodes and validates inbound events and hands them to the router.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Talk/internal/app"
	"github.com/dkeye/Talk/internal/auth"
	"github.com/dkeye/Talk/internal/core"
	"github.com/dkeye/Talk/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// Keepalive interval used when the configured ping period is missing or
// non-positive; must stay below pongWait.
const defaultPingPeriod = 54 * time.Second

type Controller struct {
	Router     *app.Router
	Verifier   auth.Verifier
	Limiter    *RateLimiter
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(router *app.Router, verifier auth.Verifier, limiter *RateLimiter, readLimit int64, pingPeriod time.Duration) *Controller {
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	return &Controller{
		Router:     router,
		Verifier:   verifier,
		Limiter:    limiter,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

// wsSignalConn pairs one websocket with the identity it authenticated as.
type wsSignalConn struct {
	conn  *websocket.Conn
	send  chan core.Frame
	sid   core.SessionID
	uid   domain.UserID
	token string

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleSignal authenticates the bearer credential and upgrades to the
// persistent event channel. Rejected attaches get a bare unauthorized, no
// detail leaked.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, err := ctl.Verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := core.SessionID(uuid.NewString())
	conn := &wsSignalConn{
		conn:  ws,
		send:  make(chan core.Frame, 32),
		sid:   sid,
		uid:   id.UserID,
		token: token,
	}
	log.Info().Str("module", "signal").Str("user", string(id.UserID)).Str("sid", string(sid)).Msg("new WS connection")

	user := &domain.User{ID: id.UserID, Username: id.Username}
	ctl.Router.Attach(ctx, user, sid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}

func bearerToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	const prefix = "Bearer "
	h := c.GetHeader("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
