package devserver

import (
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"

	"github.com/gorilla/websocket"
)

type wsConn struct {
	conn      *websocket.Conn
	userID    domain.UserID
	channelID uint64
	sendMu    chan struct{}
	closed    chan struct{}
}

func newWsConn(c *websocket.Conn, userID domain.UserID, channelID uint64) *wsConn {
	return &wsConn{
		conn:      c,
		userID:    userID,
		channelID: channelID,
		sendMu:    make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
}

func (c *wsConn) Send(v any) error {
	select {
	case c.sendMu <- struct{}{}:
	case <-c.closed:
		return websocket.ErrCloseSent
	}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) UserID() domain.UserID { return c.userID }
func (c *wsConn) ChannelID() uint64     { return c.channelID }
