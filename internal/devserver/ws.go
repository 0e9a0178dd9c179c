package devserver

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"

	"github.com/gorilla/websocket"
)

// matchReply: ответ сокета подбора; пустой означает «ещё ждём».
type matchReply struct {
	ChannelID   string `json:"channel_id"`
	AccessToken string `json:"access_token"`
}

func actionFrame(uid domain.UserID, a domain.Action) domain.Frame {
	return domain.Frame{Event: domain.EventAction, UserID: uid, Payload: string(a)}
}

// HandleChat обслуживает сокет канала, GET {chat}?uid=...&access_token=... или &cid=...
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	uid := domain.UserID(strings.TrimSpace(r.URL.Query().Get("uid")))
	if uid == "" {
		http.Error(w, "missing uid", http.StatusBadRequest)
		return
	}
	cid, status, err := s.channelFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	if err := s.state.CheckMember(cid, uid); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, uid, cid)
	s.hub.Add(c)
	if len(s.hub.Online(cid)) == 1 {
		_ = c.Send(actionFrame(uid, domain.ActionWaiting))
	}
	s.hub.Broadcast(cid, actionFrame(uid, domain.ActionJoined))

	go s.pingLoop(r.Context(), c)
	s.readLoop(c)

	s.hub.Remove(c)
	if _, err := s.state.Members(cid); err == nil {
		s.hub.Broadcast(cid, actionFrame(uid, domain.ActionOffline))
	}
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "channel", cid, "user", uid, "err", err)
	}
}

func (s *Server) readLoop(c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		f, ok := domain.DecodeFrame(data)
		if !ok {
			continue
		}

		// автор кадра: владелец сокета, а не то, что прислал клиент
		f.UserID = c.userID
		f.ChannelID = ""
		if s.opts.Scheme == domain.SchemeChannel {
			f.ChannelID = strconv.FormatUint(c.channelID, 10)
		}

		switch f.Event {
		case domain.EventText:
			if strings.TrimSpace(f.Payload) == "" {
				continue
			}
			f.Time = s.stamp()
			if err := s.state.Append(c.channelID, f); err != nil {
				slog.Debug("ws text for closed channel", "channel", c.channelID, "err", err)
				continue
			}
			s.hub.Broadcast(c.channelID, f)
		case domain.EventAction:
			switch a, _ := f.Action(); a {
			case domain.ActionIsTyping, domain.ActionEndTyping:
				s.hub.Broadcast(c.channelID, f)
			default:
				// ignore
			}
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.opts.PingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// matchQueue: не более одного ожидающего; второй забирает его в пару.
type matchQueue struct {
	mu      sync.Mutex
	waiting *wsConn
}

// take возвращает ожидающего пира или ставит c в очередь и возвращает nil.
func (q *matchQueue) take(c *wsConn) *wsConn {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waiting != nil && q.waiting.userID != c.userID {
		peer := q.waiting
		q.waiting = nil
		return peer
	}
	q.waiting = c
	return nil
}

// park ставит c в пустую очередь.
func (q *matchQueue) park(c *wsConn) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waiting != nil {
		return false
	}
	q.waiting = c
	return true
}

func (q *matchQueue) drop(c *wsConn) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waiting == c {
		q.waiting = nil
	}
}

// HandleMatch обслуживает сокет подбора, GET {match}?uid=...
// Обоим участникам пары уходит креденшл канала в формате схемы.
func (s *Server) HandleMatch(w http.ResponseWriter, r *http.Request) {
	uid := domain.UserID(strings.TrimSpace(r.URL.Query().Get("uid")))
	if _, err := s.state.User(uid); err != nil {
		http.Error(w, "unknown uid", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}
	c := newWsConn(conn, uid, 0)
	defer func() { _ = c.Close() }()

	if peer := s.queue.take(c); peer != nil {
		s.pair(peer, c)
	} else {
		_ = c.Send(matchReply{})
	}

	go s.pingLoop(r.Context(), c)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	})
	// ждём, пока клиент закроет сокет
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	s.queue.drop(c)
}

// pair создаёт канал. Если ожидающий уже отвалился, c встаёт в очередь сам.
func (s *Server) pair(peer, c *wsConn) {
	cid := s.state.CreateChannel(peer.userID, c.userID)

	reply, err := s.credential(cid, peer.userID)
	if err == nil {
		err = peer.Send(reply)
	}
	if err != nil {
		slog.Warn("match: peer gone", "user", peer.userID, "err", err)
		s.state.DeleteChannel(cid)
		if !s.queue.park(c) {
			// очередь успел занять третий; пусть клиент переподключится
			_ = c.Close()
			return
		}
		_ = c.Send(matchReply{})
		return
	}

	reply, err = s.credential(cid, c.userID)
	if err == nil {
		err = c.Send(reply)
	}
	if err != nil {
		slog.Warn("match: send credential failed", "user", c.userID, "err", err)
		return
	}
	slog.Info("match: paired", "channel", cid, "a", peer.userID, "b", c.userID)
}
