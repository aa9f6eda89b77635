package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Keepalive timings. pingEvery must stay below readTimeout so an idle but
// healthy peer always answers a ping before its read deadline expires.
const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingEvery    = readTimeout * 9 / 10

	// listeners only send control frames
	readLimit = 4 * 1024

	listenerQueue = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// listener is one websocket connection receiving hub events.
type listener struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func newListener(conn *websocket.Conn) *listener {
	return &listener{
		id:   "web_" + uuid.NewString(),
		conn: conn,
		send: make(chan []byte, listenerQueue),
	}
}

// drain consumes inbound frames until the peer goes away. Pongs extend the
// read deadline; data frames are ignored.
func (l *listener) drain() error {
	l.conn.SetReadLimit(readLimit)
	extend := func(string) error { return l.conn.SetReadDeadline(time.Now().Add(readTimeout)) }
	extend("")
	l.conn.SetPongHandler(extend)

	for {
		if _, _, err := l.conn.NextReader(); err != nil {
			return err
		}
	}
}

// forward writes queued events and keepalive pings. It returns when the
// hub closes the queue or a write fails.
func (l *listener) forward() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		l.conn.Close()
	}()

	for {
		select {
		case msg, open := <-l.send:
			if !open {
				l.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				return
			}
			l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := l.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and subscribes the connection to hub events.
// It returns once the listener is registered; the connection is served by
// two goroutines until either side closes it.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered with an HTTP error
		hub.log.WithError(err).Debug("WS upgrade failed")
		return
	}

	l := newListener(conn)
	if !hub.join(l) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}

	go l.forward()
	go func() {
		err := l.drain()
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			hub.log.WithError(err).WithField("client", l.id).Debug("WS read error")
		}
		hub.leave(l)
		conn.Close()
	}()
}
